// Package api exposes the club management REST API.
//
// # Overview
//
// The Server wires gorilla/mux routes to the domain services. Every handler
// set implements RouteRegistrar:
//
//   - AuthHandlers: login, register, refresh, logout, me
//   - ClubHandlers: clubs, join requests, membership review, announcements
//   - EventHandlers: events, registrations and their review
//   - UserHandlers: account administration and per-user listings
//
// # Authorization
//
// Routes that need a caller are wrapped with the access token middleware.
// Club-scoped routes use rbac.RequireRoles with the {club} path variable.
// Event routes resolve the event's club before authorizing; reviewing and
// listing registrations considers only the caller's pivot role in that club.
//
// # Errors
//
// Handlers return {"error": "..."} bodies through httputil.WriteAppError,
// which maps apperrors kinds onto status codes.
//
// # Usage
//
//	srv := api.NewServer(api.Dependencies{
//		Users:    userService,
//		Clubs:    clubService,
//		Events:   eventService,
//		Tokens:   tokens,
//		Logger:   logger,
//	})
//	http.ListenAndServe(":8080", srv)
package api
