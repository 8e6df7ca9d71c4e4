// Package middleware provides HTTP middleware for bearer token authentication
// and rate limiting of credential endpoints.
//
// AuthMiddleware validates the access token, loads the principal (user plus
// club memberships) and stores it on the request context:
//
//	authMW := middleware.NewAuthMiddleware(tokenManager, userService, logger, false)
//	protected := router.NewRoute().Subrouter()
//	protected.Use(authMW.Handler)
//
// Role checks are not done here; see pkg/rbac.
//
// RateLimit throttles requests per client IP using either a Redis fixed-window
// counter (shared across instances) or an in-memory LRU of windows:
//
//	limiter := middleware.NewRedisLimiter(redisClient, middleware.DefaultAuthRateLimitConfig(), "ratelimit:auth")
//	router.Handle("/auth/login", middleware.RateLimit(limiter, logger)(loginHandler))
package middleware
