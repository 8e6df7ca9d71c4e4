// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, club)
//
// Domain errors are mapped onto status codes in one place:
//
//	if err != nil {
//		httputil.WriteAppError(w, logger, err)
//		return
//	}
//
// Every error body has the shape {"error": "<message>"}.
//
// # Request Parsing
//
//	var req CreateClubRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // 422 already written
//	}
//	clubID, ok := httputil.ParsePathIDOrError(w, r, "club")
//
// # Pagination
//
// Nested listings accept status, page and limit query parameters and respond
// with {data, meta:{page, limit, total}}:
//
//	filter, err := httputil.ParseFilter(r, 10, "pending", "approved", "rejected")
//	httputil.WriteSuccess(w, httputil.NewPaginated(rows, filter, total))
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.CORSMiddleware(cfg.CORS.AllowedOrigins),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
package httputil
