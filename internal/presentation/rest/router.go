package rest

import (
	"log/slog"
	"net/http"
)

// NewRouter assembles the HTTP surface. The API routes are rate limited per
// client; health checks and metrics are not. metrics may be nil.
func NewRouter(api *ScoringHandler, health *HealthHandler, metrics http.Handler, limiter *ClientLimiter, logger *slog.Logger) http.Handler {
	apiMux := http.NewServeMux()
	api.RegisterRoutes(apiMux)

	mux := http.NewServeMux()
	health.RegisterRoutes(mux)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	mux.Handle("/api/", RateLimitMiddleware(limiter)(apiMux))

	return LoggingMiddleware(logger)(mux)
}
