package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ticketguard/scoring/internal/domain/port"
	"github.com/ticketguard/scoring/internal/ml/artifact"
)

// ModelState reports the cached model without loading it.
type ModelState interface {
	Current() *artifact.Artifact
}

// HealthHandler serves liveness and readiness checks over HTTP.
type HealthHandler struct {
	db      port.HealthChecker
	model   ModelState
	service string
	logger  *slog.Logger
}

// NewHealthHandler creates a health check HTTP handler.
func NewHealthHandler(db port.HealthChecker, model ModelState, service string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, model: model, service: service, logger: logger}
}

// RegisterRoutes attaches health-check routes to the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.liveness)
	mux.HandleFunc("GET /readyz", h.readiness)
}

func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type readiness struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Database    string `json:"database"`
	ModelLoaded bool   `json:"model_loaded"`
}

// readiness fails only when the database is unreachable. A missing model is
// reported but does not take the instance out of rotation, because the
// first score request or a retraining run loads it.
func (h *HealthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := readiness{
		Status:      "ready",
		Service:     h.service,
		Database:    "ok",
		ModelLoaded: h.model.Current() != nil,
	}
	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", slog.String("error", err.Error()))
		resp.Status = "unavailable"
		resp.Database = "unreachable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
