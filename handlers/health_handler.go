package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/learn2pay/backend/repositories/postgres"
	"go.uber.org/zap"
)

// HealthHandler handles liveness and readiness probes
type HealthHandler struct {
	db     *postgres.DB
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db *postgres.DB, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		logger: logger,
	}
}

// HandleHealth handles GET /healthz
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// HandleReadiness handles GET /readyz. Not ready until the database answers.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := map[string]interface{}{
		"status": "ready",
		"checks": map[string]string{},
	}

	if h.db == nil {
		response["status"] = "not_ready"
		response["checks"].(map[string]string)["database"] = "not_initialized"
	} else if err := h.db.HealthCheck(ctx); err != nil {
		response["status"] = "not_ready"
		response["checks"].(map[string]string)["database"] = "unhealthy"
		h.logger.Error("database health check failed", zap.Error(err))
	} else {
		response["checks"].(map[string]string)["database"] = "healthy"
	}

	w.Header().Set("Content-Type", "application/json")
	if response["status"] == "ready" {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(response)
}
