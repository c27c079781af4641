package api

import (
	"net/http"
	"time"

	respond "github.com/sweety-ai/sweety-chat/internal/api/respond"
)

// ServiceHealth is the cached health view served by /api/health.
// *health.ServiceHealthChecker implements it.
type ServiceHealth interface {
	IsHealthy() bool
	Components() map[string]bool
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	svc ServiceHealth
}

// NewHealthHandler creates a new health handler. A nil svc reports unhealthy.
func NewHealthHandler(svc ServiceHealth) *HealthHandler { return &HealthHandler{svc: svc} }

// CheckHealth handles GET /api/health
// Always returns 200; body reports healthy/unhealthy. 500 indicates handler failure only.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status := "unhealthy"
	components := map[string]bool{}
	if h.svc != nil {
		if h.svc.IsHealthy() {
			status = "healthy"
		}
		components = h.svc.Components()
	}
	response := map[string]interface{}{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	respond.WriteJSON(w, http.StatusOK, response)
}
