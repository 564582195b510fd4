package api

import (
	"net/http"
	"time"

	"github.com/Andrew920528/vibe-30/internal/api/respond"
)

// ServiceHealth is the aggregate view the health endpoint reports.
type ServiceHealth interface {
	IsHealthy() bool
	Down() []string
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
	down := []string{}
	if h.svc != nil {
		if h.svc.IsHealthy() {
			status = "healthy"
		}
		if d := h.svc.Down(); d != nil {
			down = d
		}
	}
	response := map[string]interface{}{
		"status":    status,
		"down":      down,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	respond.WriteJSON(w, http.StatusOK, response)
}
