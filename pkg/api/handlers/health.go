package handlers

import (
	"net/http"
	"time"
)

// HealthResponse is the liveness probe payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	LiveNodes int       `json:"live_nodes"`
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	WriteJSONOK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		LiveNodes: h.registry.Len(),
	})
}
