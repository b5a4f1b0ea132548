package handler

import (
	"net/http"
	"time"

	"github.com/curiohq/curio/internal/store"
)

// HealthHandler reports process liveness and database reachability.
type HealthHandler struct {
	store   *store.Store
	started time.Time
}

func NewHealthHandler(st *store.Store) *HealthHandler {
	return &HealthHandler{store: st, started: time.Now()}
}

type healthResponse struct {
	Success       bool   `json:"success"`
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

// Health returns 200 when the database answers a ping, 503 otherwise.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Success:       true,
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}
	status := http.StatusOK
	if err := h.store.Ping(r.Context()); err != nil {
		resp.Success = false
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
