package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Dhoini/seatsync/pkg/res"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store Pinger
}

func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		res.JsonResponse(c.Writer, gin.H{"status": "unavailable", "database": err.Error()}, http.StatusServiceUnavailable)
		return
	}
	res.JsonResponse(c.Writer, gin.H{"status": "ok"}, http.StatusOK)
}
