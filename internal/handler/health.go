package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthChecker interface {
	Health(ctx context.Context) map[string]string
}

type HealthHandler struct {
	db HealthChecker
}

func NewHealthHandler(db HealthChecker) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health reports the database pool statistics; 503 while the database is down.
func (h *HealthHandler) Health(ctx *gin.Context) {
	stats := h.db.Health(ctx.Request.Context())
	status := http.StatusOK
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	ctx.JSON(status, stats)
}
