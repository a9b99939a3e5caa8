package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	statusOK          = "ok"
	statusUnavailable = "unavailable"
	healthTimeout     = 2 * time.Second
)

// @Summary      Health check
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	if h.cfg.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := h.cfg.DB.PingContext(ctx); err != nil {
			if h.log != nil {
				h.log.Errorw("health_db_ping_failed", "err", err)
			}
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": statusUnavailable})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}
