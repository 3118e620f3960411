package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-chat/internal/hub"
	"github.com/weiawesome/wes-chat/internal/presence"
)

type HealthHandler struct {
	hub      *hub.Hub
	registry *presence.Registry
}

func NewHealthHandler(h *hub.Hub, registry *presence.Registry) *HealthHandler {
	return &HealthHandler{hub: h, registry: registry}
}

func (h *HealthHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health", h.Health)
}

// Health reports open sockets, joined sessions and distinct online users.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"connections":  h.hub.ClientCount(),
		"sessions":     h.registry.Count(),
		"online_users": len(h.registry.OnlineNames()),
	})
}
