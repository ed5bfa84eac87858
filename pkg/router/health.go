package router

import (
	"voice-beyond/companion/internal/api"
)

// setupHealthRoutes registers health check endpoints
func (r *Router) setupHealthRoutes() {
	h := api.NewHealthHandler(r.Container.Health, r.Hub, Version)

	// Register both health endpoint paths for compatibility
	r.Engine.GET("/health", h.Health)
	r.Engine.GET("/api/health", h.Health)
}
