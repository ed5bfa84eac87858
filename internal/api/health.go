package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"voice-beyond/companion/pkg/health"
)

// ClientCounter reports connected websocket clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthHandler reports local liveness and the cached backend probe
type HealthHandler struct {
	checker *health.Checker
	clients ClientCounter
	version string
	started time.Time
}

func NewHealthHandler(checker *health.Checker, clients ClientCounter, version string) *HealthHandler {
	return &HealthHandler{checker: checker, clients: clients, version: version, started: time.Now()}
}

// Health always answers 200; the backend state is advisory
func (h *HealthHandler) Health(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	wsClients := 0
	if h.clients != nil {
		wsClients = h.clients.ClientCount()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"version":    h.version,
		"timestamp":  time.Now().Format(time.RFC3339),
		"uptime":     time.Since(h.started).Round(time.Second).String(),
		"backend":    h.checker.Backend(),
		"components": h.checker.GetStatus(),
		"websocket": gin.H{
			"active_connections": wsClients,
		},
		"memory": gin.H{
			"alloc_mb":  memStats.Alloc / 1024 / 1024,
			"sys_mb":    memStats.Sys / 1024 / 1024,
			"gc_cycles": memStats.NumGC,
		},
	})
}
