package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Endpoint exposes the manager's checks over HTTP.
type Endpoint struct {
	manager *Manager
	started time.Time
	version string
}

// NewEndpoint creates the health HTTP surface.
func NewEndpoint(m *Manager, version string) *Endpoint {
	return &Endpoint{
		manager: m,
		started: time.Now(),
		version: version,
	}
}

// RegisterRoutes mounts the health endpoints on the given router.
func (e *Endpoint) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", e.health)
	r.GET("/health/live", e.liveness)
	r.GET("/health/ready", e.readiness)
	r.GET("/health/detailed", e.detailed)
}

// health answers that the process is live. Traffic gating happens on
// /health/ready; this endpoint stays 200 even while a dependency is down so
// plain pollers keep seeing the instance.
func (e *Endpoint) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  StatusHealthy,
		"version": e.version,
		"uptime":  time.Since(e.started).Truncate(time.Second).String(),
	})
}

// liveness only answers that the process is running.
func (e *Endpoint) liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// readiness gates traffic on the aggregate status and names the failing
// checks so operators can see what is holding readiness back.
func (e *Endpoint) readiness(c *gin.Context) {
	report := e.manager.RunAll(c.Request.Context(), true)

	if report.Status == StatusUnhealthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":         report.Status,
			"failing_checks": report.FailingChecks(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": report.Status})
}

// detailed returns the full per-check breakdown. ?fresh=true re-probes every
// check instead of serving cached results.
func (e *Endpoint) detailed(c *gin.Context) {
	report := e.manager.RunAll(c.Request.Context(), c.Query("fresh") != "true")

	status := http.StatusOK
	if report.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
