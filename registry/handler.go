package registry

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campushq/corekit/errors"
	"github.com/campushq/corekit/logger"
	"github.com/campushq/corekit/observability"
)

// Handler exposes the registry over HTTP.
type Handler struct {
	registry *InMemory
	log      *logger.Logger
	metrics  *observability.RegistryMetrics
}

// NewHandler creates an HTTP handler over the given registry.
func NewHandler(reg *InMemory, log *logger.Logger) *Handler {
	return &Handler{
		registry: reg,
		log:      log.WithComponent("registry-http"),
	}
}

// WithMetrics enables metric recording on the handler.
func (h *Handler) WithMetrics(m *observability.RegistryMetrics) *Handler {
	h.metrics = m
	return h
}

// RegisterRoutes mounts the registry endpoints on the given router group.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/api/v1/registry")
	g.POST("/register", h.register)
	g.POST("/instances/:id/heartbeat", h.heartbeat)
	g.DELETE("/instances/:id", h.deregister)
	g.POST("/instances/:id/deregister", h.deregister)
	g.GET("/services/:name", h.lookup)
	g.GET("/stats", h.stats)
}

// registerRequest is the registration payload.
type registerRequest struct {
	ServiceName     string            `json:"service_name" binding:"required"`
	InstanceID      string            `json:"instance_id"`
	Host            string            `json:"host" binding:"required"`
	Port            int               `json:"port" binding:"required"`
	HealthCheckPath string            `json:"health_check_path"`
	Metadata        map[string]string `json:"metadata"`
}

type registerResponse struct {
	InstanceID string `json:"instance_id"`
	Status     Status `json:"status"`
}

// heartbeatRequest carries an optional client-side send timestamp so retried
// heartbeats can be ordered by when they were sent, not when they arrived.
type heartbeatRequest struct {
	SentAt time.Time `json:"sent_at"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.InvalidRegistration(err.Error()))
		return
	}

	reg := &Registration{
		ServiceName:     req.ServiceName,
		InstanceID:      req.InstanceID,
		Host:            req.Host,
		Port:            req.Port,
		HealthCheckPath: req.HealthCheckPath,
		Metadata:        req.Metadata,
	}
	id, err := h.registry.Register(c.Request.Context(), reg)
	if err != nil {
		writeError(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordRegistration(c.Request.Context(), reg.ServiceName)
	}

	c.JSON(http.StatusCreated, registerResponse{InstanceID: id, Status: reg.Status})
}

func (h *Handler) heartbeat(c *gin.Context) {
	instanceID := c.Param("id")

	var req heartbeatRequest
	// The body is optional; an empty or absent body means "now".
	_ = c.ShouldBindJSON(&req)

	if err := h.registry.HeartbeatAt(c.Request.Context(), instanceID, req.SentAt); err != nil {
		writeError(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordHeartbeat(c.Request.Context())
	}
	c.JSON(http.StatusOK, gin.H{"instance_id": instanceID, "acknowledged": true})
}

func (h *Handler) deregister(c *gin.Context) {
	instanceID := c.Param("id")
	removed := h.registry.Remove(instanceID)
	if removed && h.metrics != nil {
		h.metrics.RecordDeregistration(c.Request.Context())
	}
	c.JSON(http.StatusOK, gin.H{"instance_id": instanceID, "deregistered": true})
}

func (h *Handler) lookup(c *gin.Context) {
	serviceName := c.Param("name")
	healthyOnly := c.DefaultQuery("healthy_only", "false") == "true"

	start := time.Now()
	instances, err := h.registry.Lookup(c.Request.Context(), serviceName, healthyOnly)
	if err != nil {
		writeError(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordLookup(c.Request.Context(), serviceName, time.Since(start))
	}
	if instances == nil {
		instances = []Registration{}
	}
	c.JSON(http.StatusOK, gin.H{
		"service_name": serviceName,
		"instances":    instances,
	})
}

func (h *Handler) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.Stats())
}

func writeError(c *gin.Context, err error) {
	if appErr, ok := errors.AsAppError(err); ok {
		c.JSON(appErr.HTTPStatus, appErr.ToResponse())
		return
	}
	c.JSON(http.StatusInternalServerError, errors.Internal(err).ToResponse())
}
