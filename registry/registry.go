package registry

import (
	"context"
	"fmt"
	"time"
)

// Status is the lifecycle state of a registered instance.
type Status string

const (
	// StatusStarting marks a freshly registered instance that has not yet heartbeated.
	StatusStarting Status = "starting"
	// StatusHealthy marks an instance with a fresh heartbeat.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy marks an instance that failed a health probe.
	StatusUnhealthy Status = "unhealthy"
	// StatusStale marks an instance whose heartbeat is older than the stale threshold.
	StatusStale Status = "stale"
)

// Registration describes one running instance of a service.
type Registration struct {
	ServiceName     string            `json:"service_name"`
	InstanceID      string            `json:"instance_id"`
	Host            string            `json:"host"`
	Port            int               `json:"port"`
	HealthCheckPath string            `json:"health_check_path"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	RegisteredAt    time.Time         `json:"registered_at"`
	LastHeartbeat   time.Time         `json:"last_heartbeat"`
	Status          Status            `json:"status"`
}

// BaseURL returns the instance's base URL.
func (r Registration) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", r.Host, r.Port)
}

// HealthURL returns the instance's health check URL.
func (r Registration) HealthURL() string {
	path := r.HealthCheckPath
	if path == "" {
		path = "/health"
	}
	return r.BaseURL() + path
}

// Registry is the contract shared by the in-process table and the HTTP client.
type Registry interface {
	// Register adds an instance and returns its instance ID (generated when
	// the registration carries none).
	Register(ctx context.Context, reg *Registration) (string, error)

	// Heartbeat refreshes an instance's last-heartbeat timestamp.
	Heartbeat(ctx context.Context, instanceID string) error

	// Deregister removes an instance. Removing an absent instance is not an error.
	Deregister(ctx context.Context, instanceID string) error

	// Lookup returns the registered instances of a service. With healthyOnly,
	// unhealthy and stale instances are excluded.
	Lookup(ctx context.Context, serviceName string, healthyOnly bool) ([]Registration, error)

	// UpdateStatus records the result of an external health probe.
	UpdateStatus(ctx context.Context, instanceID string, status Status) error
}

// Stats holds registry counters.
type Stats struct {
	Instances int `json:"instances"`
	Stale     int `json:"stale"`
}
