package registry

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campushq/corekit/errors"
	"github.com/campushq/corekit/logger"
	"github.com/campushq/corekit/validation"
)

// Config configures the in-memory registry.
type Config struct {
	// StaleThreshold is how long an instance may go without a heartbeat
	// before it is considered stale. Default: 90s (3x a 30s heartbeat).
	StaleThreshold time.Duration `yaml:"stale_threshold" mapstructure:"stale_threshold"`

	// EvictionMultiplier scales the stale threshold into the eviction grace:
	// entries stale for longer than StaleThreshold*EvictionMultiplier are
	// removed entirely by Sweep. Default: 3.
	EvictionMultiplier int `yaml:"eviction_multiplier" mapstructure:"eviction_multiplier"`
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.StaleThreshold == 0 {
		c.StaleThreshold = 90 * time.Second
	}
	if c.EvictionMultiplier <= 0 {
		c.EvictionMultiplier = 3
	}
}

// InMemory is the authoritative in-process registry table. All mutation runs
// under a single lock so concurrent register/heartbeat/deregister calls and
// the periodic sweep never lose updates.
type InMemory struct {
	cfg Config
	log *logger.Logger

	mu        sync.RWMutex
	instances map[string]*Registration

	// now is replaceable in tests.
	now func() time.Time
}

// NewInMemory creates an empty registry.
func NewInMemory(cfg Config, log *logger.Logger) *InMemory {
	cfg.ApplyDefaults()
	return &InMemory{
		cfg:       cfg,
		log:       log.WithComponent("registry"),
		instances: make(map[string]*Registration),
		now:       time.Now,
	}
}

// Register adds an instance. A registration whose instance ID collides with a
// fresh entry fails with DuplicateInstance; a stale entry with the same ID is
// replaced, covering restarts that reuse an ID before the sweep ran.
func (m *InMemory) Register(_ context.Context, reg *Registration) (string, error) {
	if reg == nil {
		return "", errors.InvalidRegistration("registration is nil")
	}

	v := validation.New().
		Required("service_name", reg.ServiceName).
		Required("host", reg.Host).
		Port("port", reg.Port)
	if err := v.Validate(); err != nil {
		return "", errors.InvalidRegistration(err.Message)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	if reg.InstanceID == "" {
		reg.InstanceID = reg.ServiceName + "-" + uuid.NewString()
	} else if existing, ok := m.instances[reg.InstanceID]; ok {
		if now.Sub(existing.LastHeartbeat) <= m.cfg.StaleThreshold {
			return "", errors.DuplicateInstance(reg.InstanceID)
		}
	}

	entry := *reg
	// Detach the metadata from the caller's map so later mutation on either
	// side cannot reach the other.
	entry.Metadata = maps.Clone(reg.Metadata)
	entry.RegisteredAt = now
	entry.LastHeartbeat = now
	entry.Status = StatusStarting
	if entry.HealthCheckPath == "" {
		entry.HealthCheckPath = "/health"
	}
	m.instances[entry.InstanceID] = &entry

	m.log.Info("instance registered", logger.Fields(
		logger.FieldService, entry.ServiceName,
		logger.FieldInstance, entry.InstanceID,
		"addr", entry.BaseURL(),
	))
	return entry.InstanceID, nil
}

// Heartbeat refreshes the instance's last-heartbeat timestamp. A retried
// heartbeat racing a fresh one may arrive out of order; the maximum observed
// timestamp always wins so the value never regresses.
func (m *InMemory) Heartbeat(_ context.Context, instanceID string) error {
	return m.heartbeatAt(instanceID, m.now())
}

// HeartbeatAt applies a heartbeat carrying an explicit send timestamp, as
// delivered by the HTTP handler for retried requests.
func (m *InMemory) HeartbeatAt(_ context.Context, instanceID string, sentAt time.Time) error {
	if sentAt.IsZero() {
		sentAt = m.now()
	}
	return m.heartbeatAt(instanceID, sentAt)
}

func (m *InMemory) heartbeatAt(instanceID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.instances[instanceID]
	if !ok {
		return errors.UnknownInstance(instanceID)
	}

	if at.After(entry.LastHeartbeat) {
		entry.LastHeartbeat = at
	}
	if entry.Status == StatusStarting || entry.Status == StatusStale {
		entry.Status = StatusHealthy
	}
	return nil
}

// Deregister removes an instance. Idempotent.
func (m *InMemory) Deregister(_ context.Context, instanceID string) error {
	m.Remove(instanceID)
	return nil
}

// Remove deletes an instance and reports whether it was registered.
func (m *InMemory) Remove(instanceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.instances[instanceID]; !ok {
		return false
	}
	delete(m.instances, instanceID)
	m.log.Info("instance deregistered", logger.Fields(logger.FieldInstance, instanceID))
	return true
}

// Lookup returns copies of the matching registrations. Staleness is computed
// against the current clock so a silent instance stops being served even
// before the next sweep marks it.
func (m *InMemory) Lookup(_ context.Context, serviceName string, healthyOnly bool) ([]Registration, error) {
	if serviceName == "" {
		return nil, errors.Validation("service_name is required")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	var out []Registration
	for _, entry := range m.instances {
		if entry.ServiceName != serviceName {
			continue
		}
		reg := *entry
		reg.Metadata = maps.Clone(entry.Metadata)
		if now.Sub(reg.LastHeartbeat) > m.cfg.StaleThreshold {
			reg.Status = StatusStale
		}
		if healthyOnly && (reg.Status == StatusUnhealthy || reg.Status == StatusStale) {
			continue
		}
		out = append(out, reg)
	}
	return out, nil
}

// UpdateStatus records an externally observed health state.
func (m *InMemory) UpdateStatus(_ context.Context, instanceID string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.instances[instanceID]
	if !ok {
		return errors.UnknownInstance(instanceID)
	}
	entry.Status = status
	return nil
}

// Sweep marks entries past the stale threshold and evicts entries past the
// eviction grace. Returns the number of evicted entries. Sweep runs on its
// own timer and never on the request path.
func (m *InMemory) Sweep(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	grace := m.cfg.StaleThreshold * time.Duration(m.cfg.EvictionMultiplier)

	evicted := 0
	for id, entry := range m.instances {
		age := now.Sub(entry.LastHeartbeat)
		switch {
		case age > grace:
			delete(m.instances, id)
			evicted++
			m.log.Warn("stale instance evicted", logger.Fields(
				logger.FieldService, entry.ServiceName,
				logger.FieldInstance, id,
				"heartbeat_age", age.String(),
			))
		case age > m.cfg.StaleThreshold:
			entry.Status = StatusStale
		}
	}
	return evicted, nil
}

// Stats returns current registry counters.
func (m *InMemory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	s := Stats{Instances: len(m.instances)}
	for _, entry := range m.instances {
		if entry.Status == StatusStale || now.Sub(entry.LastHeartbeat) > m.cfg.StaleThreshold {
			s.Stale++
		}
	}
	return s
}

// Compile-time check.
var _ Registry = (*InMemory)(nil)
