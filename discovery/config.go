package discovery

import (
	"time"

	"github.com/campushq/corekit/errors"
	"github.com/campushq/corekit/validation"
)

// Strategy selects one instance among the healthy candidates.
type Strategy string

const (
	// StrategyRandom picks a uniformly random instance. Default.
	StrategyRandom Strategy = "random"
	// StrategyRoundRobin cycles through instances per service.
	StrategyRoundRobin Strategy = "round_robin"
)

// Config configures the discovery client.
type Config struct {
	// ServiceName is the name this service registers under.
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
	// Host and Port are the address other services reach this instance at.
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
	// InstanceID is optional; the registry generates one when empty.
	InstanceID string `yaml:"instance_id" mapstructure:"instance_id"`
	// HealthCheckPath is advertised to health probes. Default: /health.
	HealthCheckPath string `yaml:"health_check_path" mapstructure:"health_check_path"`
	// Metadata is attached to the registration as-is.
	Metadata map[string]string `yaml:"metadata" mapstructure:"metadata"`

	// HeartbeatInterval is the cadence of the heartbeat loop. Default: 30s.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval"`
	// HeartbeatBackoffInitial is the retry delay after the first failed
	// heartbeat. Default: 1s.
	HeartbeatBackoffInitial time.Duration `yaml:"heartbeat_backoff_initial" mapstructure:"heartbeat_backoff_initial"`
	// HeartbeatBackoffMax caps the retry delay. Default: 30s.
	HeartbeatBackoffMax time.Duration `yaml:"heartbeat_backoff_max" mapstructure:"heartbeat_backoff_max"`

	// Strategy selects instances on Resolve. Default: random.
	Strategy Strategy `yaml:"strategy" mapstructure:"strategy"`

	// DeregisterTimeout bounds the best-effort deregistration on Stop.
	// Default: 3s.
	DeregisterTimeout time.Duration `yaml:"deregister_timeout" mapstructure:"deregister_timeout"`
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.HealthCheckPath == "" {
		c.HealthCheckPath = "/health"
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.HeartbeatBackoffInitial == 0 {
		c.HeartbeatBackoffInitial = time.Second
	}
	if c.HeartbeatBackoffMax == 0 {
		c.HeartbeatBackoffMax = 30 * time.Second
	}
	if c.Strategy == "" {
		c.Strategy = StrategyRandom
	}
	if c.DeregisterTimeout == 0 {
		c.DeregisterTimeout = 3 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	v := validation.New().
		Required("service_name", c.ServiceName).
		Required("host", c.Host).
		Port("port", c.Port).
		OneOf("strategy", string(c.Strategy), string(StrategyRandom), string(StrategyRoundRobin))
	if err := v.Validate(); err != nil {
		return err
	}
	if c.HeartbeatInterval < time.Second {
		return errors.Validation("heartbeat_interval must be at least 1s")
	}
	return nil
}
