package discovery

import (
	"context"
	"encoding/json"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/campushq/corekit/component"
	"github.com/campushq/corekit/errors"
	"github.com/campushq/corekit/health"
	"github.com/campushq/corekit/logger"
	"github.com/campushq/corekit/registry"
	"github.com/campushq/corekit/resilience"
	"github.com/campushq/corekit/transport"
)

// Client registers this service with the registry and resolves other
// services to reachable instances.
type Client struct {
	cfg      Config
	registry registry.Registry
	doer     transport.Doer
	log      *logger.Logger

	mu         sync.Mutex
	instanceID string
	started    bool
	cancel     context.CancelFunc
	done       chan struct{}

	rrMu    sync.Mutex
	rrIndex map[string]int
}

// NewClient creates a discovery client over the given registry. The registry
// may be the in-process table or the HTTP-backed client; both satisfy the
// same interface.
func NewClient(cfg Config, reg registry.Registry, doer transport.Doer, log *logger.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		cfg:      cfg,
		registry: reg,
		doer:     doer,
		log:      log.WithComponent("discovery"),
		rrIndex:  make(map[string]int),
	}, nil
}

// Name implements component.Component.
func (c *Client) Name() string { return "discovery" }

// Health implements component.Component.
func (c *Client) Health(_ context.Context) component.Health {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	if !c.started {
		h.Status = component.StatusUnhealthy
		h.Message = "not registered"
	}
	return h
}

var _ component.Component = (*Client)(nil)

// InstanceID returns the instance ID assigned at Start, or the configured one.
func (c *Client) InstanceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.instanceID
}

// Start registers the service and launches the heartbeat loop. Calling Start
// on a started client is an error.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return errors.Validation("discovery client already started")
	}

	reg := &registry.Registration{
		ServiceName:     c.cfg.ServiceName,
		InstanceID:      c.cfg.InstanceID,
		Host:            c.cfg.Host,
		Port:            c.cfg.Port,
		HealthCheckPath: c.cfg.HealthCheckPath,
		Metadata:        c.cfg.Metadata,
	}
	id, err := c.registry.Register(ctx, reg)
	if err != nil {
		return err
	}
	c.instanceID = id

	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.started = true

	go c.heartbeatLoop(loopCtx, id)

	c.log.Info("service registered", logger.Fields(
		logger.FieldService, c.cfg.ServiceName,
		logger.FieldInstance, id,
	))
	return nil
}

// Stop cancels the heartbeat loop, waits for it to exit, and makes a
// best-effort deregistration. Stopping a stopped client is a no-op.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	cancel, done, id := c.cancel, c.done, c.instanceID
	c.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	deregCtx, deregCancel := context.WithTimeout(context.Background(), c.cfg.DeregisterTimeout)
	defer deregCancel()
	if err := c.registry.Deregister(deregCtx, id); err != nil {
		c.log.Warn("deregister failed", logger.ErrorFields("deregister", err))
	}

	c.log.Info("service deregistered", logger.Fields(logger.FieldInstance, id))
	return nil
}

// heartbeatLoop sends heartbeats on the configured interval. On failure it
// switches to the backoff schedule until a heartbeat succeeds again, so a
// briefly unreachable registry does not lose the instance.
func (c *Client) heartbeatLoop(ctx context.Context, instanceID string) {
	defer close(c.done)

	backoff := resilience.NewBackoff(c.cfg.HeartbeatBackoffInitial, c.cfg.HeartbeatBackoffMax)
	timer := time.NewTimer(c.cfg.HeartbeatInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		err := c.registry.Heartbeat(ctx, instanceID)
		switch {
		case err == nil:
			backoff.Reset()
			timer.Reset(c.cfg.HeartbeatInterval)
		case errors.HasCode(err, errors.ErrCodeUnknownInstance):
			// The registry evicted us; re-register instead of retrying
			// a heartbeat that can never succeed.
			c.reregister(ctx, instanceID)
			backoff.Reset()
			timer.Reset(c.cfg.HeartbeatInterval)
		default:
			delay := backoff.Next()
			c.log.Warn("heartbeat failed", logger.Fields(
				logger.FieldInstance, instanceID,
				"retry_in", delay.String(),
				"attempt", backoff.Attempt(),
				logger.FieldError, err.Error(),
			))
			timer.Reset(delay)
		}
	}
}

func (c *Client) reregister(ctx context.Context, instanceID string) {
	reg := &registry.Registration{
		ServiceName:     c.cfg.ServiceName,
		InstanceID:      instanceID,
		Host:            c.cfg.Host,
		Port:            c.cfg.Port,
		HealthCheckPath: c.cfg.HealthCheckPath,
		Metadata:        c.cfg.Metadata,
	}
	if _, err := c.registry.Register(ctx, reg); err != nil {
		c.log.Warn("re-registration failed", logger.ErrorFields("register", err))
		return
	}
	c.log.Info("re-registered after eviction", logger.Fields(logger.FieldInstance, instanceID))
}

// Resolve picks one healthy instance of the named service.
func (c *Client) Resolve(ctx context.Context, serviceName string) (registry.Registration, error) {
	instances, err := c.registry.Lookup(ctx, serviceName, true)
	if err != nil {
		return registry.Registration{}, err
	}
	if len(instances) == 0 {
		return registry.Registration{}, errors.ServiceUnavailable(serviceName)
	}
	return c.pick(serviceName, instances), nil
}

// ResolveURL resolves a service and returns its base URL.
func (c *Client) ResolveURL(ctx context.Context, serviceName string) (string, error) {
	return c.ResolvePath(ctx, serviceName, "")
}

// ResolvePath resolves a service and returns the URL for the given path.
func (c *Client) ResolvePath(ctx context.Context, serviceName, path string) (string, error) {
	inst, err := c.Resolve(ctx, serviceName)
	if err != nil {
		return "", err
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return inst.BaseURL() + path, nil
}

func (c *Client) pick(serviceName string, instances []registry.Registration) registry.Registration {
	if len(instances) == 1 {
		return instances[0]
	}
	switch c.cfg.Strategy {
	case StrategyRoundRobin:
		// Lookup order is not stable; sort so the cycle visits every instance.
		sort.Slice(instances, func(i, j int) bool {
			return instances[i].InstanceID < instances[j].InstanceID
		})
		c.rrMu.Lock()
		idx := c.rrIndex[serviceName] % len(instances)
		c.rrIndex[serviceName]++
		c.rrMu.Unlock()
		return instances[idx]
	default:
		return instances[rand.Intn(len(instances))]
	}
}

// Probe fetches the health endpoint of a resolved instance and reports
// whether it answered.
func (c *Client) Probe(ctx context.Context, inst registry.Registration) error {
	if _, err := c.doer.Get(ctx, inst.HealthURL()); err != nil {
		return err
	}
	return nil
}

// HealthCheck resolves one instance of the named service and probes its
// health endpoint. An unreachable or unresolvable service reports unhealthy.
func (c *Client) HealthCheck(ctx context.Context, serviceName string) health.Status {
	inst, err := c.Resolve(ctx, serviceName)
	if err != nil {
		return health.StatusUnhealthy
	}

	body, err := c.doer.Get(ctx, inst.HealthURL())
	if err != nil {
		return health.StatusUnhealthy
	}

	var resp struct {
		Status health.Status `json:"status"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Status == "" {
		// A 200 with an unreadable body still means the instance answered.
		return health.StatusHealthy
	}
	return resp.Status
}
