package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/campushq/corekit/errors"
	"github.com/campushq/corekit/health"
	"github.com/campushq/corekit/logger"
	"github.com/campushq/corekit/registry"
	"github.com/campushq/corekit/transport"
)

// fakeRegistry records calls and lets tests script failures.
type fakeRegistry struct {
	mu           sync.Mutex
	registered   []registry.Registration
	heartbeats   []string
	deregistered []string
	instances    map[string][]registry.Registration

	heartbeatErr error
	registerErr  error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{instances: make(map[string][]registry.Registration)}
}

func (f *fakeRegistry) Register(_ context.Context, reg *registry.Registration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registerErr != nil {
		return "", f.registerErr
	}
	if reg.InstanceID == "" {
		reg.InstanceID = reg.ServiceName + "-1"
	}
	f.registered = append(f.registered, *reg)
	return reg.InstanceID, nil
}

func (f *fakeRegistry) Heartbeat(_ context.Context, instanceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.heartbeatErr != nil {
		return f.heartbeatErr
	}
	f.heartbeats = append(f.heartbeats, instanceID)
	return nil
}

func (f *fakeRegistry) Deregister(_ context.Context, instanceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deregistered = append(f.deregistered, instanceID)
	return nil
}

func (f *fakeRegistry) Lookup(_ context.Context, serviceName string, _ bool) ([]registry.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.instances[serviceName], nil
}

func (f *fakeRegistry) UpdateStatus(context.Context, string, registry.Status) error { return nil }

func (f *fakeRegistry) heartbeatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.heartbeats)
}

func (f *fakeRegistry) setHeartbeatErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeatErr = err
}

var _ registry.Registry = (*fakeRegistry)(nil)

func testConfig() Config {
	return Config{
		ServiceName:       "user-service",
		Host:              "10.0.0.7",
		Port:              9100,
		HeartbeatInterval: time.Second,
	}
}

func newTestClient(t *testing.T, cfg Config, reg registry.Registry) *Client {
	t.Helper()
	c, err := NewClient(cfg, reg, transport.New(transport.Config{}), logger.NewDefault("test"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewClient_InvalidConfig(t *testing.T) {
	_, err := NewClient(Config{}, newFakeRegistry(), transport.New(transport.Config{}), logger.NewDefault("test"))
	if !errors.HasCode(err, errors.ErrCodeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestStart_RegistersAndAssignsID(t *testing.T) {
	fake := newFakeRegistry()
	c := newTestClient(t, testConfig(), fake)

	if err := c.Start(t.Context()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = c.Stop(context.Background()) })

	if c.InstanceID() != "user-service-1" {
		t.Errorf("expected assigned instance ID, got %q", c.InstanceID())
	}
	if err := c.Start(t.Context()); err == nil {
		t.Error("expected second Start to fail")
	}
}

func TestStart_RegisterFailure(t *testing.T) {
	fake := newFakeRegistry()
	fake.registerErr = errors.DuplicateInstance("user-service-1")
	c := newTestClient(t, testConfig(), fake)

	if err := c.Start(t.Context()); !errors.HasCode(err, errors.ErrCodeDuplicateInstance) {
		t.Errorf("expected duplicate error surfaced, got %v", err)
	}
}

func TestHeartbeatLoop_SendsOnInterval(t *testing.T) {
	fake := newFakeRegistry()
	cfg := testConfig()
	cfg.HeartbeatInterval = 20 * time.Millisecond
	c := newTestClient(t, cfg, fake)

	if err := c.Start(t.Context()); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for fake.heartbeatCount() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 heartbeats, got %d", fake.heartbeatCount())
		case <-time.After(10 * time.Millisecond):
		}
	}

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestHeartbeatLoop_RecoversAfterFailure(t *testing.T) {
	fake := newFakeRegistry()
	cfg := testConfig()
	cfg.HeartbeatInterval = 20 * time.Millisecond
	cfg.HeartbeatBackoffInitial = 10 * time.Millisecond
	cfg.HeartbeatBackoffMax = 40 * time.Millisecond
	c := newTestClient(t, cfg, fake)

	fake.setHeartbeatErr(errors.ConnectionFailed("registry", nil))
	if err := c.Start(t.Context()); err != nil {
		t.Fatalf("start: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	fake.setHeartbeatErr(nil)

	deadline := time.After(2 * time.Second)
	for fake.heartbeatCount() < 1 {
		select {
		case <-deadline:
			t.Fatal("expected heartbeat to recover after failures")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestStop_DeregistersBestEffort(t *testing.T) {
	fake := newFakeRegistry()
	c := newTestClient(t, testConfig(), fake)

	if err := c.Start(t.Context()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.deregistered) != 1 || fake.deregistered[0] != "user-service-1" {
		t.Errorf("expected deregistration of user-service-1, got %v", fake.deregistered)
	}
}

func TestStop_Idempotent(t *testing.T) {
	c := newTestClient(t, testConfig(), newFakeRegistry())
	if err := c.Stop(context.Background()); err != nil {
		t.Errorf("stopping an unstarted client should be a no-op, got %v", err)
	}
}

func TestResolve_NoHealthyInstances(t *testing.T) {
	c := newTestClient(t, testConfig(), newFakeRegistry())

	_, err := c.Resolve(t.Context(), "config-service")
	if !errors.HasCode(err, errors.ErrCodeServiceUnavailable) {
		t.Errorf("expected SERVICE_UNAVAILABLE, got %v", err)
	}
}

func TestResolve_RoundRobinCyclesInstances(t *testing.T) {
	fake := newFakeRegistry()
	fake.instances["config-service"] = []registry.Registration{
		{ServiceName: "config-service", InstanceID: "cfg-1", Host: "10.0.0.1", Port: 9000},
		{ServiceName: "config-service", InstanceID: "cfg-2", Host: "10.0.0.2", Port: 9000},
		{ServiceName: "config-service", InstanceID: "cfg-3", Host: "10.0.0.3", Port: 9000},
	}
	cfg := testConfig()
	cfg.Strategy = StrategyRoundRobin
	c := newTestClient(t, cfg, fake)

	seen := make(map[string]int)
	for i := 0; i < 6; i++ {
		inst, err := c.Resolve(t.Context(), "config-service")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		seen[inst.InstanceID]++
	}
	for _, id := range []string{"cfg-1", "cfg-2", "cfg-3"} {
		if seen[id] != 2 {
			t.Errorf("expected instance %s picked twice over 6 resolves, got %d", id, seen[id])
		}
	}
}

func TestResolve_RandomStaysWithinCandidates(t *testing.T) {
	fake := newFakeRegistry()
	fake.instances["config-service"] = []registry.Registration{
		{ServiceName: "config-service", InstanceID: "cfg-1", Host: "10.0.0.1", Port: 9000},
		{ServiceName: "config-service", InstanceID: "cfg-2", Host: "10.0.0.2", Port: 9000},
	}
	c := newTestClient(t, testConfig(), fake)

	for i := 0; i < 20; i++ {
		inst, err := c.Resolve(t.Context(), "config-service")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if inst.InstanceID != "cfg-1" && inst.InstanceID != "cfg-2" {
			t.Fatalf("resolved unknown instance %q", inst.InstanceID)
		}
	}
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"status":"degraded"}`))
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	port, _ := strconv.Atoi(u.Port())

	fake := newFakeRegistry()
	fake.instances["config-service"] = []registry.Registration{
		{ServiceName: "config-service", InstanceID: "cfg-1", Host: u.Hostname(), Port: port},
	}
	c := newTestClient(t, testConfig(), fake)

	if got := c.HealthCheck(t.Context(), "config-service"); got != health.StatusDegraded {
		t.Errorf("expected degraded from probe, got %s", got)
	}
	if got := c.HealthCheck(t.Context(), "missing-service"); got != health.StatusUnhealthy {
		t.Errorf("expected unhealthy for unresolvable service, got %s", got)
	}
}

func TestResolvePath(t *testing.T) {
	fake := newFakeRegistry()
	fake.instances["config-service"] = []registry.Registration{
		{ServiceName: "config-service", InstanceID: "cfg-1", Host: "10.0.0.1", Port: 9000},
	}
	c := newTestClient(t, testConfig(), fake)

	u, err := c.ResolvePath(t.Context(), "config-service", "api/v1/configurations")
	if err != nil {
		t.Fatalf("resolve path: %v", err)
	}
	if u != "http://10.0.0.1:9000/api/v1/configurations" {
		t.Errorf("unexpected url %q", u)
	}
}

func TestResolveURL(t *testing.T) {
	fake := newFakeRegistry()
	fake.instances["config-service"] = []registry.Registration{
		{ServiceName: "config-service", InstanceID: "cfg-1", Host: "10.0.0.1", Port: 9000},
	}
	c := newTestClient(t, testConfig(), fake)

	url, err := c.ResolveURL(t.Context(), "config-service")
	if err != nil {
		t.Fatalf("resolve url: %v", err)
	}
	if url != "http://10.0.0.1:9000" {
		t.Errorf("unexpected url %q", url)
	}
}
