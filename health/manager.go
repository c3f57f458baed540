package health

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/campushq/corekit/errors"
	"github.com/campushq/corekit/logger"
)

// Status is the outcome of a check or of the aggregate.
type Status string

const (
	// StatusHealthy means the check passed.
	StatusHealthy Status = "healthy"
	// StatusDegraded means only non-critical checks failed. Aggregate only.
	StatusDegraded Status = "degraded"
	// StatusUnhealthy means the check failed.
	StatusUnhealthy Status = "unhealthy"
)

// CheckFunc probes one dependency. A nil return means healthy; the returned
// message is attached to the result either way.
type CheckFunc func(ctx context.Context) error

// Result is the outcome of a single check run.
type Result struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Critical  bool          `json:"critical"`
	Duration  time.Duration `json:"-"`
	CheckedAt time.Time     `json:"checked_at"`
}

// MarshalJSON reports the duration in milliseconds to match the field name.
func (r Result) MarshalJSON() ([]byte, error) {
	type alias Result
	return json.Marshal(struct {
		alias
		DurationMS int64 `json:"duration_ms"`
	}{alias(r), r.Duration.Milliseconds()})
}

// Report is the aggregate of all registered checks.
type Report struct {
	Status    Status    `json:"status"`
	Checks    []Result  `json:"checks"`
	CheckedAt time.Time `json:"checked_at"`
}

// FailingChecks returns the names of the checks that did not pass.
func (r Report) FailingChecks() []string {
	var failing []string
	for _, c := range r.Checks {
		if c.Status != StatusHealthy {
			failing = append(failing, c.Name)
		}
	}
	return failing
}

// CheckConfig configures one registered check.
type CheckConfig struct {
	// Critical marks the check as gating readiness. A failing critical check
	// makes the aggregate unhealthy; a failing non-critical one only degrades it.
	Critical bool
	// Timeout bounds one execution of the check. Default: 3s.
	Timeout time.Duration
	// CacheTTL is how long a result is served from cache. Default: 10s.
	CacheTTL time.Duration
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *CheckConfig) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 3 * time.Second
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 10 * time.Second
	}
}

type check struct {
	name string
	fn   CheckFunc
	cfg  CheckConfig

	mu     sync.Mutex
	cached *Result
}

// Manager owns the registered checks and their cached results.
type Manager struct {
	log *logger.Logger

	mu     sync.RWMutex
	checks map[string]*check

	// now is replaceable in tests.
	now func() time.Time
}

// NewManager creates an empty check manager.
func NewManager(log *logger.Logger) *Manager {
	return &Manager{
		log:    log.WithComponent("health"),
		checks: make(map[string]*check),
		now:    time.Now,
	}
}

// RegisterCheck adds a named check. Registering the same name again replaces
// the previous check and drops its cached result.
func (m *Manager) RegisterCheck(name string, fn CheckFunc, cfg CheckConfig) {
	cfg.ApplyDefaults()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = &check{name: name, fn: fn, cfg: cfg}
}

// DeregisterCheck removes a named check. Removing an absent check is a no-op.
func (m *Manager) DeregisterCheck(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checks, name)
}

// RunAll executes every registered check and returns the aggregate report.
// With useCache, results still inside their TTL are served from cache;
// without it, every check re-probes.
func (m *Manager) RunAll(ctx context.Context, useCache bool) Report {
	m.mu.RLock()
	checks := make([]*check, 0, len(m.checks))
	for _, c := range m.checks {
		checks = append(checks, c)
	}
	m.mu.RUnlock()

	results := make([]Result, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func(i int, c *check) {
			defer wg.Done()
			results[i] = m.resultFor(ctx, c, useCache)
		}(i, c)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	return Report{
		Status:    aggregate(results),
		Checks:    results,
		CheckedAt: m.now(),
	}
}

// RunOne executes a single check by name, bypassing the cache.
func (m *Manager) RunOne(ctx context.Context, name string) (Result, error) {
	m.mu.RLock()
	c, ok := m.checks[name]
	m.mu.RUnlock()
	if !ok {
		return Result{}, errors.UnknownCheck(name)
	}
	return m.resultFor(ctx, c, false), nil
}

func (m *Manager) resultFor(ctx context.Context, c *check, useCache bool) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := m.now()
	if useCache && c.cached != nil && now.Sub(c.cached.CheckedAt) < c.cfg.CacheTTL {
		return *c.cached
	}

	res := m.execute(ctx, c)
	c.cached = &res
	return res
}

// execute runs a check in its own goroutine so a hung probe cannot stall the
// report past the configured timeout, and a panicking probe is recorded as a
// failure instead of crashing the process.
func (m *Manager) execute(ctx context.Context, c *check) Result {
	start := m.now()
	began := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("check panicked: %v", r)
			}
		}()
		done <- c.fn(ctx)
	}()

	res := Result{
		Name:      c.name,
		Status:    StatusHealthy,
		Critical:  c.cfg.Critical,
		CheckedAt: start,
	}

	select {
	case err := <-done:
		res.Duration = time.Since(began)
		if err != nil {
			res.Status = StatusUnhealthy
			res.Message = err.Error()
		}
	case <-ctx.Done():
		res.Duration = time.Since(began)
		res.Status = StatusUnhealthy
		res.Message = "timeout"
	}

	if res.Status != StatusHealthy {
		m.log.Warn("health check failed", logger.Fields(
			"check", c.name,
			"critical", c.cfg.Critical,
			"message", res.Message,
		))
	}
	return res
}

func aggregate(results []Result) Status {
	status := StatusHealthy
	for _, r := range results {
		if r.Status == StatusHealthy {
			continue
		}
		if r.Critical {
			return StatusUnhealthy
		}
		status = StatusDegraded
	}
	return status
}
