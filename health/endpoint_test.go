package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campushq/corekit/logger"
)

func newHealthServer(t *testing.T, m *Manager) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	NewEndpoint(m, "1.0.0").RegisterRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestEndpoint_Liveness(t *testing.T) {
	m := NewManager(logger.NewDefault("test"))
	m.RegisterCheck("database", failing("down"), CheckConfig{Critical: true})
	srv := newHealthServer(t, m)

	// Liveness ignores check results entirely.
	if code := getJSON(t, srv.URL+"/health/live", nil); code != http.StatusOK {
		t.Errorf("expected 200 from liveness, got %d", code)
	}
}

func TestEndpoint_ReadinessGatesOnCritical(t *testing.T) {
	m := NewManager(logger.NewDefault("test"))
	m.RegisterCheck("database", failing("connection refused"), CheckConfig{Critical: true})
	srv := newHealthServer(t, m)

	var body struct {
		Status        Status   `json:"status"`
		FailingChecks []string `json:"failing_checks"`
	}
	code := getJSON(t, srv.URL+"/health/ready", &body)
	if code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", code)
	}
	if len(body.FailingChecks) != 1 || body.FailingChecks[0] != "database" {
		t.Errorf("expected failing_checks [database], got %v", body.FailingChecks)
	}
}

func TestEndpoint_ReadinessDegradedStillReady(t *testing.T) {
	m := NewManager(logger.NewDefault("test"))
	m.RegisterCheck("disk", failing("low space"), CheckConfig{})
	srv := newHealthServer(t, m)

	var body struct {
		Status Status `json:"status"`
	}
	code := getJSON(t, srv.URL+"/health/ready", &body)
	if code != http.StatusOK {
		t.Errorf("expected 200 for degraded, got %d", code)
	}
	if body.Status != StatusDegraded {
		t.Errorf("expected degraded status, got %s", body.Status)
	}
}

func TestEndpoint_Detailed(t *testing.T) {
	m := NewManager(logger.NewDefault("test"))
	m.RegisterCheck("database", passing, CheckConfig{Critical: true})
	m.RegisterCheck("memory", func(ctx context.Context) error { return MemoryCheck(0)(ctx) }, CheckConfig{})
	srv := newHealthServer(t, m)

	var report Report
	code := getJSON(t, srv.URL+"/health/detailed", &report)
	if code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}
	if len(report.Checks) != 2 {
		t.Errorf("expected 2 checks in breakdown, got %d", len(report.Checks))
	}
	for _, c := range report.Checks {
		if c.Status != StatusHealthy {
			t.Errorf("check %s: expected healthy, got %s", c.Name, c.Status)
		}
	}
}

func TestEndpoint_Health(t *testing.T) {
	m := NewManager(logger.NewDefault("test"))
	// A failing critical check must not hide the instance from plain
	// /health pollers; only readiness gates on check results.
	m.RegisterCheck("database", failing("connection refused"), CheckConfig{Critical: true})
	srv := newHealthServer(t, m)

	var body struct {
		Status  Status `json:"status"`
		Version string `json:"version"`
	}
	code := getJSON(t, srv.URL+"/health", &body)
	if code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}
	if body.Status != StatusHealthy || body.Version != "1.0.0" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestEndpoint_DetailedFreshReprobes(t *testing.T) {
	m := NewManager(logger.NewDefault("test"))
	var calls atomic.Int32
	m.RegisterCheck("counted", func(_ context.Context) error {
		calls.Add(1)
		return nil
	}, CheckConfig{CacheTTL: time.Minute})
	srv := newHealthServer(t, m)

	getJSON(t, srv.URL+"/health/detailed", nil)
	getJSON(t, srv.URL+"/health/detailed", nil)
	if calls.Load() != 1 {
		t.Fatalf("expected cached detailed reads, got %d probes", calls.Load())
	}

	getJSON(t, srv.URL+"/health/detailed?fresh=true", nil)
	if calls.Load() != 2 {
		t.Errorf("expected fresh=true to re-probe, got %d probes", calls.Load())
	}
}
