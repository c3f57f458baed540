package health

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/campushq/corekit/errors"
	"github.com/campushq/corekit/logger"
)

func newTestManager(t *testing.T) (*Manager, *time.Time) {
	t.Helper()
	m := NewManager(logger.NewDefault("test"))
	clock := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }
	return m, &clock
}

func passing(_ context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(_ context.Context) error { return errors.New(msg) }
}

func TestRunAll_AllHealthy(t *testing.T) {
	m, _ := newTestManager(t)
	m.RegisterCheck("database", passing, CheckConfig{Critical: true})
	m.RegisterCheck("memory", passing, CheckConfig{})

	report := m.RunAll(context.Background(), true)
	if report.Status != StatusHealthy {
		t.Errorf("expected healthy aggregate, got %s", report.Status)
	}
	if len(report.Checks) != 2 {
		t.Errorf("expected 2 results, got %d", len(report.Checks))
	}
}

func TestRunAll_CriticalFailureIsUnhealthy(t *testing.T) {
	m, _ := newTestManager(t)
	m.RegisterCheck("database", failing("connection refused"), CheckConfig{Critical: true})
	m.RegisterCheck("memory", passing, CheckConfig{})

	report := m.RunAll(context.Background(), true)
	if report.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy aggregate, got %s", report.Status)
	}
	if got := report.FailingChecks(); len(got) != 1 || got[0] != "database" {
		t.Errorf("expected [database] failing, got %v", got)
	}
}

func TestRunAll_NonCriticalFailureIsDegraded(t *testing.T) {
	m, _ := newTestManager(t)
	m.RegisterCheck("database", passing, CheckConfig{Critical: true})
	m.RegisterCheck("disk", failing("low space"), CheckConfig{})

	report := m.RunAll(context.Background(), true)
	if report.Status != StatusDegraded {
		t.Errorf("expected degraded aggregate, got %s", report.Status)
	}
}

func TestRunAll_CachesWithinTTL(t *testing.T) {
	m, clock := newTestManager(t)

	var calls atomic.Int32
	m.RegisterCheck("counted", func(_ context.Context) error {
		calls.Add(1)
		return nil
	}, CheckConfig{CacheTTL: 10 * time.Second})

	m.RunAll(context.Background(), true)
	m.RunAll(context.Background(), true)
	if calls.Load() != 1 {
		t.Errorf("expected 1 execution within TTL, got %d", calls.Load())
	}

	*clock = clock.Add(11 * time.Second)
	m.RunAll(context.Background(), true)
	if calls.Load() != 2 {
		t.Errorf("expected re-execution after TTL, got %d", calls.Load())
	}
}

func TestRunAll_FreshBypassesCache(t *testing.T) {
	m, _ := newTestManager(t)

	var calls atomic.Int32
	m.RegisterCheck("counted", func(_ context.Context) error {
		calls.Add(1)
		return nil
	}, CheckConfig{CacheTTL: time.Minute})

	m.RunAll(context.Background(), true)
	m.RunAll(context.Background(), false)
	if calls.Load() != 2 {
		t.Errorf("expected fresh run to re-probe, got %d calls", calls.Load())
	}
}

func TestResult_MarshalsDurationMillis(t *testing.T) {
	res := Result{Name: "database", Status: StatusHealthy, Duration: 150 * time.Millisecond}

	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got, ok := decoded["duration_ms"].(float64); !ok || got != 150 {
		t.Errorf("expected duration_ms 150, got %v", decoded["duration_ms"])
	}
}

func TestRunOne_BypassesCache(t *testing.T) {
	m, _ := newTestManager(t)

	var calls atomic.Int32
	m.RegisterCheck("counted", func(_ context.Context) error {
		calls.Add(1)
		return nil
	}, CheckConfig{CacheTTL: time.Minute})

	m.RunAll(context.Background(), true)
	if _, err := m.RunOne(context.Background(), "counted"); err != nil {
		t.Fatalf("run one: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected RunOne to bypass cache, got %d calls", calls.Load())
	}
}

func TestRunOne_UnknownCheck(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.RunOne(context.Background(), "nope")
	if !apperrors.HasCode(err, apperrors.ErrCodeUnknownCheck) {
		t.Errorf("expected UNKNOWN_CHECK, got %v", err)
	}
}

func TestExecute_Timeout(t *testing.T) {
	m, _ := newTestManager(t)
	m.RegisterCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(time.Second)
		return ctx.Err()
	}, CheckConfig{Timeout: 50 * time.Millisecond})

	res, err := m.RunOne(context.Background(), "slow")
	if err != nil {
		t.Fatalf("run one: %v", err)
	}
	if res.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy on timeout, got %s", res.Status)
	}
	if res.Message != "timeout" {
		t.Errorf("expected timeout message, got %q", res.Message)
	}
}

func TestExecute_PanicBecomesFailure(t *testing.T) {
	m, _ := newTestManager(t)
	m.RegisterCheck("boom", func(_ context.Context) error {
		panic("probe exploded")
	}, CheckConfig{})

	res, err := m.RunOne(context.Background(), "boom")
	if err != nil {
		t.Fatalf("run one: %v", err)
	}
	if res.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy on panic, got %s", res.Status)
	}
}

func TestDeregisterCheck(t *testing.T) {
	m, _ := newTestManager(t)
	m.RegisterCheck("database", passing, CheckConfig{Critical: true})
	m.DeregisterCheck("database")

	report := m.RunAll(context.Background(), true)
	if len(report.Checks) != 0 {
		t.Errorf("expected no checks, got %d", len(report.Checks))
	}
	if report.Status != StatusHealthy {
		t.Errorf("expected healthy aggregate with no checks, got %s", report.Status)
	}
}

func TestMemoryCheck(t *testing.T) {
	if err := MemoryCheck(0)(context.Background()); err != nil {
		t.Errorf("expected default limit to pass, got %v", err)
	}
	if err := MemoryCheck(1)(context.Background()); err == nil {
		t.Error("expected 1-byte limit to fail")
	}
}

func TestDiskCheck(t *testing.T) {
	if err := DiskCheck("/tmp", 1)(context.Background()); err != nil {
		t.Errorf("expected 1-byte requirement to pass, got %v", err)
	}
	if err := DiskCheck("/does/not/exist", 0)(context.Background()); err == nil {
		t.Error("expected statfs failure on missing path")
	}
}
