package registry

import (
	"context"
	"time"

	"github.com/campushq/corekit/component"
	"github.com/campushq/corekit/logger"
	"github.com/campushq/corekit/observability"
)

// Sweeper periodically runs the registry's stale-entry sweep.
type Sweeper struct {
	registry *InMemory
	interval time.Duration
	log      *logger.Logger
	metrics  *observability.RegistryMetrics

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a sweeper over the given registry. Interval defaults to 30s.
func NewSweeper(reg *InMemory, interval time.Duration, log *logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{
		registry: reg,
		interval: interval,
		log:      log.WithComponent("sweeper"),
	}
}

// WithMetrics enables metric recording on the sweeper.
func (s *Sweeper) WithMetrics(m *observability.RegistryMetrics) *Sweeper {
	s.metrics = m
	return s
}

// Name implements component.Component.
func (s *Sweeper) Name() string { return "registry-sweeper" }

// Start launches the sweep loop. It returns immediately.
func (s *Sweeper) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)
	s.log.Info("sweeper started", logger.Fields("interval", s.interval.String()))
	return nil
}

// Stop cancels the sweep loop and waits for it to exit.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health implements component.Component.
func (s *Sweeper) Health(_ context.Context) component.Health {
	h := component.Health{Name: s.Name(), Status: component.StatusHealthy}
	select {
	case <-s.done:
		h.Status = component.StatusUnhealthy
		h.Message = "sweep loop stopped"
	default:
		if s.done == nil {
			h.Status = component.StatusUnhealthy
			h.Message = "not started"
		}
	}
	return h
}

var _ component.Component = (*Sweeper)(nil)

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted, err := s.registry.Sweep(ctx)
			if err != nil {
				s.log.Error("sweep failed", logger.ErrorFields("sweep", err))
				continue
			}
			if s.metrics != nil {
				s.metrics.RecordEvictions(ctx, evicted)
			}
			if evicted > 0 {
				s.log.Info("sweep evicted instances", logger.Fields("evicted", evicted))
			}
		}
	}
}
