package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows cleartext connections, for development collectors.
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider. The returned
// provider should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// RegistryMetrics holds the instruments recorded by the registry and the
// discovery and configuration clients.
type RegistryMetrics struct {
	registrationTotal metric.Int64Counter
	heartbeatTotal    metric.Int64Counter
	evictionTotal     metric.Int64Counter
	lookupDuration    metric.Float64Histogram
	instanceCount     metric.Int64UpDownCounter
	configCacheTotal  metric.Int64Counter
}

// NewRegistryMetrics creates the instruments on the given meter.
func NewRegistryMetrics(meter metric.Meter) (*RegistryMetrics, error) {
	registrationTotal, err := meter.Int64Counter("registry.registration.total",
		metric.WithDescription("Total number of instance registrations"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating registry.registration.total counter: %w", err)
	}

	heartbeatTotal, err := meter.Int64Counter("registry.heartbeat.total",
		metric.WithDescription("Total number of heartbeats received"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating registry.heartbeat.total counter: %w", err)
	}

	evictionTotal, err := meter.Int64Counter("registry.eviction.total",
		metric.WithDescription("Total number of stale instances evicted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating registry.eviction.total counter: %w", err)
	}

	lookupDuration, err := meter.Float64Histogram("registry.lookup.duration",
		metric.WithDescription("Duration of registry lookups in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating registry.lookup.duration histogram: %w", err)
	}

	instanceCount, err := meter.Int64UpDownCounter("registry.instances",
		metric.WithDescription("Number of currently registered instances"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating registry.instances gauge: %w", err)
	}

	configCacheTotal, err := meter.Int64Counter("config.cache.total",
		metric.WithDescription("Configuration cache hits and misses"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating config.cache.total counter: %w", err)
	}

	return &RegistryMetrics{
		registrationTotal: registrationTotal,
		heartbeatTotal:    heartbeatTotal,
		evictionTotal:     evictionTotal,
		lookupDuration:    lookupDuration,
		instanceCount:     instanceCount,
		configCacheTotal:  configCacheTotal,
	}, nil
}

// RecordRegistration records a registration and adjusts the instance gauge.
// The gauge carries no attributes so registrations, deregistrations and
// evictions all move the same series.
func (m *RegistryMetrics) RecordRegistration(ctx context.Context, service string) {
	m.registrationTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("service", service)))
	m.instanceCount.Add(ctx, 1)
}

// RecordDeregistration adjusts the instance gauge down.
func (m *RegistryMetrics) RecordDeregistration(ctx context.Context) {
	m.instanceCount.Add(ctx, -1)
}

// RecordHeartbeat records one heartbeat.
func (m *RegistryMetrics) RecordHeartbeat(ctx context.Context) {
	m.heartbeatTotal.Add(ctx, 1)
}

// RecordEvictions records evictions from one sweep and adjusts the gauge.
func (m *RegistryMetrics) RecordEvictions(ctx context.Context, count int) {
	if count == 0 {
		return
	}
	m.evictionTotal.Add(ctx, int64(count))
	m.instanceCount.Add(ctx, -int64(count))
}

// RecordLookup records a lookup and its duration.
func (m *RegistryMetrics) RecordLookup(ctx context.Context, service string, duration time.Duration) {
	m.lookupDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("service", service),
	))
}

// RecordConfigCache records a configuration cache hit or miss.
func (m *RegistryMetrics) RecordConfigCache(ctx context.Context, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.configCacheTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
