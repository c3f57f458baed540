// Package observability initializes OpenTelemetry metrics and tracing over
// OTLP HTTP and defines the instruments recorded by the registry and the
// clients: registrations, heartbeats, evictions, lookups, and configuration
// cache traffic.
package observability
