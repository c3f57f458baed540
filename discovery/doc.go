// Package discovery lets a service register itself with the registry, keep
// its registration alive with heartbeats, and resolve other services to
// concrete instances.
//
// Start registers the service and launches a background heartbeat loop; a
// failed heartbeat retries with capped exponential backoff until the loop is
// stopped. Stop cancels the loop and makes a best-effort deregistration.
// Resolve picks one healthy instance per call using the configured strategy.
package discovery
