// Package health runs named health checks and aggregates their results.
//
// Checks are registered with a criticality flag and an execution timeout.
// Results are cached per check with a TTL so the HTTP surface can be polled
// aggressively without re-running expensive probes. The aggregate status is
// unhealthy when any critical check fails, degraded when only non-critical
// checks fail, and healthy otherwise.
package health
