// Package configclient fetches configuration values and feature flags from
// the configuration service, resolved through service discovery.
//
// Values are cached with a TTL. When a fetch fails, the client falls back to
// the stale cached value, then to the registered default, and only errors
// when neither exists. Feature flags are evaluated locally from their cached
// definition so percentage rollouts stay deterministic per user.
package configclient
