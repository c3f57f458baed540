// Package transport provides the HTTP transport used for cross-service calls:
// discovery lookups, remote configuration fetches, and health probes. The
// Doer interface keeps the transport pluggable so tests can substitute an
// in-memory fake without a real network.
package transport
