// Package registry implements the in-memory service registry: registration,
// heartbeat refresh, health-filtered lookup, and stale-entry eviction.
//
// The registry holds one Registration per running instance. An instance that
// stops heartbeating turns stale after the stale threshold and is evicted by
// the periodic sweep once the eviction grace has passed. Remote processes
// talk to the registry through the HTTP handler and Client in this package;
// in-process callers use InMemory directly. Both sides share the Registry
// interface.
package registry
