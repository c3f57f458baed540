// Package resilience provides patterns for building fault-tolerant clients:
// bounded retry with exponential backoff, a reusable backoff schedule for
// long-running loops, and a circuit breaker.
package resilience
