// Package validation provides a chainable field validator producing a single
// coded validation error. It backs local, network-free checks such as
// registration input and ServiceConfig validation.
package validation
