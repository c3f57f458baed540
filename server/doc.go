// Package server provides the HTTP server shared by the registry daemon and
// the services embedding this kit. It serves Gin routes over h2c so plain
// HTTP/2 clients work without TLS, and applies the standard middleware stack
// of recovery, request IDs, and request logging.
package server
