// Package logger provides structured logging for corekit services built on
// rs/zerolog. It supports console and JSON output, component-tagged child
// loggers, and a package-level global for code without an injected logger.
package logger
