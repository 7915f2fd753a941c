// Package logging wraps log/slog with the standardized attribute keys,
// component loggers, and context decoration the pipeline uses throughout.
// It also provides a progress sampler so stage progress callbacks do not
// flood the log output.
package logging
