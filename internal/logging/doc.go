// Package logging provides slog construction with console and JSON handlers,
// standardized field names, and context-derived attributes shared across the
// service.
package logging
