// Package logging configures slog for herald and provides the attribute
// helpers used across the codebase.
//
// Two output formats are supported: a human-oriented console format for
// interactive use and JSON for log shipping. Component loggers carry a
// standardized "component" attribute so dispatcher, adapter, and store
// records can be filtered apart.
package logging
