// Package logging assembles structured slog loggers and formatting helpers used
// across assetflow services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so workflow and upload code can
// tag log lines with asset version IDs, upload session IDs, actors, and
// correlation IDs. The package also provides a no-op logger for tests.
package logging
