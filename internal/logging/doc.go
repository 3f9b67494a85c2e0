// Package logging assembles structured slog loggers and formatting helpers used
// across jellywatch.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so monitor jobs and API handlers tag their
// lines with job IDs and request IDs. The daemon logger fans out to the console
// and to a JSON log file at the same time.
package logging
