// Package settings persists the jellywatch configuration rows in SQLite.
//
// The store owns the single Jellyfin service row (URL, API key, per-monitor
// flags and polling timeframes), the single SMTP row, the people list and the
// auto-send schedule attached to each person. Schema changes ship as embedded
// migrations applied on Open.
//
// A missing service row is an explicit state: Service returns ErrNotConfigured
// instead of a zero value so callers can tell "never saved" from "saved with
// every monitor disabled".
package settings
