// Package api is the HTTP surface of the jellywatch daemon. It owns the chi
// router, middleware and wire-format types; the daemon supplies a Backend and
// a settings Store and manages the listener.
//
// # Routes
//
// /api/status, /api/settings/service, /api/settings/smtp, /api/people,
// /api/auto-sends, /api/jobs and /api/health/database expose daemon state and
// settings.
// /services/sync-now triggers a library sync, /dashboard and
// /dashboard/libraries read from Jellyfin, /metrics serves Prometheus.
//
// # Middleware
//
// Every request gets an X-Request-ID (generated when absent) that is also
// stamped into the request context for log correlation. When a token is
// configured, everything except /metrics requires "Authorization: Bearer".
// Mutating routes are rate limited per client IP.
//
// Client is the typed caller used by the jellywatch CLI.
//
// # Design Notes
//
// JSON uses snake_case tags. Errors are always {"error": "..."} with a status
// derived from the services error markers, so an unconfigured server answers
// 409 "please configure services".
package api
