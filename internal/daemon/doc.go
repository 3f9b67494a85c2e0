// Package daemon coordinates the long-running jellywatch process.
//
// It wires configuration, the settings store, the Jellyfin client stack
// (shared circuit breaker and rate limiter), the monitor callbacks, the job
// scheduler and the HTTP API into a single lifecycle with flock-based locking
// to prevent multiple instances.
//
// On start the daemon seeds the service row from the config file when none is
// stored, then builds the job table from the stored settings. SaveService is
// the only write path for service settings while running: it persists the row
// and rebuilds the table from what was stored.
//
// Keep orchestration logic here: polling belongs to monitor, timing to
// scheduler and HTTP handling to api.
package daemon
