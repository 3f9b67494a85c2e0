// Package monitor implements the scheduled callbacks that poll Jellyfin.
//
// Each callback re-reads the stored service settings, skips when its monitor
// flag is off, and otherwise fetches a fixed endpoint. Operations return
// explicit results and errors; Job adapts them into scheduler callbacks that
// log the outcome and never panic or write persisted state.
package monitor
