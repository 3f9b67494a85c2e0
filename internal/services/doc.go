// Package services defines shared utilities consumed by the media-server
// integration, the monitor jobs, and the HTTP API.
//
// Key responsibilities:
//   - Context helpers that stamp job identifiers and request correlation IDs
//     for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (configuration vs upstream vs validation) and mapped onto
//     API status codes.
//
// The jellyfin subpackage holds the media-server HTTP client itself.
package services
