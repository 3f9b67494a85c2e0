// Package jellyfin is a read-only client for the handful of Jellyfin endpoints
// jellywatch polls.
//
// Every request is a GET authenticated with the X-Emby-Token header. A 200
// response yields the raw JSON body; any other status, transport failure or
// undecodable body comes back as an error value. Optional wrappers bound the
// request rate (golang.org/x/time/rate) and stop hammering an unreachable
// server (sony/gobreaker).
package jellyfin
