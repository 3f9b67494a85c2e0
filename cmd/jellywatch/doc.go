// Package main hosts the jellywatch CLI entrypoint and command graph.
//
// The Cobra command tree translates terminal invocations into HTTP calls
// against the daemon API, runs the daemon in the foreground, and scaffolds
// configuration. Config resolution and the API client live in commandContext
// so subcommands only deal with presentation.
package main
