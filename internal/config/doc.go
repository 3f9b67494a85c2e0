// Package config loads, normalizes, and validates jellywatch daemon configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// JELLYWATCH_API_TOKEN. Media-server credentials and monitor toggles are not
// part of this file: they live in the settings store so they can be edited at
// runtime. JELLYFIN_URL and JELLYFIN_API_KEY are only read here to seed that
// store on first start.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
