// Package config loads, normalizes, and validates visuallab configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// VISUALLAB_BACKEND_URL and VISUALLAB_API_TOKEN. The Config type centralizes
// every knob the daemon and CLI need so the backend address, state directory,
// and artifact location are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
