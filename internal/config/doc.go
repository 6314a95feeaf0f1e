// Package config loads, normalizes, and validates assetflow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file, and honours
// ASSETFLOW_* environment fallbacks for secrets. The Config type centralizes
// every knob the daemon and CLI need: storage credentials, chunk limits,
// recipient lists, collaborator endpoints and database selection.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
