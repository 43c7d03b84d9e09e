// Package config loads, normalizes, and validates edaplot configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// EDAPLOT_KICAD_CLI. The Config type centralizes every knob the CLI and the
// HTTP service need so external tool locations, scratch directories and the
// render cache are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
