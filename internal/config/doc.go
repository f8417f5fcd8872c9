// Package config loads, normalizes, and validates fieldrec configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and derives the sonar stream and control URLs
// from the head address. Per-sensor pipeline constants (decimation, preview
// geometry, queue capacity) are not configuration and live with the sensor
// profiles.
package config
