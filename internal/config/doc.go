// Package config loads, normalizes, and validates rhythmset configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the RHYTHMSET_DATA_DIR environment
// fallback. The Config type centralizes every knob the preprocessing and split
// stages need, so label sets, windowing parameters, allocation ratios and
// validation floors are resolved in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical label sets, and clear validation errors.
package config
