// Package config loads, normalizes, and validates newshound's TOML
// configuration.
package config
