// Package settings resolves runtime configuration values by layering
// database overrides on top of file configuration defaults.
package settings
