// Package logging wires log/slog with newshound's console and JSON
// handlers plus shared attribute helpers.
package logging
