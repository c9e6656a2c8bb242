// Package preflight verifies that the environment is ready before the
// daemon starts working: directories are writable, the database answers,
// and the configured integrations have credentials.
package preflight
