// Package daemon runs the background scheduler: periodic fetch, explore,
// and enrichment stages plus wall-clock digest delivery, with a file lock
// enforcing a single active instance.
package daemon
