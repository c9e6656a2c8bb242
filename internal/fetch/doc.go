// Package fetch runs subscription and explore fetch cycles: it pulls
// candidates from the source adapters under budget control, filters them,
// and persists the survivors.
package fetch
