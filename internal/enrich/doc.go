// Package enrich analyzes stored items with a language model. The queue
// processes unenriched items in priority order; failures stay unenriched
// and are retried on a later batch.
package enrich
