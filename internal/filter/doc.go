// Package filter deduplicates fetched candidates and scores them for
// quality and subscription relevance.
package filter
