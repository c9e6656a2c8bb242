// Package storage persists subscriptions, captured content, fetch runs,
// the budget ledger, and runtime settings in SQLite.
package storage
