// Package budget enforces the daily API unit ceiling over the persisted
// spend ledger.
package budget
