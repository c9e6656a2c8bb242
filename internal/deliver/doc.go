// Package deliver selects enriched items in the current delivery window,
// renders them into one markdown digest, and pushes it through the webhook
// sender.
package deliver
