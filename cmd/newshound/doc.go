// Command newshound is the CLI for the newshound content monitor: it runs
// the daemon, manages subscriptions and runtime settings, and triggers
// one-shot fetch, enrichment, and delivery passes.
package main
