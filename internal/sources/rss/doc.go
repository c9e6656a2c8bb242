// Package rss fetches and parses RSS 2.0 and Atom feeds as a content
// source. Feeds carry no engagement metrics and cost no API budget.
package rss
