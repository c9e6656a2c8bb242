// Package sources defines the adapter boundary for content platforms and
// the normalized candidate model they produce.
package sources
