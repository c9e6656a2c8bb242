// Package services provides the shared error taxonomy used by pipeline
// components to classify failures.
package services
