// Package youtube adapts the YouTube Data API v3 to the sources interfaces.
package youtube
