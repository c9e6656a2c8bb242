// Package twitter adapts the twitterapi.io search API to the sources
// interfaces.
package twitter
