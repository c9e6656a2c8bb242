package filter

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"newshound/internal/sources"
)

const fingerprintBodyRunes = 200

// Fingerprint produces a near-duplicate key from the candidate's title and
// leading body text, case- and whitespace-insensitive. Reposts of the same
// text under different external IDs collapse onto one fingerprint.
func Fingerprint(c *sources.Candidate) string {
	body := []rune(c.Body)
	if len(body) > fingerprintBodyRunes {
		body = body[:fingerprintBodyRunes]
	}
	normalized := strings.ToLower(c.Title + "|" + string(body))
	normalized = strings.Join(strings.Fields(normalized), " ")
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
