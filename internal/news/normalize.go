package news

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// dedupBucket is the publish-time quantum of the dedup key: the same
// story republished within one bucket collides on purpose.
const dedupBucket = 5 * time.Minute

// normalizeTitle lowercases the title, strips non-alphanumeric runes,
// and collapses whitespace.
func normalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	pendingSpace := false
	for _, r := range strings.ToLower(title) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n':
			pendingSpace = b.Len() > 0
		}
	}
	return b.String()
}

// normalizeURL reduces a link to lowercased host + path, dropping the
// scheme, query, and fragment. Unparseable input falls back to the
// trimmed raw string.
func normalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	path := strings.TrimSuffix(u.Path, "/")
	return strings.ToLower(u.Host) + path
}

// fingerprint derives the stable item ID from the dedup triple.
// Identical derivations collide intentionally.
func fingerprint(title, rawURL string, publishedAt time.Time) string {
	bucket := publishedAt.Unix() / int64(dedupBucket/time.Second)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\n%s\n%d", normalizeTitle(title), normalizeURL(rawURL), bucket)))
	return hex.EncodeToString(sum[:16])
}
