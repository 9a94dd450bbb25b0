package scanner

import "strings"

// buildUniverse merges live tick symbols, the user watchlist, and the
// mover seed list in that precedence order, normalized to upper case
// and deduplicated. A positive limit caps the result.
func buildUniverse(live, watchlist, seed []string, limit int) []string {
	out := make([]string, 0, len(live)+len(watchlist)+len(seed))
	seen := make(map[string]struct{}, cap(out))
	add := func(symbols []string) {
		for _, s := range symbols {
			sym := strings.ToUpper(strings.TrimSpace(s))
			if sym == "" {
				continue
			}
			if _, ok := seen[sym]; ok {
				continue
			}
			seen[sym] = struct{}{}
			out = append(out, sym)
		}
	}
	add(live)
	add(watchlist)
	add(seed)

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
