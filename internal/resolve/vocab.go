package resolve

import (
	"strings"

	"github.com/marketdesk/marketdesk/internal/symbols"
)

// defaultGeneralVocabulary is the built-in market-general term list. An
// article whose title and summary hit enough of these terms without a
// strong company signal is classified general rather than resolved.
// Configured vocabularies extend this list, they never replace it.
var defaultGeneralVocabulary = []string{
	"fed", "fomc", "federal", "reserve", "treasury",
	"rate", "rates", "inflation", "cpi", "gdp",
	"economy", "economic", "recession", "macro",
	"market", "markets", "stocks", "equities", "bonds", "commodities",
	"index", "indexes", "indices", "futures",
	"sector", "sectors",
	"dow", "nasdaq", "spy", "qqq", "vix",
	"bulls", "bears", "bullish", "bearish",
	"rally", "selloff", "sentiment",
	"yield", "yields", "tariffs",
	"jobs", "payrolls", "unemployment",
}

// buildVocabulary merges the default vocabulary with configured extras,
// normalized to single lowercase tokens.
func buildVocabulary(extra []string) map[string]struct{} {
	vocab := make(map[string]struct{}, len(defaultGeneralVocabulary)+len(extra))
	for _, term := range defaultGeneralVocabulary {
		vocab[term] = struct{}{}
	}
	for _, term := range extra {
		for _, token := range strings.Fields(symbols.Normalize(term)) {
			vocab[token] = struct{}{}
		}
	}
	return vocab
}

// buildStopwords uppercases the configured extra stopwords. The
// built-in blacklist lives in the symbols package; this set only holds
// the per-desk additions.
func buildStopwords(extra []string) map[string]struct{} {
	set := make(map[string]struct{}, len(extra))
	for _, word := range extra {
		word = strings.ToUpper(strings.TrimSpace(word))
		if word != "" {
			set[word] = struct{}{}
		}
	}
	return set
}
