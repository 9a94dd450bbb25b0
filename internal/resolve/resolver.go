package resolve

import (
	"log/slog"
	"strings"
	"time"

	"github.com/marketdesk/marketdesk/internal/config"
	"github.com/marketdesk/marketdesk/internal/model"
	"github.com/marketdesk/marketdesk/internal/symbols"
)

// Acceptance thresholds.
const (
	acceptScore  = 60 // Minimum net score for the winner
	acceptMargin = 15 // Minimum lead over the runner-up

	// generalMinHits is how many distinct market-general vocabulary
	// terms the title and summary must contain before an article with
	// no strong company signal is classified general.
	generalMinHits = 3
)

// Resolver maps news items to at most one high-confidence symbol
// against the current directory snapshot.
type Resolver struct {
	cfg    config.ResolverConfig
	master symbols.Master
	logger *slog.Logger
	cache  *verdictCache

	stopwords map[string]struct{} // Configured additions to the built-in blacklist
	vocab     map[string]struct{} // Market-general vocabulary
}

// New creates a Resolver reading directory snapshots from master.
// Zero config fields fall back to the package defaults.
func New(cfg config.ResolverConfig, master symbols.Master, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = config.DefaultResolverCacheTTL
	}
	if cfg.CacheMaxEntries <= 0 {
		cfg.CacheMaxEntries = config.DefaultResolverCacheEntries
	}
	return &Resolver{
		cfg:       cfg,
		master:    master,
		logger:    logger,
		cache:     newVerdictCache(cfg.CacheTTL, cfg.CacheMaxEntries),
		stopwords: buildStopwords(cfg.Stopwords),
		vocab:     buildVocabulary(cfg.GeneralVocabulary),
	}
}

// Resolve computes the verdict for one news item. Verdicts are cached
// by content fingerprint until the TTL lapses or the cache is flushed.
func (r *Resolver) Resolve(item model.NewsItem) model.Verdict {
	key := cacheKey(item)
	if v, ok := r.cache.get(key); ok {
		v.NewsID = item.ID
		return v
	}

	v := r.compute(item)
	r.cache.put(key, v)
	r.logger.Debug("news item resolved",
		"news_id", item.ID,
		"ticker", v.Ticker,
		"reason", v.Reason,
		"score", v.Score,
	)
	return v
}

// TopCandidates returns up to k ranked candidates for an item without
// applying the acceptance rule. The first element, when it passes the
// score floor with enough margin, is what Resolve accepts.
func (r *Resolver) TopCandidates(item model.NewsItem, k int) []Candidate {
	ranked := r.rank(item)
	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// FlushCache drops every cached verdict. Wire it to the symbol
// master's swap callback so verdicts never outlive the snapshot they
// were computed against.
func (r *Resolver) FlushCache() {
	r.cache.flush()
}

// Stats returns verdict cache counters.
func (r *Resolver) Stats() CacheStats {
	return r.cache.stats()
}

// compute runs the full pipeline for one item.
func (r *Resolver) compute(item model.NewsItem) model.Verdict {
	verdict := model.Verdict{NewsID: item.ID, ResolvedAt: time.Now()}
	ranked := r.rank(item)

	if r.isGeneral(item, ranked) {
		verdict.IsGeneral = true
		verdict.Reason = model.ReasonGeneral
		return verdict
	}
	if len(ranked) == 0 {
		verdict.Reason = model.ReasonNoMatch
		return verdict
	}

	top := ranked[0]
	verdict.Score = top.Score
	var second float64
	if len(ranked) > 1 {
		second = ranked[1].Score
	}
	if top.Score < acceptScore || top.Score-second < acceptMargin {
		verdict.Reason = model.ReasonAmbiguous
		return verdict
	}

	verdict.Ticker = top.Symbol
	verdict.Confidence = top.Confidence
	verdict.Reason = model.ReasonResolved
	verdict.MatchType = top.MatchType
	verdict.Context = top.Context
	verdict.MatchedPhrase = top.MatchedPhrase
	return verdict
}

// rank runs stages strongest first and returns aggregated candidates.
// The fuzzy stage only fires when no text or URL signal produced a
// candidate, so a near-miss name can never outvote a real mention.
func (r *Resolver) rank(item model.NewsItem) []Candidate {
	snap := r.master.Snapshot()
	t := newTally()

	r.scanProvided(snap, t, item)
	r.scanTokens(snap, t, item)
	r.scanURL(snap, t, item)
	r.scanNames(snap, t, item.Title, model.ContextTitle)
	r.scanNames(snap, t, item.Summary, model.ContextSummary)

	if !t.hasAny(model.MatchCashtag, model.MatchSymbolToken, model.MatchURLHint, model.MatchCompanyName) {
		r.scanFuzzy(snap, t, item)
	}
	return t.ranked()
}

// isGeneral applies the market-general rule: enough distinct
// vocabulary hits across title and summary, and no candidate from a
// provider attachment, cashtag, or exact company name.
func (r *Resolver) isGeneral(item model.NewsItem, ranked []Candidate) bool {
	for _, c := range ranked {
		switch c.MatchType {
		case model.MatchProvider, model.MatchCashtag, model.MatchCompanyName:
			return false
		}
	}
	hits := make(map[string]struct{})
	for _, token := range strings.Fields(symbols.Normalize(item.Title + " " + item.Summary)) {
		if _, ok := r.vocab[token]; ok {
			hits[token] = struct{}{}
		}
	}
	return len(hits) >= generalMinHits
}

// isStopword checks the built-in blacklist plus configured additions.
func (r *Resolver) isStopword(phrase string) bool {
	if symbols.IsStopword(phrase) {
		return true
	}
	_, ok := r.stopwords[strings.ToUpper(phrase)]
	return ok
}
