package resolve

import (
	"regexp"
	"sort"
	"strings"

	"github.com/xrash/smetrics"

	"github.com/marketdesk/marketdesk/internal/model"
	"github.com/marketdesk/marketdesk/internal/symbols"
)

// Stage base scores, bonuses, and penalties.
const (
	scoreProvider     = 100 // Upstream attached the symbol itself
	scoreCashtag      = 95  // $SYM
	scoreBracket      = 90  // (SYM)
	scoreColon        = 85  // SYM: prefix
	scoreBareToken    = 80  // Standalone uppercase token
	scoreURLHint      = 85  // Ticker embedded in the article URL
	scoreNameTitle    = 60  // Exact company name in the title
	scoreNameSummary  = 30  // Exact company name in the summary
	scoreAliasTitle   = 20  // Derived alias in the title
	scoreAliasSummary = 10  // Derived alias in the summary
	titleBonus        = 5   // Cashtag and symbol tokens found in the title

	fuzzyWeight        = 70   // Fuzzy score is similarity times this weight
	fuzzyMinSimilarity = 0.82 // Jaro-Winkler floor for a fuzzy candidate
	jaroBoostThreshold = 0.7  // Standard Winkler prefix boost threshold
	jaroPrefixSize     = 4    // Standard Winkler prefix length

	penaltyStopword = 40 // Matched phrase is a blacklisted token
	penaltyListOnly = 30 // Phrase appears only inside a ticker list segment
	penaltyEmbedded = 40 // Match continues into a longer alphanumeric token

	maxAliasGram = 5 // Longest token n-gram tried against the alias dictionary
)

// Token extraction patterns over raw title and summary text. Bare
// tokens need word boundaries on both sides, so a symbol glued into a
// longer alphanumeric run never extracts; cashtags and URL hints can
// match such a prefix and are checked for trailing overrun instead.
var (
	cashtagPattern = regexp.MustCompile(`\$([A-Za-z]{1,5})`)
	bracketPattern = regexp.MustCompile(`\(([A-Z]{1,5})\)`)
	colonPattern   = regexp.MustCompile(`\b([A-Z]{1,5}):`)
	barePattern    = regexp.MustCompile(`\b[A-Z]{2,5}\b`)

	// Ticker list segments such as "Tickers: AAPL, MSFT" run from the
	// keyword to the end of the sentence.
	listPattern = regexp.MustCompile(`(?i)\b(?:tickers?|symbols?|related|watchlist)\s*:[^.;!?\n]*`)

	urlPathPattern  = regexp.MustCompile(`(?i)/(?:quote|symbol)s?/([A-Za-z][A-Za-z.]{0,5})`)
	urlQueryPattern = regexp.MustCompile(`(?i)[?&](?:symbol|ticker)s?=([A-Za-z][A-Za-z.]{0,5})`)
)

// Candidate is one ranked resolution candidate. TopCandidates exposes
// these to multi-ticker callers; Resolve keeps only the winner.
type Candidate struct {
	Symbol        string
	Score         float64
	Confidence    float64
	MatchType     model.MatchType
	Context       model.MatchContext
	MatchedPhrase string
}

// tokenForm distinguishes the syntactic shapes a symbol token takes in
// raw text; each shape carries its own base score.
type tokenForm int

const (
	formCashtag tokenForm = iota
	formBracket
	formColon
	formBare
)

func (f tokenForm) base() float64 {
	switch f {
	case formCashtag:
		return scoreCashtag
	case formBracket:
		return scoreBracket
	case formColon:
		return scoreColon
	default:
		return scoreBareToken
	}
}

func (f tokenForm) matchType() model.MatchType {
	if f == formCashtag {
		return model.MatchCashtag
	}
	return model.MatchSymbolToken
}

// tokenMention is one raw-text occurrence of a symbol-shaped token.
type tokenMention struct {
	symbol   string
	form     tokenForm
	context  model.MatchContext
	phrase   string
	embedded bool // The match runs into a longer alphanumeric token
	inList   bool // The match sits inside a ticker list segment
}

// span is a half-open byte range in one text field.
type span struct{ start, end int }

func listSpans(text string) []span {
	matches := listPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}
	spans := make([]span, len(matches))
	for i, m := range matches {
		spans[i] = span{m[0], m[1]}
	}
	return spans
}

func insideSpan(spans []span, pos int) bool {
	for _, s := range spans {
		if pos >= s.start && pos < s.end {
			return true
		}
	}
	return false
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// collectTokenMentions extracts cashtag, bracketed, colon, and bare
// uppercase token mentions from one text field.
func collectTokenMentions(text string, ctx model.MatchContext) []tokenMention {
	if text == "" {
		return nil
	}
	lists := listSpans(text)

	var out []tokenMention
	scan := func(re *regexp.Regexp, form tokenForm, checkTrailing bool) {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[0], m[1]
			symStart, symEnd := start, end
			if len(m) > 2 && m[2] >= 0 {
				symStart, symEnd = m[2], m[3]
			}
			mention := tokenMention{
				symbol:  strings.ToUpper(text[symStart:symEnd]),
				form:    form,
				context: ctx,
				phrase:  text[start:end],
				inList:  insideSpan(lists, start),
			}
			if checkTrailing && symEnd < len(text) && isAlnum(text[symEnd]) {
				mention.embedded = true
			}
			out = append(out, mention)
		}
	}
	scan(cashtagPattern, formCashtag, true)
	scan(bracketPattern, formBracket, false)
	scan(colonPattern, formColon, false)
	scan(barePattern, formBare, false)
	return out
}

// scanProvided scores upstream-attached symbols.
func (r *Resolver) scanProvided(snap *symbols.Snapshot, t *tally, item model.NewsItem) {
	for _, raw := range item.ProviderSymbols {
		sym := strings.ToUpper(strings.TrimSpace(raw))
		listing, ok := snap.Get(sym)
		if !ok || !listing.IsActive {
			continue
		}
		score := float64(scoreProvider)
		if r.isStopword(sym) {
			score -= penaltyStopword
		}
		t.add(sym, score, model.MatchProvider, model.ContextProvided, sym)
	}
}

// scanTokens scores cashtag and symbol token mentions from the title
// and summary. A symbol whose every occurrence sits inside a ticker
// list segment is penalized; blacklisted and unlisted tokens never
// become candidates.
func (r *Resolver) scanTokens(snap *symbols.Snapshot, t *tally, item model.NewsItem) {
	mentions := collectTokenMentions(item.Title, model.ContextTitle)
	mentions = append(mentions, collectTokenMentions(item.Summary, model.ContextSummary)...)
	if len(mentions) == 0 {
		return
	}

	inProse := make(map[string]bool, len(mentions))
	for _, m := range mentions {
		if !m.inList {
			inProse[m.symbol] = true
		}
	}

	for _, m := range mentions {
		listing, ok := snap.Get(m.symbol)
		if !ok || !listing.IsActive || r.isStopword(m.symbol) {
			continue
		}
		score := m.form.base()
		if m.context == model.ContextTitle {
			score += titleBonus
		}
		if m.embedded {
			score -= penaltyEmbedded
		}
		if !inProse[m.symbol] {
			score -= penaltyListOnly
		}
		t.add(m.symbol, score, m.form.matchType(), m.context, m.phrase)
	}
}

// scanURL scores ticker hints embedded in the article URL.
func (r *Resolver) scanURL(snap *symbols.Snapshot, t *tally, item model.NewsItem) {
	if item.URL == "" {
		return
	}
	for _, re := range []*regexp.Regexp{urlPathPattern, urlQueryPattern} {
		for _, m := range re.FindAllStringSubmatchIndex(item.URL, -1) {
			sym := strings.ToUpper(item.URL[m[2]:m[3]])
			listing, ok := snap.Get(sym)
			if !ok || !listing.IsActive {
				continue
			}
			score := float64(scoreURLHint)
			if m[3] < len(item.URL) && isAlnum(item.URL[m[3]]) {
				score -= penaltyEmbedded
			}
			if r.isStopword(sym) {
				score -= penaltyStopword
			}
			t.add(sym, score, model.MatchURLHint, model.ContextURL, item.URL[m[2]:m[3]])
		}
	}
}

// scanNames scores exact company name and derived alias mentions by
// looking up token n-grams of the normalized text in the snapshot's
// alias dictionary. Exact hits are the company name itself; the rest
// are derived aliases.
func (r *Resolver) scanNames(snap *symbols.Snapshot, t *tally, text string, ctx model.MatchContext) {
	tokens := strings.Fields(symbols.Normalize(text))
	for n := 1; n <= maxAliasGram && n <= len(tokens); n++ {
		for i := 0; i+n <= len(tokens); i++ {
			gram := strings.Join(tokens[i:i+n], " ")
			if len(gram) < 3 {
				continue
			}
			for _, hit := range snap.ByAlias(gram) {
				if !hit.Symbol.IsActive {
					continue
				}
				if hit.Exact {
					score := nameScore(ctx)
					if r.isStopword(gram) {
						score -= penaltyStopword
					}
					t.add(hit.Symbol.Symbol, score, model.MatchCompanyName, ctx, gram)
					continue
				}
				if r.isStopword(gram) {
					continue
				}
				t.add(hit.Symbol.Symbol, aliasScore(ctx), model.MatchAlias, ctx, gram)
			}
		}
	}
}

func nameScore(ctx model.MatchContext) float64 {
	if ctx == model.ContextTitle {
		return scoreNameTitle
	}
	return scoreNameSummary
}

func aliasScore(ctx model.MatchContext) float64 {
	if ctx == model.ContextTitle {
		return scoreAliasTitle
	}
	return scoreAliasSummary
}

// scanFuzzy scores near-miss company name mentions, comparing every
// same-length token window against each directory name. A window
// matches on an identical token set or a Jaro-Winkler similarity at or
// above the floor.
func (r *Resolver) scanFuzzy(snap *symbols.Snapshot, t *tally, item model.NewsItem) {
	fields := []struct {
		text string
		ctx  model.MatchContext
	}{
		{item.Title, model.ContextTitle},
		{item.Summary, model.ContextSummary},
	}
	for _, field := range fields {
		tokens := strings.Fields(symbols.Normalize(field.text))
		if len(tokens) == 0 {
			continue
		}
		for _, entry := range snap.Names() {
			listing, ok := snap.Get(entry.Ticker)
			if !ok || !listing.IsActive {
				continue
			}
			name := entry.Stripped
			nameTokens := strings.Fields(name)
			n := len(nameTokens)
			if n == 0 || n > len(tokens) {
				continue
			}
			for i := 0; i+n <= len(tokens); i++ {
				window := strings.Join(tokens[i:i+n], " ")
				if diff := len(window) - len(name); diff > 1+len(name)/3 || -diff > 1+len(name)/3 {
					continue
				}
				var sim float64
				if tokenSetEqual(tokens[i:i+n], nameTokens) {
					sim = 1
				} else if jw := smetrics.JaroWinkler(window, name, jaroBoostThreshold, jaroPrefixSize); jw >= fuzzyMinSimilarity {
					sim = jw
				}
				if sim == 0 {
					continue
				}
				score := sim * fuzzyWeight
				if r.isStopword(window) {
					score -= penaltyStopword
				}
				t.add(entry.Ticker, score, model.MatchFuzzy, field.ctx, window)
			}
		}
	}
}

// tokenSetEqual reports whether two token slices contain the same set
// of tokens, ignoring order and duplicates.
func tokenSetEqual(a, b []string) bool {
	set := make(map[string]int, len(a)+len(b))
	for _, tok := range a {
		set[tok] |= 1
	}
	for _, tok := range b {
		set[tok] |= 2
	}
	for _, bits := range set {
		if bits != 3 {
			return false
		}
	}
	return true
}

// tally aggregates candidates per symbol, keeping the highest net
// score. Earlier adds win ties, so stages run strongest signal first.
type tally struct {
	best map[string]Candidate
}

func newTally() *tally {
	return &tally{best: make(map[string]Candidate, 8)}
}

func (t *tally) add(symbol string, score float64, match model.MatchType, ctx model.MatchContext, phrase string) {
	if cur, ok := t.best[symbol]; ok && cur.Score >= score {
		return
	}
	t.best[symbol] = Candidate{
		Symbol:        symbol,
		Score:         score,
		MatchType:     match,
		Context:       ctx,
		MatchedPhrase: phrase,
	}
}

// hasAny reports whether any positive-score candidate carries one of
// the given match types.
func (t *tally) hasAny(types ...model.MatchType) bool {
	for _, c := range t.best {
		if c.Score <= 0 {
			continue
		}
		for _, mt := range types {
			if c.MatchType == mt {
				return true
			}
		}
	}
	return false
}

// ranked returns positive-score candidates sorted by score descending,
// then context strength, then symbol ascending.
func (t *tally) ranked() []Candidate {
	out := make([]Candidate, 0, len(t.best))
	for _, c := range t.best {
		if c.Score <= 0 {
			continue
		}
		c.Confidence = c.Score / 100
		if c.Confidence > 1 {
			c.Confidence = 1
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if ri, rj := contextRank(out[i].Context), contextRank(out[j].Context); ri != rj {
			return ri < rj
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// contextRank orders match contexts strongest first for tie-breaking.
func contextRank(ctx model.MatchContext) int {
	switch ctx {
	case model.ContextProvided:
		return 0
	case model.ContextTitle:
		return 1
	case model.ContextSummary:
		return 2
	default:
		return 3
	}
}
