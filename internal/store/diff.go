package store

// Diff describes what a committed update batch touched. Observers receive
// one Diff per batch; when an observer lags, pending diffs are merged so
// the channel never grows beyond one entry.
type Diff struct {
	Ticks    []string // Symbols with new ticks
	Quotes   []string // Symbols with changed quotes
	News     []string // News item IDs added
	Verdicts []string // News item IDs with new resolution verdicts
	Scans    []string // Scanner preset names with fresh results
	Session  bool     // Stream session status changed
}

// Empty reports whether the diff carries no changes.
func (d Diff) Empty() bool {
	return len(d.Ticks) == 0 && len(d.Quotes) == 0 && len(d.News) == 0 &&
		len(d.Verdicts) == 0 && len(d.Scans) == 0 && !d.Session
}

// merge folds other into d, deduplicating keys.
func (d *Diff) merge(other Diff) {
	d.Ticks = mergeKeys(d.Ticks, other.Ticks)
	d.Quotes = mergeKeys(d.Quotes, other.Quotes)
	d.News = mergeKeys(d.News, other.News)
	d.Verdicts = mergeKeys(d.Verdicts, other.Verdicts)
	d.Scans = mergeKeys(d.Scans, other.Scans)
	d.Session = d.Session || other.Session
}

func mergeKeys(dst, src []string) []string {
	if len(src) == 0 {
		return dst
	}
	if len(dst) == 0 {
		return append([]string(nil), src...)
	}
	seen := make(map[string]struct{}, len(dst))
	for _, k := range dst {
		seen[k] = struct{}{}
	}
	for _, k := range src {
		if _, ok := seen[k]; !ok {
			dst = append(dst, k)
			seen[k] = struct{}{}
		}
	}
	return dst
}

// diffRecorder accumulates change keys during a transaction without
// duplicates, preserving first-touch order.
type diffRecorder struct {
	diff Diff
	seen map[string]struct{}
}

func newDiffRecorder() *diffRecorder {
	return &diffRecorder{seen: make(map[string]struct{})}
}

func (r *diffRecorder) add(set *[]string, class, key string) {
	h := class + "\x00" + key
	if _, ok := r.seen[h]; ok {
		return
	}
	r.seen[h] = struct{}{}
	*set = append(*set, key)
}

func (r *diffRecorder) tick(symbol string)  { r.add(&r.diff.Ticks, "t", symbol) }
func (r *diffRecorder) quote(symbol string) { r.add(&r.diff.Quotes, "q", symbol) }
func (r *diffRecorder) news(id string)      { r.add(&r.diff.News, "n", id) }
func (r *diffRecorder) verdict(id string)   { r.add(&r.diff.Verdicts, "v", id) }
func (r *diffRecorder) scan(preset string)  { r.add(&r.diff.Scans, "s", preset) }
func (r *diffRecorder) session()            { r.diff.Session = true }
