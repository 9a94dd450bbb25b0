package news

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marketdesk/marketdesk/internal/config"
	"github.com/marketdesk/marketdesk/internal/model"
	"github.com/marketdesk/marketdesk/internal/provider"
)

// Source is one upstream news feed.
type Source interface {
	Name() string
	GetNews(ctx context.Context, params provider.NewsParams) ([]model.NewsItem, error)
}

// Recorder receives per-source fetch outcomes for health bookkeeping.
// *provider.Pool satisfies it; nil disables recording.
type Recorder interface {
	Record(name string, err error)
}

// Result is one refresh outcome. Partial failure is normal: Items holds
// whatever the healthy sources produced, Errors holds the rest, and
// neither invalidates the other.
type Result struct {
	Items          []model.NewsItem // New or upgraded items, newest first
	ProviderCounts map[string]int   // Raw fetched count per successful source
	Errors         []error          // One entry per failed source
}

// Aggregator fans a refresh out over every enabled news source and
// merges the results through the dedup index. It owns no loop; the
// caller drives Refresh on its own cadence.
type Aggregator struct {
	cfg      config.NewsConfig
	sources  []Source
	recorder Recorder
	logger   *slog.Logger
	priority map[string]int
	dedup    *dedupIndex
}

// NewAggregator creates an aggregator over the given sources. Dedup
// collisions keep the copy from the source appearing earliest in
// cfg.SourcePriority; unlisted sources rank last.
func NewAggregator(cfg config.NewsConfig, sources []Source, recorder Recorder, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = config.DefaultNewsLimit
	}
	if cfg.Retention <= 0 {
		cfg.Retention = config.DefaultNewsRetention
	}

	priority := make(map[string]int, len(cfg.SourcePriority))
	for i, name := range cfg.SourcePriority {
		priority[name] = i
	}

	return &Aggregator{
		cfg:      cfg,
		sources:  sources,
		recorder: recorder,
		logger:   logger,
		priority: priority,
		dedup:    newDedupIndex(cfg.Retention),
	}
}

// Refresh fetches from every source in parallel and returns the merged,
// deduplicated batch, newest first, capped at limit (<= 0 uses the
// configured default). A refresh never fails as a whole: with every
// source down, Items is empty and Errors explains why.
func (a *Aggregator) Refresh(ctx context.Context, limit int) Result {
	if limit <= 0 {
		limit = a.cfg.Limit
	}
	now := time.Now()
	a.dedup.sweep(now)
	since := now.Add(-a.cfg.Retention)

	type fetch struct {
		items []model.NewsItem
		err   error
	}
	fetches := make([]fetch, len(a.sources))

	var g errgroup.Group
	for i, src := range a.sources {
		g.Go(func() error {
			items, err := src.GetNews(ctx, provider.NewsParams{Limit: limit, Since: since})
			if a.recorder != nil {
				a.recorder.Record(src.Name(), err)
			}
			fetches[i] = fetch{items: items, err: err}
			return nil
		})
	}
	_ = g.Wait()

	result := Result{ProviderCounts: make(map[string]int, len(a.sources))}

	// Batch-local dedup first, in source priority order of emission.
	type winner struct {
		item     model.NewsItem
		priority int
	}
	batch := make(map[string]winner)
	var order []string
	var fetched int

	for i, src := range a.sources {
		f := fetches[i]
		if f.err != nil {
			a.logger.Warn("news source failed", "source", src.Name(), "error", f.err)
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", src.Name(), f.err))
			continue
		}
		result.ProviderCounts[src.Name()] = len(f.items)
		fetched += len(f.items)
		prio := a.sourcePriority(src.Name())

		for _, item := range f.items {
			item.ID = fingerprint(item.Title, item.URL, item.PublishedAt)
			w, seen := batch[item.ID]
			if seen && prio >= w.priority {
				continue
			}
			if !seen {
				order = append(order, item.ID)
			}
			batch[item.ID] = winner{item: item, priority: prio}
		}
	}

	// Then the cross-refresh index decides what is actually new.
	items := make([]model.NewsItem, 0, len(order))
	for _, id := range order {
		w := batch[id]
		if !a.dedup.admit(id, w.priority, now) {
			continue
		}
		items = append(items, w.item)
	}

	sort.Slice(items, func(i, j int) bool {
		if !items[i].PublishedAt.Equal(items[j].PublishedAt) {
			return items[i].PublishedAt.After(items[j].PublishedAt)
		}
		return items[i].ID < items[j].ID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	result.Items = items

	a.logger.Debug("news refresh complete",
		"fetched", fetched,
		"new", len(items),
		"errors", len(result.Errors),
		"dedup_entries", a.dedup.size(),
	)
	return result
}

func (a *Aggregator) sourcePriority(name string) int {
	if p, ok := a.priority[name]; ok {
		return p
	}
	return len(a.priority)
}
