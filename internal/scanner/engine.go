package scanner

import (
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marketdesk/marketdesk/internal/config"
	"github.com/marketdesk/marketdesk/internal/model"
	"github.com/marketdesk/marketdesk/internal/store"
)

// Engine evaluates scan presets over symbol views. It performs no I/O;
// callers hand it a consistent view taken from the store so every
// preset scores the same state.
type Engine struct {
	cfg    config.ScannerConfig
	logger *slog.Logger
}

// NewEngine creates an engine. If logger is nil, slog.Default() is used.
func NewEngine(cfg config.ScannerConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = config.DefaultScannerResultLimit
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Run evaluates every preset against the views, in parallel, and
// returns one result per preset in Presets() order stamped with now.
func (e *Engine) Run(views []store.SymbolView, now time.Time) []model.ScannerResult {
	presets := Presets()
	results := make([]model.ScannerResult, len(presets))

	var g errgroup.Group
	for i, preset := range presets {
		g.Go(func() error {
			results[i] = e.runPreset(preset, views, now)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// RunPreset evaluates a single preset. Unknown presets yield an empty
// result.
func (e *Engine) RunPreset(preset string, views []store.SymbolView, now time.Time) model.ScannerResult {
	return e.runPreset(preset, views, now)
}

func (e *Engine) runPreset(preset string, views []store.SymbolView, now time.Time) model.ScannerResult {
	result := model.ScannerResult{Preset: preset, GeneratedAt: now}
	score := presetScorer(preset)
	if score == nil {
		e.logger.Warn("unknown scan preset", "preset", preset)
		return result
	}

	for _, v := range views {
		if row, ok := score(v, e.cfg, now); ok {
			result.Rows = append(result.Rows, row)
		}
	}
	sortRows(result.Rows)
	if len(result.Rows) > e.cfg.ResultLimit {
		result.Rows = result.Rows[:e.cfg.ResultLimit]
	}
	return result
}

// sortRows orders rows by score descending with a stable tie-break by
// symbol ascending.
func sortRows(rows []model.ScannerRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].Symbol < rows[j].Symbol
	})
}
