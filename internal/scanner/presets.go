package scanner

import (
	"math"
	"time"

	"github.com/marketdesk/marketdesk/internal/config"
	"github.com/marketdesk/marketdesk/internal/model"
	"github.com/marketdesk/marketdesk/internal/store"
)

// Preset identifiers served by the engine.
const (
	PresetMovers        = "movers"
	PresetRvol          = "rvol"
	PresetUnusualVolume = "unusual-volume"
	PresetRangeBreak    = "range-break"
	PresetGapUp         = "gap-up"
	PresetGapDown       = "gap-down"
	PresetNewsMomentum  = "news-momentum"
)

// Minimum buffered ticks per preset. Symbols below the floor are not
// evaluated.
const (
	minTicksMovers        = 2
	minTicksRvol          = 10
	minTicksUnusualVolume = 20
	minTicksRangeBreak    = 10
	minTicksNewsMomentum  = 5
)

// Presets lists every preset identifier in output order.
func Presets() []string {
	return []string{
		PresetMovers,
		PresetRvol,
		PresetUnusualVolume,
		PresetRangeBreak,
		PresetGapUp,
		PresetGapDown,
		PresetNewsMomentum,
	}
}

// scoreFunc evaluates one symbol view against one preset. It returns
// false when the symbol does not qualify.
type scoreFunc func(v store.SymbolView, cfg config.ScannerConfig, now time.Time) (model.ScannerRow, bool)

func presetScorer(preset string) scoreFunc {
	switch preset {
	case PresetMovers:
		return scoreMovers
	case PresetRvol:
		return scoreRvol
	case PresetUnusualVolume:
		return scoreUnusualVolume
	case PresetRangeBreak:
		return scoreRangeBreak
	case PresetGapUp:
		return scoreGapUp
	case PresetGapDown:
		return scoreGapDown
	case PresetNewsMomentum:
		return scoreNewsMomentum
	default:
		return nil
	}
}

// scoreMovers flags symbols whose buffer-wide price move falls inside
// the configured percent band. Score is the absolute move.
func scoreMovers(v store.SymbolView, cfg config.ScannerConfig, _ time.Time) (model.ScannerRow, bool) {
	ticks := v.Ticks
	if len(ticks) < minTicksMovers {
		return model.ScannerRow{}, false
	}
	first, last := ticks[0], ticks[len(ticks)-1]
	if first.Price <= 0 {
		return model.ScannerRow{}, false
	}
	changePct := (last.Price - first.Price) / first.Price * 100
	move := math.Abs(changePct)
	if move < cfg.MoversMinPct || move > cfg.MoversMaxPct {
		return model.ScannerRow{}, false
	}
	var volume int64
	for _, t := range ticks {
		volume += t.Volume
	}
	return model.ScannerRow{
		Symbol: v.Symbol,
		Score:  move,
		Metrics: map[string]float64{
			"changePercent": changePct,
			"change":        last.Price - first.Price,
			"volume":        float64(volume),
		},
	}, true
}

// scoreRvol flags symbols whose latest tick volume runs at least the
// configured multiple of the buffer average. Score is the ratio.
func scoreRvol(v store.SymbolView, cfg config.ScannerConfig, _ time.Time) (model.ScannerRow, bool) {
	ticks := v.Ticks
	if len(ticks) < minTicksRvol {
		return model.ScannerRow{}, false
	}
	avg := meanVolume(ticks)
	if avg <= 0 {
		return model.ScannerRow{}, false
	}
	current := float64(ticks[len(ticks)-1].Volume)
	ratio := current / avg
	if ratio < cfg.RvolMinRatio {
		return model.ScannerRow{}, false
	}
	return model.ScannerRow{
		Symbol: v.Symbol,
		Score:  ratio,
		Metrics: map[string]float64{
			"volumeRatio":   ratio,
			"currentVolume": current,
			"avgVolume":     avg,
		},
	}, true
}

// scoreUnusualVolume compares mean volume over the last ten ticks with
// the ten before them. Score is the ratio.
func scoreUnusualVolume(v store.SymbolView, cfg config.ScannerConfig, _ time.Time) (model.ScannerRow, bool) {
	ticks := v.Ticks
	if len(ticks) < minTicksUnusualVolume {
		return model.ScannerRow{}, false
	}
	n := len(ticks)
	recent := meanVolume(ticks[n-10:])
	prior := meanVolume(ticks[n-20 : n-10])
	if prior <= 0 {
		return model.ScannerRow{}, false
	}
	ratio := recent / prior
	if ratio < cfg.UnusualVolRatio {
		return model.ScannerRow{}, false
	}
	return model.ScannerRow{
		Symbol: v.Symbol,
		Score:  ratio,
		Metrics: map[string]float64{
			"volumeRatio": ratio,
			"recentAvg":   recent,
			"priorAvg":    prior,
		},
	}, true
}

// scoreRangeBreak flags symbols printing within one percent of the
// buffer high or low while the buffer range is at least the configured
// percent. Score is the range percent.
func scoreRangeBreak(v store.SymbolView, cfg config.ScannerConfig, _ time.Time) (model.ScannerRow, bool) {
	ticks := v.Ticks
	if len(ticks) < minTicksRangeBreak {
		return model.ScannerRow{}, false
	}
	high, low := ticks[0].Price, ticks[0].Price
	for _, t := range ticks[1:] {
		if t.Price > high {
			high = t.Price
		}
		if t.Price < low {
			low = t.Price
		}
	}
	if low <= 0 {
		return model.ScannerRow{}, false
	}
	rangePct := (high - low) / low * 100
	if rangePct < cfg.RangeBreakMinPct {
		return model.ScannerRow{}, false
	}
	last := ticks[len(ticks)-1].Price
	nearHigh := last >= high*0.99
	nearLow := last <= low*1.01
	if !nearHigh && !nearLow {
		return model.ScannerRow{}, false
	}
	direction := 1.0
	if nearLow && !nearHigh {
		direction = -1.0
	}
	return model.ScannerRow{
		Symbol: v.Symbol,
		Score:  rangePct,
		Metrics: map[string]float64{
			"rangePercent": rangePct,
			"high":         high,
			"low":          low,
			"last":         last,
			"direction":    direction,
		},
	}, true
}

// scoreGapUp flags symbols trading at least the configured percent
// above previous close. Needs a seeded quote carrying previous close.
func scoreGapUp(v store.SymbolView, cfg config.ScannerConfig, _ time.Time) (model.ScannerRow, bool) {
	gapPct, ok := gapPercent(v)
	if !ok || gapPct < cfg.GapMinPct {
		return model.ScannerRow{}, false
	}
	return gapRow(v, gapPct), true
}

// scoreGapDown is the mirror of scoreGapUp for downside gaps.
func scoreGapDown(v store.SymbolView, cfg config.ScannerConfig, _ time.Time) (model.ScannerRow, bool) {
	gapPct, ok := gapPercent(v)
	if !ok || gapPct > -cfg.GapMinPct {
		return model.ScannerRow{}, false
	}
	return gapRow(v, gapPct), true
}

func gapPercent(v store.SymbolView) (float64, bool) {
	if !v.HasQuote || v.Quote.PrevClose <= 0 || v.Quote.Price <= 0 {
		return 0, false
	}
	return (v.Quote.Price - v.Quote.PrevClose) / v.Quote.PrevClose * 100, true
}

func gapRow(v store.SymbolView, gapPct float64) model.ScannerRow {
	return model.ScannerRow{
		Symbol: v.Symbol,
		Score:  math.Abs(gapPct),
		Metrics: map[string]float64{
			"gapPercent": gapPct,
			"prevClose":  v.Quote.PrevClose,
			"price":      v.Quote.Price,
		},
	}
}

// scoreNewsMomentum blends news recency, the price move since the item
// published, and the volume surge into a single 0-100 score:
//
//	0.4*recency + 0.4*priceMove + 0.2*volumeSurge
//
// Recency decays linearly to zero over an hour, price move saturates
// at a ten percent change, and volume surge saturates at three times
// the buffer average. Symbols score only while the latest resolved
// item is younger than the configured max age.
func scoreNewsMomentum(v store.SymbolView, cfg config.ScannerConfig, now time.Time) (model.ScannerRow, bool) {
	ticks := v.Ticks
	if len(ticks) < minTicksNewsMomentum || v.NewsAt.IsZero() {
		return model.ScannerRow{}, false
	}
	age := now.Sub(v.NewsAt)
	if age < 0 {
		age = 0
	}
	if age > cfg.NewsMaxAge {
		return model.ScannerRow{}, false
	}

	// Reference price is the first print at or after the item.
	newsMs := v.NewsAt.UnixMilli()
	var ref float64
	for _, t := range ticks {
		if t.Timestamp >= newsMs {
			ref = t.Price
			break
		}
	}
	if ref <= 0 {
		return model.ScannerRow{}, false
	}
	last := ticks[len(ticks)-1]

	recency := math.Max(0, 1-age.Minutes()/60) * 100
	changePct := (last.Price - ref) / ref * 100
	priceMove := math.Min(math.Abs(changePct)/10, 1) * 100

	var volumeSurge float64
	if avg := meanVolume(ticks); avg > 0 {
		ratio := float64(last.Volume) / avg
		volumeSurge = math.Min(ratio/3, 1) * 100
	}

	score := 0.4*recency + 0.4*priceMove + 0.2*volumeSurge
	if score < cfg.NewsMomentumFloor {
		return model.ScannerRow{}, false
	}
	return model.ScannerRow{
		Symbol: v.Symbol,
		Score:  score,
		Metrics: map[string]float64{
			"recency":       recency,
			"priceMove":     priceMove,
			"volumeSurge":   volumeSurge,
			"changePercent": changePct,
			"newsAgeMin":    age.Minutes(),
		},
	}, true
}

func meanVolume(ticks []model.Tick) float64 {
	if len(ticks) == 0 {
		return 0
	}
	var sum int64
	for _, t := range ticks {
		sum += t.Volume
	}
	return float64(sum) / float64(len(ticks))
}
