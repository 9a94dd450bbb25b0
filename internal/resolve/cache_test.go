package resolve

import (
	"testing"
	"time"

	"github.com/marketdesk/marketdesk/internal/model"
)

func TestVerdictCache_TTLExpires(t *testing.T) {
	c := newVerdictCache(time.Hour, 10)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.put("k", model.Verdict{Ticker: "NVDA"})
	if _, ok := c.get("k"); !ok {
		t.Fatal("fresh entry not served")
	}

	now = now.Add(time.Hour + time.Second)
	if _, ok := c.get("k"); ok {
		t.Error("expired entry still served")
	}
	if got := c.stats().Entries; got != 0 {
		t.Errorf("Entries = %d, want 0 after expiry", got)
	}
}

func TestVerdictCache_BoundEvictsLeastRecentlyUsed(t *testing.T) {
	c := newVerdictCache(time.Hour, 2)
	c.put("a", model.Verdict{Ticker: "AAPL"})
	c.put("b", model.Verdict{Ticker: "BAC"})

	// Touch a so b becomes the eviction victim.
	if _, ok := c.get("a"); !ok {
		t.Fatal("entry a not served")
	}
	c.put("c", model.Verdict{Ticker: "CHIP"})

	if _, ok := c.get("b"); ok {
		t.Error("least recently used entry b survived past the bound")
	}
	if _, ok := c.get("a"); !ok {
		t.Error("recently used entry a evicted")
	}
	if _, ok := c.get("c"); !ok {
		t.Error("newest entry c evicted")
	}
	if got := c.stats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}
}

func TestVerdictCache_FlushClears(t *testing.T) {
	c := newVerdictCache(time.Hour, 10)
	c.put("a", model.Verdict{})
	c.put("b", model.Verdict{})
	c.flush()

	if got := c.stats(); got.Entries != 0 || got.Flushes != 1 {
		t.Errorf("stats after flush = %+v, want 0 entries and 1 flush", got)
	}
	if _, ok := c.get("a"); ok {
		t.Error("entry survived flush")
	}
}

func TestVerdictCache_PutUpdatesExisting(t *testing.T) {
	c := newVerdictCache(time.Hour, 10)
	c.put("k", model.Verdict{Ticker: "AMD"})
	c.put("k", model.Verdict{Ticker: "NVDA"})

	v, ok := c.get("k")
	if !ok || v.Ticker != "NVDA" {
		t.Errorf("get = (%q, %v), want updated NVDA", v.Ticker, ok)
	}
	if got := c.stats().Entries; got != 1 {
		t.Errorf("Entries = %d, want 1", got)
	}
}
