// Package metrics holds process-wide monotonic counters for the dispatch core.
package metrics

import (
	"sync"
	"sync/atomic"
)

// Counters tracks notification and evaluation activity. Constructed once at
// startup and injected; counters only ever increase for the process lifetime.
type Counters struct {
	sentTotal      atomic.Int64
	cyclesTotal    atomic.Int64
	triggeredTotal atomic.Int64
	skippedTotal   atomic.Int64

	mu      sync.RWMutex
	labeled map[string]*atomic.Int64
}

// NewCounters creates an empty counter set.
func NewCounters() *Counters {
	return &Counters{
		labeled: make(map[string]*atomic.Int64),
	}
}

// IncSent records one intent-to-notify for the given source.
func (c *Counters) IncSent(source string) {
	c.sentTotal.Add(1)
	c.inc("notifications_sent." + source)
}

// IncOutcome records one per-channel delivery outcome.
func (c *Counters) IncOutcome(channel string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	c.inc("channel." + channel + "." + outcome)
}

// IncCycle records one completed evaluation cycle.
func (c *Counters) IncCycle() {
	c.cyclesTotal.Add(1)
}

// IncTriggered records one fired alert.
func (c *Counters) IncTriggered() {
	c.triggeredTotal.Add(1)
}

// IncSkipped records one alert skipped for missing price data or a feed error.
func (c *Counters) IncSkipped() {
	c.skippedTotal.Add(1)
}

// SentTotal returns the total intent-to-notify count across all sources.
func (c *Counters) SentTotal() int64 {
	return c.sentTotal.Load()
}

// Snapshot returns a copy of all counters for reporting.
func (c *Counters) Snapshot() map[string]int64 {
	out := map[string]int64{
		"notifications_sent_total": c.sentTotal.Load(),
		"cycles_total":             c.cyclesTotal.Load(),
		"alerts_triggered_total":   c.triggeredTotal.Load(),
		"alerts_skipped_total":     c.skippedTotal.Load(),
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for name, v := range c.labeled {
		out[name] = v.Load()
	}
	return out
}

func (c *Counters) inc(name string) {
	c.mu.RLock()
	v, ok := c.labeled[name]
	c.mu.RUnlock()
	if ok {
		v.Add(1)
		return
	}

	c.mu.Lock()
	v, ok = c.labeled[name]
	if !ok {
		v = &atomic.Int64{}
		c.labeled[name] = v
	}
	c.mu.Unlock()
	v.Add(1)
}
