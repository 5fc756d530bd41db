// Package alerts evaluates stored alerts against live prices and dispatches
// notifications for the ones that fire.
package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"go_alerts_backend/metrics"
	"go_alerts_backend/models"
	"go_alerts_backend/services/notify"
	"go_alerts_backend/services/pricefeed"
	"go_alerts_backend/store"
)

// CycleStats summarizes one evaluation cycle.
type CycleStats struct {
	StartedAt time.Time     `json:"started_at"`
	Evaluated int           `json:"evaluated"`
	Triggered int           `json:"triggered"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
	Duration  time.Duration `json:"duration_ns"`
}

// Broadcaster dispatches one event across the notification channels.
// Satisfied by notify.Dispatcher.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, kind string, payload map[string]interface{}, source string) map[string]string
}

// Evaluator runs evaluation cycles. A cycle reads the full alert set, filters
// it down to active non-expired alerts, and checks each one against a fresh
// price snapshot. Triggered alerts are recorded and dispatched; a previously
// triggered alert fires again whenever its condition still holds.
type Evaluator struct {
	store        store.AlertStore
	oracle       pricefeed.Oracle
	dispatcher   Broadcaster
	counters     *metrics.Counters
	priceTimeout time.Duration

	mu        sync.Mutex
	lastStats *CycleStats
}

// NewEvaluator creates an evaluator. priceTimeout bounds each oracle fetch.
func NewEvaluator(st store.AlertStore, oracle pricefeed.Oracle, dispatcher Broadcaster, counters *metrics.Counters, priceTimeout time.Duration) *Evaluator {
	if priceTimeout <= 0 {
		priceTimeout = 5 * time.Second
	}
	return &Evaluator{
		store:        st,
		oracle:       oracle,
		dispatcher:   dispatcher,
		counters:     counters,
		priceTimeout: priceTimeout,
	}
}

// EvaluateAlerts runs one full cycle. Only a failed alert listing or a
// canceled context is fatal; per-alert problems are logged and skipped.
func (e *Evaluator) EvaluateAlerts(ctx context.Context) (CycleStats, error) {
	started := time.Now()
	stats := CycleStats{StartedAt: started.UTC()}

	all, err := e.store.ListAlerts(ctx)
	if err != nil {
		return stats, fmt.Errorf("list alerts: %w", err)
	}

	now := time.Now().UTC()
	evaluable := lo.Filter(all, func(a models.Alert, _ int) bool {
		return a.Evaluable(now)
	})

	// Snapshots are memoized per symbol for this cycle only.
	snapshots := make(map[string]*pricefeed.PriceSnapshot)
	fetched := make(map[string]bool)

	for i := range evaluable {
		if err := ctx.Err(); err != nil {
			stats.Duration = time.Since(started)
			return stats, err
		}
		e.evaluateOne(ctx, &evaluable[i], snapshots, fetched, &stats)
	}

	stats.Duration = time.Since(started)
	e.counters.IncCycle()

	e.mu.Lock()
	s := stats
	e.lastStats = &s
	e.mu.Unlock()

	log.Info().
		Int("evaluated", stats.Evaluated).
		Int("triggered", stats.Triggered).
		Int("skipped", stats.Skipped).
		Dur("duration", stats.Duration).
		Msg("Alert evaluation cycle complete")
	return stats, nil
}

// LastStats returns a copy of the most recent completed cycle, or nil before
// the first one.
func (e *Evaluator) LastStats() *CycleStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastStats == nil {
		return nil
	}
	s := *e.lastStats
	return &s
}

// evaluateOne processes a single alert behind a recover boundary so one bad
// alert cannot abort the cycle.
func (e *Evaluator) evaluateOne(ctx context.Context, alert *models.Alert, snapshots map[string]*pricefeed.PriceSnapshot, fetched map[string]bool, stats *CycleStats) {
	defer func() {
		if r := recover(); r != nil {
			stats.Errors++
			log.Error().
				Uint("alert_id", alert.ID).
				Interface("panic", r).
				Msg("Recovered from alert evaluation panic")
		}
	}()

	stats.Evaluated++

	// A record violating the alert contract is reported and skipped; it must
	// not take the cycle down.
	if alert.Symbol == "" || !models.IsValidCondition(alert.Condition) {
		stats.Errors++
		log.Error().
			Uint("alert_id", alert.ID).
			Uint("user_id", alert.UserID).
			Str("symbol", alert.Symbol).
			Str("condition", alert.Condition).
			Msg("Malformed alert record, skipping")
		return
	}

	if !fetched[alert.Symbol] {
		fetched[alert.Symbol] = true
		fctx, cancel := context.WithTimeout(ctx, e.priceTimeout)
		snap, err := e.oracle.GetPrice(fctx, alert.Symbol)
		cancel()
		if err != nil {
			log.Warn().Str("symbol", alert.Symbol).Err(err).Msg("Price fetch failed")
			snap = nil
		}
		snapshots[alert.Symbol] = snap
	}

	snap := snapshots[alert.Symbol]
	if snap == nil {
		stats.Skipped++
		e.counters.IncSkipped()
		log.Debug().
			Str("symbol", alert.Symbol).
			Uint("alert_id", alert.ID).
			Msg("No price data, skipping alert")
		return
	}

	if !shouldTrigger(alert, snap) {
		return
	}

	stats.Triggered++
	e.counters.IncTriggered()

	now := time.Now().UTC()
	// Dispatch proceeds even if the state write fails; the notification
	// matters more than the bookkeeping, which the next cycle can redo.
	if err := e.store.MarkTriggered(ctx, alert.ID, snap.Price, now); err != nil {
		log.Error().Uint("alert_id", alert.ID).Err(err).Msg("Failed to record trigger state")
	}

	e.dispatcher.BroadcastEvent(ctx, notify.KindAlertTriggered, triggerPayload(alert, snap, now), "alerts")
	log.Info().
		Uint("alert_id", alert.ID).
		Str("symbol", alert.Symbol).
		Str("condition", alert.Condition).
		Str("price", snap.Price.String()).
		Msg("Alert triggered")
}

// shouldTrigger applies the alert condition to the raw snapshot values.
func shouldTrigger(alert *models.Alert, snap *pricefeed.PriceSnapshot) bool {
	switch alert.Condition {
	case models.ConditionAbove:
		return snap.Price.GreaterThanOrEqual(alert.Threshold)
	case models.ConditionBelow:
		return snap.Price.LessThanOrEqual(alert.Threshold)
	case models.ConditionPercentChange:
		if snap.ChangePercent == nil {
			return false
		}
		return snap.ChangePercent.Abs().GreaterThanOrEqual(alert.Threshold)
	}
	return false
}

func triggerPayload(alert *models.Alert, snap *pricefeed.PriceSnapshot, at time.Time) map[string]interface{} {
	payload := map[string]interface{}{
		"alert_id":     alert.ID,
		"user_id":      alert.UserID,
		"symbol":       alert.Symbol,
		"condition":    alert.Condition,
		"threshold":    alert.Threshold.String(),
		"price":        snap.Price.String(),
		"source":       snap.Source,
		"triggered_at": at.Format(time.RFC3339),
	}
	if snap.ChangePercent != nil {
		payload["change_percent"] = snap.ChangePercent.String()
	}
	return payload
}
