// Package notify fans a single logical event out across delivery channels.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"go_alerts_backend/metrics"
	"go_alerts_backend/services/audit"
)

// Event kinds
const (
	KindAlertTriggered = "alert_triggered"
)

// NotificationEvent represents one logical notification. Events are built per
// dispatch call and never retried after BroadcastEvent returns.
type NotificationEvent struct {
	ID      string                 `json:"id"`
	Kind    string                 `json:"kind"`
	Payload map[string]interface{} `json:"payload"`
	Source  string                 `json:"source"`
	At      time.Time              `json:"at"`
}

// Channel is one delivery adapter. Deliver failures are contained by the
// dispatcher; an adapter never sees another adapter's outcome.
type Channel interface {
	Name() string
	IsEnabled() bool
	Deliver(ctx context.Context, event NotificationEvent) error
}

// Dispatcher invokes every configured channel for each event, records an
// audit entry, and keeps the notification counters.
type Dispatcher struct {
	channels []Channel
	auditLog audit.Logger
	counters *metrics.Counters
}

// NewDispatcher creates a dispatcher. Channel order is delivery order.
func NewDispatcher(channels []Channel, auditLog audit.Logger, counters *metrics.Counters) *Dispatcher {
	return &Dispatcher{
		channels: channels,
		auditLog: auditLog,
		counters: counters,
	}
}

// BroadcastEvent delivers one event to all channels. A failing or panicking
// channel is logged and counted; the remaining channels still run and the
// caller never sees an error. The sent counter moves exactly once per call,
// counting intent to notify rather than per-channel success.
func (d *Dispatcher) BroadcastEvent(ctx context.Context, kind string, payload map[string]interface{}, source string) map[string]string {
	if source == "" {
		source = "system"
	}
	event := NotificationEvent{
		ID:      uuid.NewString(),
		Kind:    kind,
		Payload: payload,
		Source:  source,
		At:      time.Now().UTC(),
	}

	outcomes := make(map[string]string, len(d.channels))
	for _, ch := range d.channels {
		if !ch.IsEnabled() {
			outcomes[ch.Name()] = "disabled"
			continue
		}
		if err := d.deliver(ctx, ch, event); err != nil {
			log.Error().
				Str("channel", ch.Name()).
				Str("event_id", event.ID).
				Err(err).
				Msg("Notification channel delivery failed")
			outcomes[ch.Name()] = err.Error()
			d.counters.IncOutcome(ch.Name(), false)
			continue
		}
		outcomes[ch.Name()] = "ok"
		d.counters.IncOutcome(ch.Name(), true)
	}

	d.recordAudit(ctx, event, outcomes)
	d.counters.IncSent(source)
	return outcomes
}

// deliver runs one channel behind a recover boundary.
func (d *Dispatcher) deliver(ctx context.Context, ch Channel, event NotificationEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel panic: %v", r)
		}
	}()
	return ch.Deliver(ctx, event)
}

// recordAudit writes the trail entry; audit failures never reach the caller.
func (d *Dispatcher) recordAudit(ctx context.Context, event NotificationEvent, outcomes map[string]string) {
	size := 0
	if data, err := json.Marshal(event.Payload); err == nil {
		size = len(data)
	}

	entry := audit.Entry{
		ID:          event.ID,
		Kind:        event.Kind,
		Source:      event.Source,
		PayloadSize: size,
		Channels:    outcomes,
		At:          event.At,
	}
	if err := d.auditLog.Record(ctx, entry); err != nil {
		log.Warn().Str("event_id", event.ID).Err(err).Msg("Failed to write audit entry")
	}
}
