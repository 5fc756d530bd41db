package notify

import (
	"context"

	"go_alerts_backend/services/realtime"
)

// RealtimeChannel pushes events to connected websocket subscribers. The hub
// prunes dead subscribers itself, so delivery here cannot fail.
type RealtimeChannel struct {
	hub *realtime.Hub
}

// NewRealtimeChannel creates the websocket broadcast adapter.
func NewRealtimeChannel(hub *realtime.Hub) *RealtimeChannel {
	return &RealtimeChannel{
		hub: hub,
	}
}

// Name returns the name of the channel.
func (r *RealtimeChannel) Name() string {
	return "realtime"
}

// IsEnabled returns whether the channel is enabled.
func (r *RealtimeChannel) IsEnabled() bool {
	return r.hub != nil
}

// Deliver broadcasts the event to every subscriber.
func (r *RealtimeChannel) Deliver(ctx context.Context, event NotificationEvent) error {
	r.hub.Broadcast(event.Kind, event.Payload)
	return nil
}
