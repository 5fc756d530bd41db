package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// PushChannel posts events to a push-gateway endpoint over HTTP.
type PushChannel struct {
	url     string
	enabled bool
	client  *http.Client
}

// NewPushChannel creates the push adapter. An empty URL disables it.
func NewPushChannel(url string, timeout time.Duration) *PushChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PushChannel{
		url:     url,
		enabled: url != "",
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the name of the channel.
func (p *PushChannel) Name() string {
	return "push"
}

// IsEnabled returns whether the channel is enabled.
func (p *PushChannel) IsEnabled() bool {
	return p.enabled
}

// Deliver posts the event to the gateway and reads back the delivery count.
func (p *PushChannel) Deliver(ctx context.Context, event NotificationEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending push notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway returned status %d", resp.StatusCode)
	}

	var result struct {
		Delivered int `json:"delivered"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		log.Debug().
			Int("delivered", result.Delivered).
			Str("event_id", event.ID).
			Msg("Push notification accepted")
	}
	return nil
}
