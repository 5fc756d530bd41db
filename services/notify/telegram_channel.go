package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// TelegramChannel sends events to a Telegram chat through the bot API.
type TelegramChannel struct {
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
}

// NewTelegramChannel creates the Telegram adapter. Missing credentials
// disable it.
func NewTelegramChannel(botToken, chatID string, timeout time.Duration) *TelegramChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TelegramChannel{
		botToken: botToken,
		chatID:   chatID,
		enabled:  botToken != "" && chatID != "",
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the name of the channel.
func (t *TelegramChannel) Name() string {
	return "telegram"
}

// IsEnabled returns whether the channel is enabled.
func (t *TelegramChannel) IsEnabled() bool {
	return t.enabled
}

// Deliver sends the event as a formatted message.
func (t *TelegramChannel) Deliver(ctx context.Context, event NotificationEvent) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       formatEventText(event),
		"parse_mode": "HTML",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling telegram payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}

// formatEventText renders an event as a Telegram HTML message.
func formatEventText(event NotificationEvent) string {
	if event.Kind == KindAlertTriggered {
		return fmt.Sprintf(
			"<b>🔔 Price Alert: %s</b>\n\nCondition: %s %s\nPrice: %s\nTime: %s",
			field(event, "symbol"),
			field(event, "condition"),
			field(event, "threshold"),
			field(event, "price"),
			event.At.Format(time.RFC3339),
		)
	}

	data, _ := json.Marshal(event.Payload)
	return fmt.Sprintf("<b>%s</b>\n\n%s", escapeHTML(event.Kind), escapeHTML(string(data)))
}

func field(event NotificationEvent, key string) string {
	v, ok := event.Payload[key]
	if !ok {
		return "?"
	}
	return escapeHTML(fmt.Sprintf("%v", v))
}

// escapeHTML escapes HTML special characters for Telegram.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
