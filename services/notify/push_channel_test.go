package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushChannelDeliver(t *testing.T) {
	var received NotificationEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(map[string]int{"delivered": 3})
	}))
	defer srv.Close()

	ch := NewPushChannel(srv.URL, 5*time.Second)
	require.True(t, ch.IsEnabled())

	err := ch.Deliver(context.Background(), NotificationEvent{
		ID:      "evt-1",
		Kind:    KindAlertTriggered,
		Payload: map[string]interface{}{"symbol": "BTCUSDT"},
		Source:  "alerts",
		At:      time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", received.ID)
	assert.Equal(t, KindAlertTriggered, received.Kind)
}

func TestPushChannelGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ch := NewPushChannel(srv.URL, 5*time.Second)
	err := ch.Deliver(context.Background(), NotificationEvent{ID: "evt-1"})
	assert.ErrorContains(t, err, "status 502")
}

func TestPushChannelDisabledWithoutURL(t *testing.T) {
	ch := NewPushChannel("", 0)
	assert.False(t, ch.IsEnabled())
}
