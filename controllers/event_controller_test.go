package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go_alerts_backend/metrics"
	"go_alerts_backend/services/audit"
	"go_alerts_backend/services/notify"
)

type recordChannel struct {
	mu     sync.Mutex
	events []notify.NotificationEvent
}

func (r *recordChannel) Name() string    { return "record" }
func (r *recordChannel) IsEnabled() bool { return true }

func (r *recordChannel) Deliver(ctx context.Context, event notify.NotificationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordChannel) received() []notify.NotificationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.NotificationEvent(nil), r.events...)
}

func newEventRouter(ch notify.Channel) *gin.Engine {
	gin.SetMode(gin.TestMode)
	dispatcher := notify.NewDispatcher([]notify.Channel{ch}, audit.NopLogger{}, metrics.NewCounters())
	router := gin.New()
	router.POST("/api/v1/events", NewEventController(dispatcher).BroadcastEvent)
	return router
}

func TestBroadcastEventEndpoint(t *testing.T) {
	ch := &recordChannel{}
	router := newEventRouter(ch)

	w := performRequest(router, http.MethodPost, "/api/v1/events", gin.H{
		"kind":    "ai_insight",
		"payload": gin.H{"text": "funding rates look stretched"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Kind     string            `json:"kind"`
		Source   string            `json:"source"`
		Channels map[string]string `json:"channels"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ai_insight", resp.Kind)
	assert.Equal(t, "api", resp.Source, "source should default to api")
	assert.Equal(t, "ok", resp.Channels["record"])

	events := ch.received()
	require.Len(t, events, 1)
	assert.Equal(t, "ai_insight", events[0].Kind)
	assert.Equal(t, "api", events[0].Source)
}

func TestBroadcastEventKeepsExplicitSource(t *testing.T) {
	ch := &recordChannel{}
	router := newEventRouter(ch)

	w := performRequest(router, http.MethodPost, "/api/v1/events", gin.H{
		"kind":    "maintenance",
		"payload": gin.H{"window": "02:00-03:00"},
		"source":  "ops",
	})
	require.Equal(t, http.StatusOK, w.Code)

	events := ch.received()
	require.Len(t, events, 1)
	assert.Equal(t, "ops", events[0].Source)
}

func TestBroadcastEventValidation(t *testing.T) {
	router := newEventRouter(&recordChannel{})

	w := performRequest(router, http.MethodPost, "/api/v1/events", gin.H{
		"payload": gin.H{"text": "missing kind"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(router, http.MethodPost, "/api/v1/events", gin.H{
		"kind": "no_payload",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
