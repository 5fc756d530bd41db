package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go_alerts_backend/metrics"
	"go_alerts_backend/scheduler"
	"go_alerts_backend/services/alerts"
	"go_alerts_backend/services/audit"
	"go_alerts_backend/services/realtime"
)

func newStatusRouter(t *testing.T) (*gin.Engine, *metrics.Counters, *alerts.Evaluator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := newAlertFixture(t)
	counters := metrics.NewCounters()
	evaluator := alerts.NewEvaluator(f.store, f.oracle, f.caster, counters, time.Second)
	sched := scheduler.NewScheduler(evaluator, nil, time.Minute, false)
	hub := realtime.NewHub(8)

	router := gin.New()
	ctrl := NewStatusController(hub, sched, counters, audit.NopLogger{}, evaluator)
	router.GET("/api/v1/status", ctrl.Status)
	router.GET("/api/v1/status/notifications", ctrl.RecentNotifications)
	return router, counters, evaluator
}

func TestStatusEndpoint(t *testing.T) {
	router, counters, _ := newStatusRouter(t)
	counters.IncSent("system")

	w := performRequest(router, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp, "scheduler")
	assert.Contains(t, resp, "realtime")
	assert.Contains(t, resp, "counters")
	assert.Contains(t, resp, "audit")
	assert.NotContains(t, resp, "last_cycle", "no cycle has run yet")

	var sched struct {
		Running bool   `json:"running"`
		Mode    string `json:"mode"`
	}
	require.NoError(t, json.Unmarshal(resp["scheduler"], &sched))
	assert.False(t, sched.Running)

	var cs map[string]int64
	require.NoError(t, json.Unmarshal(resp["counters"], &cs))
	assert.EqualValues(t, 1, cs["notifications_sent_total"])
}

func TestStatusIncludesLastCycle(t *testing.T) {
	router, _, evaluator := newStatusRouter(t)

	_, err := evaluator.EvaluateAlerts(context.Background())
	require.NoError(t, err)

	w := performRequest(router, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "last_cycle")
}

func TestRecentNotificationsEmpty(t *testing.T) {
	router, _, _ := newStatusRouter(t)

	w := performRequest(router, http.MethodGet, "/api/v1/status/notifications?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Zero(t, resp.Count)
}
