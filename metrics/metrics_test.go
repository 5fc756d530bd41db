package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountersSnapshot(t *testing.T) {
	c := NewCounters()
	c.IncSent("scheduler")
	c.IncSent("scheduler")
	c.IncSent("api")
	c.IncCycle()
	c.IncTriggered()
	c.IncSkipped()
	c.IncOutcome("telegram", true)
	c.IncOutcome("telegram", false)
	c.IncOutcome("push", true)

	snap := c.Snapshot()
	assert.Equal(t, int64(3), snap["notifications_sent_total"])
	assert.Equal(t, int64(2), snap["notifications_sent.scheduler"])
	assert.Equal(t, int64(1), snap["notifications_sent.api"])
	assert.Equal(t, int64(1), snap["cycles_total"])
	assert.Equal(t, int64(1), snap["alerts_triggered_total"])
	assert.Equal(t, int64(1), snap["alerts_skipped_total"])
	assert.Equal(t, int64(1), snap["channel.telegram.ok"])
	assert.Equal(t, int64(1), snap["channel.telegram.failed"])
	assert.Equal(t, int64(1), snap["channel.push.ok"])
	assert.Equal(t, int64(3), c.SentTotal())
}

func TestCountersSnapshotIsCopy(t *testing.T) {
	c := NewCounters()
	c.IncSent("api")

	snap := c.Snapshot()
	snap["notifications_sent_total"] = 99

	assert.Equal(t, int64(1), c.Snapshot()["notifications_sent_total"])
}

func TestCountersConcurrentIncrements(t *testing.T) {
	c := NewCounters()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.IncSent("scheduler")
				c.IncOutcome("push", j%2 == 0)
				c.IncCycle()
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	assert.Equal(t, int64(1000), snap["notifications_sent_total"])
	assert.Equal(t, int64(1000), snap["notifications_sent.scheduler"])
	assert.Equal(t, int64(1000), snap["cycles_total"])
	assert.Equal(t, int64(500), snap["channel.push.ok"])
	assert.Equal(t, int64(500), snap["channel.push.failed"])
}
