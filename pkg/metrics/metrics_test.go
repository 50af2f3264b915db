package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollectorRecordsPages(t *testing.T) {
	c := NewCollector("collector-test")
	c.RecordPage(DirectionWrite, 10, 400, time.Millisecond)
	c.RecordPage(DirectionWrite, 5, 200, time.Millisecond)
	c.RecordPage(DirectionRead, 15, 600, 2*time.Millisecond)

	w := c.Snapshot(DirectionWrite)
	assert.Equal(t, "collector-test", w.Dataset)
	assert.Equal(t, int64(2), w.Pages)
	assert.Equal(t, int64(15), w.Rows)
	assert.Equal(t, int64(600), w.Bytes)

	r := c.Snapshot(DirectionRead)
	assert.Equal(t, int64(1), r.Pages)
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.RecordPage(DirectionRead, 1, 1, time.Second)
	assert.Equal(t, Snapshot{}, c.Snapshot(DirectionRead))
}

func TestThroughputTracker(t *testing.T) {
	tracker := NewThroughputTracker("throughput-test")
	tracker.Increment(100)
	time.Sleep(5 * time.Millisecond)
	assert.Greater(t, tracker.GetAndReset(), 0.0)
	assert.Equal(t, int64(0), tracker.count)
}
