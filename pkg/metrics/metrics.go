// Package metrics provides Prometheus instrumentation for dataset I/O.
//
// # Overview
//
// Every dataset handle may carry a Collector. The dataset reports each page
// it reads or writes together with the rows and bytes involved and the time
// spent encoding or decoding it:
//
//	collector := metrics.NewCollector("beam.sdds")
//	ds, err := sdds.Open("beam.sdds", sdds.WithMetrics(collector))
//
// The collectors are registered with the default Prometheus registry, so a
// process exposing promhttp.Handler() publishes them without further setup.
//
// # Metric Types
//
// Counter: pages, rows and bytes moved, labelled by dataset and direction
// Histogram: page encode and decode latency, labelled by direction
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Direction labels
const (
	DirectionRead  = "read"
	DirectionWrite = "write"
)

var (
	// PagesTotal counts pages read or written.
	// Labels: dataset, direction (read/write)
	PagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdds_pages_total",
			Help: "Total number of pages read or written",
		},
		[]string{"dataset", "direction"},
	)

	// RowsTotal counts rows stored by reads or emitted by writes.
	// Labels: dataset, direction
	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdds_rows_total",
			Help: "Total number of rows read or written",
		},
		[]string{"dataset", "direction"},
	)

	// BytesTotal counts encoded page bytes, measured before compression.
	// Labels: dataset, direction
	BytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdds_bytes_total",
			Help: "Total number of encoded page bytes read or written",
		},
		[]string{"dataset", "direction"},
	)

	// PageLatency tracks how long a page takes to encode or decode, in seconds.
	// Labels: direction
	PageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "sdds_page_latency_seconds",
			Help: "Page encode and decode latency in seconds",
			Buckets: []float64{
				1e-5, // 10μs - a handful of rows
				1e-4, // 100μs
				1e-3, // 1ms - typical page
				1e-2, // 10ms
				1e-1, // 100ms - large or compressed pages
				1,    // 1s
				10,   // 10s - multi-million row pages
			},
		},
		[]string{"direction"},
	)

	// Throughput tracks rows per second of long running conversions
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sdds_throughput_rows_per_second",
			Help: "Current throughput in rows per second",
		},
		[]string{"dataset"},
	)
)

// Collector reports the page traffic of one dataset. A nil *Collector is a
// valid no-op collector.
type Collector struct {
	name      string
	startTime time.Time

	pages [2]atomic.Int64
	rows  [2]atomic.Int64
	bytes [2]atomic.Int64
}

// NewCollector creates a collector labelled with the dataset name
func NewCollector(name string) *Collector {
	return &Collector{name: name, startTime: time.Now()}
}

func slot(direction string) int {
	if direction == DirectionWrite {
		return 1
	}
	return 0
}

// RecordPage reports one page moved in direction
func (c *Collector) RecordPage(direction string, rows, bytes int64, elapsed time.Duration) {
	if c == nil {
		return
	}
	i := slot(direction)
	c.pages[i].Add(1)
	c.rows[i].Add(rows)
	c.bytes[i].Add(bytes)

	PagesTotal.WithLabelValues(c.name, direction).Inc()
	RowsTotal.WithLabelValues(c.name, direction).Add(float64(rows))
	if bytes > 0 {
		BytesTotal.WithLabelValues(c.name, direction).Add(float64(bytes))
	}
	PageLatency.WithLabelValues(direction).Observe(elapsed.Seconds())
}

// Snapshot is a point-in-time copy of a collector's totals
type Snapshot struct {
	Dataset string
	Uptime  time.Duration
	Pages   int64
	Rows    int64
	Bytes   int64
}

// Snapshot returns the totals for direction
func (c *Collector) Snapshot(direction string) Snapshot {
	if c == nil {
		return Snapshot{}
	}
	i := slot(direction)
	return Snapshot{
		Dataset: c.name,
		Uptime:  time.Since(c.startTime),
		Pages:   c.pages[i].Load(),
		Rows:    c.rows[i].Load(),
		Bytes:   c.bytes[i].Load(),
	}
}

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
//
// Example:
//
//	timer := metrics.NewTimer("read_page")
//	info, err := codec.ReadPage(r, page, opts)
//	collector.RecordPage(metrics.DirectionRead, info.Rows, info.End-info.Start, timer.Stop())
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop returns the elapsed duration since creation. It may be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// Name returns the label given to NewTimer
func (t *Timer) Name() string { return t.name }

// ThroughputTracker tracks rows per second over time windows.
// Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64     // Rows since last reset
	lastReset time.Time // Time of last reset
	dataset   string
}

// NewThroughputTracker creates a tracker publishing under the dataset label
func NewThroughputTracker(dataset string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		dataset:   dataset,
	}
}

// Increment adds n to the row count. Safe for concurrent use.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the current throughput (rows/second),
// updates the Prometheus gauge, resets the counter, and returns
// the calculated throughput. Safe for concurrent use.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()

	Throughput.WithLabelValues(t.dataset).Set(throughput)

	return throughput
}
