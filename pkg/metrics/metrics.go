package metrics

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
	"github.com/pkg/errors"
)

const (
	MetricSalesTotal = "sales_total"
	MetricSalesCount = "sales_count"
	MetricProcCPU    = "proc_cpu_percent"
	MetricProcMem    = "proc_mem_mb"
)

var (
	mu      sync.RWMutex
	storage tstorage.Storage

	stampMu   sync.Mutex
	lastStamp int64
)

// nextTimestamp returns a strictly increasing millisecond timestamp. tstorage
// keeps one datapoint per metric per timestamp, so same-instant samples must
// never share one or all but the last are dropped.
func nextTimestamp() int64 {
	stampMu.Lock()
	defer stampMu.Unlock()
	ts := time.Now().UnixMilli()
	if ts <= lastStamp {
		ts = lastStamp + 1
	}
	lastStamp = ts
	return ts
}

// InitMetrics opens the embedded time-series store under workdir/metrics.
// Recording is a no-op until this succeeds, so callers may treat a failed
// init as a degraded mode rather than a fatal error.
func InitMetrics(workdir string) error {
	s, err := tstorage.NewStorage(
		tstorage.WithDataPath(filepath.Join(workdir, "metrics")),
		tstorage.WithTimestampPrecision(tstorage.Milliseconds),
		tstorage.WithRetention(30*24*time.Hour),
	)
	if err != nil {
		return errors.Wrap(err, "failed to open metrics storage")
	}
	mu.Lock()
	storage = s
	mu.Unlock()
	return nil
}

func Close() {
	mu.Lock()
	defer mu.Unlock()
	if storage != nil {
		_ = storage.Close()
		storage = nil
	}
}

func insert(rows []tstorage.Row) error {
	mu.RLock()
	s := storage
	mu.RUnlock()
	if s == nil {
		return nil
	}
	return errors.Wrap(s.InsertRows(rows), "failed to insert metric rows")
}

// RecordSale records one committed sale.
func RecordSale(subtotal float64) error {
	ts := nextTimestamp()
	return insert([]tstorage.Row{
		{Metric: MetricSalesTotal, DataPoint: tstorage.DataPoint{Timestamp: ts, Value: subtotal}},
		{Metric: MetricSalesCount, DataPoint: tstorage.DataPoint{Timestamp: ts, Value: 1}},
	})
}

// RecordGauge records a single named sample.
func RecordGauge(name string, value float64) error {
	return insert([]tstorage.Row{
		{Metric: name, DataPoint: tstorage.DataPoint{Timestamp: nextTimestamp(), Value: value}},
	})
}

// Select returns the datapoints for a metric between the millisecond
// timestamps start and end. A nil slice comes back when the store is not
// initialized or holds no points.
func Select(name string, start, end int64) ([]*tstorage.DataPoint, error) {
	mu.RLock()
	s := storage
	mu.RUnlock()
	if s == nil {
		return nil, nil
	}
	points, err := s.Select(name, nil, start, end)
	if errors.Is(err, tstorage.ErrNoDataPoints) {
		return nil, nil
	}
	return points, errors.Wrap(err, "failed to select metric")
}
