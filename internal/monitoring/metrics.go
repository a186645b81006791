// Package monitoring tracks lightweight in-process counters for the health
// and stats endpoints.
package monitoring

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds application metrics
type Metrics struct {
	RequestCount   int64
	ErrorCount     int64
	CacheHits      int64
	CacheMisses    int64
	DetectionRuns  int64
	CasesCreated   int64
	ScoresComputed int64

	AverageResponseTime int64 // in nanoseconds
	StartTime           time.Time

	RequestCountByStatus map[int]int64
	statusMutex          sync.RWMutex
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:            time.Now(),
		RequestCountByStatus: make(map[int]int64),
	}
}

// IncrementRequests increments the request counter
func (m *Metrics) IncrementRequests() {
	atomic.AddInt64(&m.RequestCount, 1)
}

// IncrementErrors increments the error counter
func (m *Metrics) IncrementErrors() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

// IncrementCacheHits increments the cache hit counter
func (m *Metrics) IncrementCacheHits() {
	atomic.AddInt64(&m.CacheHits, 1)
}

// IncrementCacheMisses increments the cache miss counter
func (m *Metrics) IncrementCacheMisses() {
	atomic.AddInt64(&m.CacheMisses, 1)
}

// IncrementDetectionRuns increments the detection sweep counter
func (m *Metrics) IncrementDetectionRuns() {
	atomic.AddInt64(&m.DetectionRuns, 1)
}

// AddCasesCreated adds to the cases-created counter
func (m *Metrics) AddCasesCreated(n int64) {
	atomic.AddInt64(&m.CasesCreated, n)
}

// AddScoresComputed adds to the scores-computed counter
func (m *Metrics) AddScoresComputed(n int64) {
	atomic.AddInt64(&m.ScoresComputed, n)
}

// RecordStatus tracks a response status code
func (m *Metrics) RecordStatus(code int) {
	m.statusMutex.Lock()
	defer m.statusMutex.Unlock()
	m.RequestCountByStatus[code]++
}

// RecordResponseTime folds one request duration into the running average.
func (m *Metrics) RecordResponseTime(d time.Duration) {
	count := atomic.LoadInt64(&m.RequestCount)
	if count == 0 {
		atomic.StoreInt64(&m.AverageResponseTime, int64(d))
		return
	}
	prev := atomic.LoadInt64(&m.AverageResponseTime)
	atomic.StoreInt64(&m.AverageResponseTime, (prev*(count-1)+int64(d))/count)
}

// GetStats returns current metrics as a map
func (m *Metrics) GetStats() map[string]interface{} {
	m.statusMutex.RLock()
	byStatus := make(map[int]int64, len(m.RequestCountByStatus))
	for code, n := range m.RequestCountByStatus {
		byStatus[code] = n
	}
	m.statusMutex.RUnlock()

	return map[string]interface{}{
		"request_count":        atomic.LoadInt64(&m.RequestCount),
		"error_count":          atomic.LoadInt64(&m.ErrorCount),
		"cache_hits":           atomic.LoadInt64(&m.CacheHits),
		"cache_misses":         atomic.LoadInt64(&m.CacheMisses),
		"detection_runs":       atomic.LoadInt64(&m.DetectionRuns),
		"cases_created":        atomic.LoadInt64(&m.CasesCreated),
		"scores_computed":      atomic.LoadInt64(&m.ScoresComputed),
		"avg_response_time_ms": float64(atomic.LoadInt64(&m.AverageResponseTime)) / 1e6,
		"requests_by_status":   byStatus,
		"uptime_seconds":       time.Since(m.StartTime).Seconds(),
	}
}
