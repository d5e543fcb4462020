package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects and aggregates request metrics per operation.
type Metrics struct {
	mu sync.Mutex

	requestTotal  atomic.Int64
	requestFailed atomic.Int64

	operationMetrics map[string]*OperationMetrics

	durations    []time.Duration
	maxDurations int
}

// OperationMetrics represents metrics for a single operation.
type OperationMetrics struct {
	executionCount atomic.Int64
	totalDuration  atomic.Int64 // milliseconds
	errorCount     atomic.Int64
}

// NewMetrics creates a new metrics collector keeping the last maxDurations
// request durations.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		operationMetrics: make(map[string]*OperationMetrics),
		durations:        make([]time.Duration, 0, maxDurations),
		maxDurations:     maxDurations,
	}
}

var globalMetrics = NewMetrics(1000)

// GlobalMetrics returns the global metrics instance.
func GlobalMetrics() *Metrics {
	return globalMetrics
}

// RecordRequest records a request for an operation.
func (m *Metrics) RecordRequest(operation string) {
	m.requestTotal.Add(1)
	m.getOperationMetrics(operation).executionCount.Add(1)
}

// RecordFailure records a failed request for an operation.
func (m *Metrics) RecordFailure(operation string) {
	m.requestFailed.Add(1)
	m.getOperationMetrics(operation).errorCount.Add(1)
}

// RecordDuration records a request duration.
func (m *Metrics) RecordDuration(operation string, duration time.Duration) {
	om := m.getOperationMetrics(operation)
	om.totalDuration.Add(duration.Milliseconds())

	m.mu.Lock()
	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration)
	m.mu.Unlock()
}

// GetRequestTotal returns the total number of requests.
func (m *Metrics) GetRequestTotal() int64 {
	return m.requestTotal.Load()
}

// GetRequestFailed returns the total number of failed requests.
func (m *Metrics) GetRequestFailed() int64 {
	return m.requestFailed.Load()
}

// GetAverageDuration returns the average duration in milliseconds for an operation.
func (m *Metrics) GetAverageDuration(operation string) int64 {
	om := m.getOperationMetrics(operation)
	count := om.executionCount.Load()
	if count == 0 {
		return 0
	}
	return om.totalDuration.Load() / count
}

// GetAllOperations returns all operations that have been recorded.
func (m *Metrics) GetAllOperations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	operations := make([]string, 0, len(m.operationMetrics))
	for operation := range m.operationMetrics {
		operations = append(operations, operation)
	}
	return operations
}

func (m *Metrics) getOperationMetrics(operation string) *OperationMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	om, ok := m.operationMetrics[operation]
	if !ok {
		om = &OperationMetrics{}
		m.operationMetrics[operation] = om
	}
	return om
}

// Reset resets all metrics (useful for testing).
func (m *Metrics) Reset() {
	m.requestTotal.Store(0)
	m.requestFailed.Store(0)

	m.mu.Lock()
	m.operationMetrics = make(map[string]*OperationMetrics)
	m.durations = make([]time.Duration, 0, m.maxDurations)
	m.mu.Unlock()
}

// Snapshot returns a point-in-time snapshot of the metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	operationSnapshots := make(map[string]*OperationMetricsSnapshot, len(m.operationMetrics))
	for operation, om := range m.operationMetrics {
		count := om.executionCount.Load()
		snapshot := &OperationMetricsSnapshot{
			ExecutionCount: count,
			TotalDuration:  om.totalDuration.Load(),
			ErrorCount:     om.errorCount.Load(),
		}
		if count > 0 {
			snapshot.AverageDuration = snapshot.TotalDuration / count
		}
		operationSnapshots[operation] = snapshot
	}

	return &MetricsSnapshot{
		RequestTotal:     m.requestTotal.Load(),
		RequestFailed:    m.requestFailed.Load(),
		OperationMetrics: operationSnapshots,
		DurationCount:    len(m.durations),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RequestTotal     int64                                `json:"request_total"`
	RequestFailed    int64                                `json:"request_failed"`
	OperationMetrics map[string]*OperationMetricsSnapshot `json:"operations"`
	DurationCount    int                                  `json:"duration_count"`
}

// OperationMetricsSnapshot represents metrics for a single operation.
type OperationMetricsSnapshot struct {
	ExecutionCount  int64 `json:"execution_count"`
	TotalDuration   int64 `json:"total_duration_ms"`
	ErrorCount      int64 `json:"error_count"`
	AverageDuration int64 `json:"average_duration_ms"`
}

// SuccessRate returns the success rate as a percentage (0-100).
func (s *MetricsSnapshot) SuccessRate() float64 {
	if s.RequestTotal == 0 {
		return 100.0
	}
	return float64(s.RequestTotal-s.RequestFailed) / float64(s.RequestTotal) * 100.0
}
