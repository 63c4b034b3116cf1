package observability

import (
	"sync"
	"time"
)

// Metrics defines the interface for collecting dashboard metrics
type Metrics interface {
	// IncrementRequests increments the request counter
	IncrementRequests(labels map[string]string)

	// RecordLatency records request latency
	RecordLatency(duration time.Duration, labels map[string]string)

	// IncrementRecords counts sales and traffic records processed
	IncrementRecords(count int, labels map[string]string)

	// RecordError increments error counter
	RecordError(errorType string, labels map[string]string)

	// SetActiveSessions sets the gauge for active chat sessions
	SetActiveSessions(count int)
}

// NoOpMetrics is a no-operation implementation of Metrics
type NoOpMetrics struct{}

// IncrementRequests implements Metrics interface
func (n *NoOpMetrics) IncrementRequests(labels map[string]string) {}

// RecordLatency implements Metrics interface
func (n *NoOpMetrics) RecordLatency(duration time.Duration, labels map[string]string) {}

// IncrementRecords implements Metrics interface
func (n *NoOpMetrics) IncrementRecords(count int, labels map[string]string) {}

// RecordError implements Metrics interface
func (n *NoOpMetrics) RecordError(errorType string, labels map[string]string) {}

// SetActiveSessions implements Metrics interface
func (n *NoOpMetrics) SetActiveSessions(count int) {}

// DefaultMetrics is a simple in-memory metrics collector
type DefaultMetrics struct {
	mu             sync.Mutex
	requests       int64
	totalLatency   time.Duration
	records        int64
	errors         map[string]int64
	activeSessions int
}

// NewDefaultMetrics creates a new DefaultMetrics instance
func NewDefaultMetrics() *DefaultMetrics {
	return &DefaultMetrics{
		errors: make(map[string]int64),
	}
}

// IncrementRequests implements Metrics interface
func (m *DefaultMetrics) IncrementRequests(labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
}

// RecordLatency implements Metrics interface
func (m *DefaultMetrics) RecordLatency(duration time.Duration, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalLatency += duration
}

// IncrementRecords implements Metrics interface
func (m *DefaultMetrics) IncrementRecords(count int, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records += int64(count)
}

// RecordError implements Metrics interface
func (m *DefaultMetrics) RecordError(errorType string, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[errorType]++
}

// SetActiveSessions implements Metrics interface
func (m *DefaultMetrics) SetActiveSessions(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeSessions = count
}

// GetStats returns current statistics
func (m *DefaultMetrics) GetStats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	errs := make(map[string]int64, len(m.errors))
	for k, v := range m.errors {
		errs[k] = v
	}
	return map[string]interface{}{
		"requests":        m.requests,
		"total_latency":   m.totalLatency.String(),
		"records":         m.records,
		"errors":          errs,
		"active_sessions": m.activeSessions,
	}
}

// Ensure implementations satisfy the interface
var _ Metrics = (*NoOpMetrics)(nil)
var _ Metrics = (*DefaultMetrics)(nil)
