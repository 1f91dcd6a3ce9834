package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters covering the HTTP surface and
// the evaluation pipeline.
type Metrics struct {
	mu                sync.Mutex
	requestCount      map[string]int64
	errorCount        map[string]int64
	sweepCount        int64
	sweepSkipped      int64
	ticketsEvaluated  int64
	alertCount        map[string]int64
	notifySent        int64
	notifyFailed      int64
	broadcastDropped  int64
	lastSweepDuration time.Duration
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		alertCount:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordSweep captures the outcome of one full evaluation pass.
func (m *Metrics) RecordSweep(duration time.Duration, evaluated int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepCount++
	m.ticketsEvaluated += int64(evaluated)
	m.lastSweepDuration = duration
}

// RecordSweepSkipped counts ticks skipped because a sweep was still running.
func (m *Metrics) RecordSweepSkipped() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepSkipped++
}

// RecordAlert counts a persisted alert by state.
func (m *Metrics) RecordAlert(state string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alertCount[state]++
}

// RecordNotification counts webhook delivery outcomes.
func (m *Metrics) RecordNotification(ok bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.notifySent++
	} else {
		m.notifyFailed++
	}
}

// RecordBroadcastDropped counts events dropped because the hub queue was full.
func (m *Metrics) RecordBroadcastDropped() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcastDropped++
}

// SweepSnapshot reports aggregate evaluation counters.
type SweepSnapshot struct {
	Sweeps            int64
	SweepsSkipped     int64
	TicketsEvaluated  int64
	Alerts            map[string]int64
	NotificationsSent int64
	NotificationsFail int64
	LastSweepDuration time.Duration
}

// Snapshot returns a copy of the evaluation counters.
func (m *Metrics) Snapshot() SweepSnapshot {
	if m == nil {
		return SweepSnapshot{Alerts: map[string]int64{}}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	alerts := make(map[string]int64, len(m.alertCount))
	for k, v := range m.alertCount {
		alerts[k] = v
	}
	return SweepSnapshot{
		Sweeps:            m.sweepCount,
		SweepsSkipped:     m.sweepSkipped,
		TicketsEvaluated:  m.ticketsEvaluated,
		Alerts:            alerts,
		NotificationsSent: m.notifySent,
		NotificationsFail: m.notifyFailed,
		LastSweepDuration: m.lastSweepDuration,
	}
}
