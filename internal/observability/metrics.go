package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu               sync.Mutex
	requestCount     map[string]int64
	errorCount       map[string]int64
	transitionCount  map[string]int64
	eventCount       map[string]int64
	ticketsCreated   int64
	ticketsDeduped   int64
	requestDurations map[string]time.Duration
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Requests       map[string]int64 `json:"requests"`
	Errors         map[string]int64 `json:"errors"`
	Transitions    map[string]int64 `json:"transitions"`
	Events         map[string]int64 `json:"events"`
	TicketsCreated int64            `json:"tickets_created"`
	TicketsDeduped int64            `json:"tickets_deduplicated"`
	AvgLatencyMs   map[string]int64 `json:"avg_latency_ms"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:     make(map[string]int64),
		errorCount:       make(map[string]int64),
		transitionCount:  make(map[string]int64),
		eventCount:       make(map[string]int64),
		requestDurations: make(map[string]time.Duration),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requestDurations[key] += duration
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

// RecordTransition counts an accepted state change.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitionCount[from+"->"+to]++
}

// RecordEvent counts a delivered domain event.
func (m *Metrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventCount[eventType]++
}

// RecordTicketCreated counts creation requests, split by whether a new row was inserted.
func (m *Metrics) RecordTicketCreated(created bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if created {
		m.ticketsCreated++
	} else {
		m.ticketsDeduped++
	}
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := MetricsSnapshot{
		Requests:       copyCounts(m.requestCount),
		Errors:         copyCounts(m.errorCount),
		Transitions:    copyCounts(m.transitionCount),
		Events:         copyCounts(m.eventCount),
		TicketsCreated: m.ticketsCreated,
		TicketsDeduped: m.ticketsDeduped,
		AvgLatencyMs:   make(map[string]int64, len(m.requestDurations)),
	}
	for key, total := range m.requestDurations {
		if n := m.requestCount[key]; n > 0 {
			snap.AvgLatencyMs[key] = (total / time.Duration(n)).Milliseconds()
		}
	}
	return snap
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
