package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/escalate", "POST", 200, 10*time.Millisecond)
	m.RecordRequest("/escalate", "POST", 200, 30*time.Millisecond)
	m.RecordError("/escalate", "POST", "STATE_CONFLICT")
	m.RecordTransition("CREATED", "ASSIGNED")
	m.RecordEvent("ticket_created")
	m.RecordTicketCreated(true)
	m.RecordTicketCreated(false)
	m.RecordTicketCreated(false)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/escalate|POST|200"])
	assert.Equal(t, int64(20), snap.AvgLatencyMs["/escalate|POST|200"])
	assert.Equal(t, int64(1), snap.Errors["/escalate|POST|STATE_CONFLICT"])
	assert.Equal(t, int64(1), snap.Transitions["CREATED->ASSIGNED"])
	assert.Equal(t, int64(1), snap.Events["ticket_created"])
	assert.Equal(t, int64(1), snap.TicketsCreated)
	assert.Equal(t, int64(2), snap.TicketsDeduped)

	snap.Requests["/escalate|POST|200"] = 99
	assert.Equal(t, int64(2), m.Snapshot().Requests["/escalate|POST|200"])
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordTransition("A", "B")
	assert.Empty(t, m.Snapshot().Requests)
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))
	ctx = WithRequestID(ctx, "abc")
	assert.Equal(t, "abc", RequestIDFromContext(ctx))
}
