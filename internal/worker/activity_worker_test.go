package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/escalation-service/internal/domain"
	"github.com/spec-kit/escalation-service/internal/events"
	"github.com/spec-kit/escalation-service/internal/observability"
)

func TestActivityWorker_LogsAndCountsEvents(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(nil)
	StartActivityWorker(dispatcher, zap.New(core), metrics)

	err := dispatcher.Publish(context.Background(), events.Event{
		ID:        "evt-1",
		Type:      events.EventTicketTransitioned,
		TicketID:  "t-1",
		Actor:     "r1",
		RequestID: "req-1",
		Timestamp: time.Now(),
		Payload: events.TicketTransitionedPayload{
			Action:    "assign",
			OldStatus: domain.TicketStatusCreated,
			NewStatus: domain.TicketStatusAssigned,
		},
	})
	require.NoError(t, err)

	entries := logs.FilterMessage(string(events.EventTicketTransitioned)).All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "t-1", fields["ticket_id"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "ASSIGNED", fields["new_status"])
	assert.Equal(t, int64(1), metrics.Snapshot().Events["ticket_transitioned"])
}

func TestActivityWorker_SubscribesToEveryEventType(t *testing.T) {
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(nil)
	StartActivityWorker(dispatcher, nil, metrics)

	for _, eventType := range events.AllEventTypes {
		require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: eventType}))
	}
	snap := metrics.Snapshot()
	for _, eventType := range events.AllEventTypes {
		assert.Equal(t, int64(1), snap.Events[string(eventType)], eventType)
	}
}
