// Package worker hosts background consumers of the in-process event stream.
package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/escalation-service/internal/events"
	"github.com/spec-kit/escalation-service/internal/observability"
)

// ActivityWorker writes an activity log line for every committed ticket mutation.
type ActivityWorker struct {
	logger  *zap.Logger
	metrics *observability.Metrics
}

// StartActivityWorker subscribes the worker to every event type.
func StartActivityWorker(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *ActivityWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &ActivityWorker{logger: logger.Named("activity"), metrics: metrics}
	if dispatcher == nil {
		return w
	}
	for _, eventType := range events.AllEventTypes {
		dispatcher.Subscribe(eventType, w.handle)
	}
	return w
}

func (w *ActivityWorker) handle(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("ticket_id", event.TicketID),
		zap.String("actor", event.Actor),
		zap.Time("at", event.Timestamp),
	}
	if event.RequestID != "" {
		fields = append(fields, zap.String("request_id", event.RequestID))
	}

	switch payload := event.Payload.(type) {
	case events.TicketCreatedPayload:
		fields = append(fields, zap.Stringp("agent_decision", payload.AgentDecision), zap.Float64p("confidence_score", payload.ConfidenceScore))
	case events.TicketTransitionedPayload:
		fields = append(fields,
			zap.String("action", payload.Action),
			zap.String("old_status", string(payload.OldStatus)),
			zap.String("new_status", string(payload.NewStatus)),
		)
	case events.TicketAssignmentUpdatedPayload:
		fields = append(fields, zap.Stringp("previous_assignee", payload.PreviousAssignee), zap.String("assigned_to", payload.AssignedTo))
	case events.TicketResolvedPayload:
		fields = append(fields,
			zap.String("status", string(payload.Status)),
			zap.String("resolved_by", payload.ResolvedBy),
		)
	}

	w.logger.Info(string(event.Type), fields...)
	w.metrics.RecordEvent(string(event.Type))
	return nil
}
