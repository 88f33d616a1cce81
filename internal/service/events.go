package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/umi-schedule-api/internal/models"
	"github.com/noah-isme/umi-schedule-api/pkg/jobs"
	"github.com/noah-isme/umi-schedule-api/pkg/middleware/requestid"
)

// EventSink receives domain events after the originating transaction has
// committed. Delivery is best effort and never fails the operation.
type EventSink interface {
	Publish(ctx context.Context, event models.DomainEvent) error
}

// EventSinkFunc adapts a function into an EventSink.
type EventSinkFunc func(ctx context.Context, event models.DomainEvent) error

// Publish implements EventSink.
func (f EventSinkFunc) Publish(ctx context.Context, event models.DomainEvent) error {
	return f(ctx, event)
}

func newEvent(ctx context.Context, eventType string, actor models.Actor, resource, resourceID string, payload interface{}) models.DomainEvent {
	return models.DomainEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		ActorID:    actor.UserID,
		Resource:   resource,
		ResourceID: resourceID,
		RequestID:  requestid.FromContext(ctx),
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

// emitter publishes events and swallows failures with a warning.
type emitter struct {
	sink   EventSink
	logger *zap.Logger
}

func (e emitter) emit(ctx context.Context, events ...models.DomainEvent) {
	if e.sink == nil {
		return
	}
	for _, event := range events {
		if err := e.sink.Publish(ctx, event); err != nil {
			e.logger.Warn("failed to publish domain event",
				zap.String("type", event.Type),
				zap.String("resource_id", event.ResourceID),
				zap.Error(err))
		}
	}
}

// LogEventSink writes events to the structured log.
type LogEventSink struct {
	logger *zap.Logger
}

// NewLogEventSink constructs a log-backed sink.
func NewLogEventSink(logger *zap.Logger) *LogEventSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogEventSink{logger: logger}
}

// Publish implements EventSink.
func (s *LogEventSink) Publish(_ context.Context, event models.DomainEvent) error {
	s.logger.Info("domain event",
		zap.String("event_id", event.ID),
		zap.String("type", event.Type),
		zap.String("actor_id", event.ActorID),
		zap.String("resource", event.Resource),
		zap.String("resource_id", event.ResourceID),
		zap.String("request_id", event.RequestID),
		zap.Any("payload", event.Payload),
	)
	return nil
}

type listPusher interface {
	PushJSON(ctx context.Context, key string, value interface{}) error
}

// RedisEventSink pushes JSON-encoded events onto a Redis list for external
// consumers such as notification workers.
type RedisEventSink struct {
	pusher listPusher
	key    string
}

// NewRedisEventSink constructs a Redis list sink.
func NewRedisEventSink(pusher listPusher, key string) *RedisEventSink {
	if key == "" {
		key = "attendance:events"
	}
	return &RedisEventSink{pusher: pusher, key: key}
}

// Publish implements EventSink.
func (s *RedisEventSink) Publish(ctx context.Context, event models.DomainEvent) error {
	return s.pusher.PushJSON(ctx, s.key, event)
}

// AuditEventSink persists every event as an audit log row.
type AuditEventSink struct {
	audit auditLogger
}

// NewAuditEventSink constructs an audit-backed sink.
func NewAuditEventSink(audit auditLogger) *AuditEventSink {
	return &AuditEventSink{audit: audit}
}

// Publish implements EventSink.
func (s *AuditEventSink) Publish(ctx context.Context, event models.DomainEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	log := &models.AuditLog{
		Action:    models.AuditActionFor(event.Type),
		Resource:  event.Resource,
		NewValues: payload,
		RequestID: event.RequestID,
		CreatedAt: event.OccurredAt,
	}
	if event.ActorID != "" {
		actorID := event.ActorID
		log.UserID = &actorID
	}
	if event.ResourceID != "" {
		resourceID := event.ResourceID
		log.ResourceID = &resourceID
	}
	return s.audit.CreateAuditLog(ctx, log)
}

// MultiEventSink fans an event out to several sinks, attempting all of them.
type MultiEventSink []EventSink

// Publish implements EventSink.
func (m MultiEventSink) Publish(ctx context.Context, event models.DomainEvent) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AsyncEventSink hands events to a worker queue so publishing never blocks
// the request path. Failed deliveries are retried by the queue.
type AsyncEventSink struct {
	queue *jobs.Queue
}

// NewAsyncEventSink wires a queue whose workers deliver to next. The caller
// owns the queue lifecycle through Start and Stop.
func NewAsyncEventSink(next EventSink, cfg jobs.QueueConfig) *AsyncEventSink {
	handler := func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(models.DomainEvent)
		if !ok {
			return fmt.Errorf("unexpected event payload %T", job.Payload)
		}
		return next.Publish(ctx, event)
	}
	return &AsyncEventSink{queue: jobs.NewQueue("domain-events", handler, cfg)}
}

// Start launches the delivery workers. Cancelling ctx does not stop delivery;
// Stop drains buffered events and bounds the wait with the drain timeout.
func (s *AsyncEventSink) Start(ctx context.Context) {
	s.queue.Start(context.WithoutCancel(ctx))
}

// Stop drains pending events and stops the workers.
func (s *AsyncEventSink) Stop() {
	s.queue.Stop()
}

// Publish implements EventSink. The request context is not propagated to the
// worker since delivery outlives the request.
func (s *AsyncEventSink) Publish(_ context.Context, event models.DomainEvent) error {
	return s.queue.TryEnqueue(jobs.Job{ID: event.ID, Type: event.Type, Payload: event})
}
