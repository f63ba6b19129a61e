package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/therapy-match-api/pkg/jobs"
)

// Domain event names.
const (
	EventTriageSubmitted             = "triage.submitted"
	EventTriageEmergency             = "triage.emergency"
	EventTriageScreeningNotEscalated = "triage.screening_not_escalated"
	EventDossierCreated              = "dossier.created"
)

// EventEmitter publishes domain events without blocking the caller.
type EventEmitter interface {
	Emit(ctx context.Context, name string, payload map[string]interface{})
}

// StreamAppender persists an event to a durable stream.
type StreamAppender interface {
	Append(ctx context.Context, stream string, values map[string]interface{}) (string, error)
}

// EventService queues events and publishes them to a Redis stream from worker goroutines.
type EventService struct {
	queue   *jobs.Queue
	streams StreamAppender
	stream  string
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// EventServiceConfig sizes the publishing worker pool.
type EventServiceConfig struct {
	Stream     string
	Workers    int
	BufferSize int
	MaxRetries int
}

// NewEventService constructs the emitter. Call Start before emitting.
func NewEventService(streams StreamAppender, cfg EventServiceConfig, metrics *MetricsService, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Stream == "" {
		cfg.Stream = "therapy-match:events"
	}
	svc := &EventService{
		streams: streams,
		stream:  cfg.Stream,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
	svc.queue = jobs.NewQueue("events", svc.publish, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return svc
}

// Start launches the publishing workers.
func (s *EventService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains pending events until ctx ends.
func (s *EventService) Stop(ctx context.Context) {
	s.queue.Stop(ctx)
}

// Emit enqueues the event. Failures are logged and counted, never returned.
func (s *EventService) Emit(_ context.Context, name string, payload map[string]interface{}) {
	job := jobs.Job{
		ID:       uuid.NewString(),
		Type:     name,
		Payload:  payload,
		Enqueued: s.now().UTC(),
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.metrics.RecordEvent(name, "dropped")
		s.logger.Warn("event dropped", zap.String("event", name), zap.String("event_id", job.ID), zap.Error(err))
		return
	}
	s.metrics.RecordEvent(name, "queued")
}

func (s *EventService) publish(ctx context.Context, job jobs.Job) error {
	body, err := json.Marshal(job.Payload)
	if err != nil {
		s.metrics.RecordEvent(job.Type, "invalid")
		s.logger.Error("event payload not serialisable", zap.String("event", job.Type), zap.Error(err))
		return nil
	}

	id, err := s.streams.Append(ctx, s.stream, map[string]interface{}{
		"event_id":    job.ID,
		"event":       job.Type,
		"payload":     string(body),
		"occurred_at": job.Enqueued.Format(time.RFC3339Nano),
	})
	if err != nil {
		s.metrics.RecordEvent(job.Type, "failed")
		return fmt.Errorf("publish %s: %w", job.Type, err)
	}

	s.metrics.RecordEvent(job.Type, "published")
	s.logger.Info("event published",
		zap.String("event", job.Type),
		zap.String("event_id", job.ID),
		zap.String("stream_id", id),
	)
	return nil
}
