package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-admission-api/internal/models"
	"github.com/noah-isme/sma-admission-api/pkg/jobs"
)

const notificationJobType = "admission.notification"

// Notifier announces committed transitions. Implementations must not block
// the caller and never report delivery failures back.
type Notifier interface {
	Notify(ctx context.Context, subjectID string, kind models.EventKind)
}

// EventPublisher delivers an encoded event to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, messageID, messageType string, body []byte) error
}

// AdmissionEvent is the payload published for each committed transition.
type AdmissionEvent struct {
	ID         string           `json:"id"`
	SubjectID  string           `json:"subject_id"`
	Kind       models.EventKind `json:"event"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher constructs a LogPublisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(_ context.Context, messageID, messageType string, body []byte) error {
	p.logger.Info("admission event", zap.String("message_id", messageID), zap.String("type", messageType), zap.ByteString("body", body))
	return nil
}

// NotificationService fans transition events out through a worker queue.
type NotificationService struct {
	queue     *jobs.Queue
	publisher EventPublisher
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewNotificationService builds the service and its queue. Start must be
// called before events are accepted.
func NewNotificationService(publisher EventPublisher, metrics *MetricsService, logger *zap.Logger, cfg jobs.QueueConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = NewLogPublisher(logger)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	svc := &NotificationService{
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	svc.queue = jobs.NewQueue("notifications", svc.handle, cfg)
	return svc
}

// Start launches the queue workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify enqueues an event without blocking. A full or stopped queue drops
// the event with a warning.
func (s *NotificationService) Notify(_ context.Context, subjectID string, kind models.EventKind) {
	if kind == "" {
		return
	}
	event := AdmissionEvent{SubjectID: subjectID, Kind: kind, OccurredAt: s.now()}
	if err := s.queue.TryEnqueue(jobs.Job{Type: notificationJobType, Payload: event}); err != nil {
		result := "dropped"
		if !errors.Is(err, jobs.ErrQueueFull) {
			result = "rejected"
		}
		s.metrics.RecordNotification(kind, result)
		s.logger.Warn("notification not queued", zap.String("subject_id", subjectID), zap.String("event", string(kind)), zap.Error(err))
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(AdmissionEvent)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	event.ID = job.ID

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode admission event: %w", err)
	}
	if err := s.publisher.Publish(ctx, event.ID, string(event.Kind), body); err != nil {
		s.metrics.RecordNotification(event.Kind, "failed")
		return fmt.Errorf("publish %s: %w", event.Kind, err)
	}
	s.metrics.RecordNotification(event.Kind, "published")
	return nil
}
