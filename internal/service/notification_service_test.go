package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-admission-api/internal/models"
	"github.com/noah-isme/sma-admission-api/pkg/jobs"
)

type recordingPublisher struct {
	mu       sync.Mutex
	messages []AdmissionEvent
	types    []string
	failures int
	done     chan struct{}
}

func newRecordingPublisher(failures int) *recordingPublisher {
	return &recordingPublisher{failures: failures, done: make(chan struct{}, 16)}
}

func (p *recordingPublisher) Publish(_ context.Context, messageID, messageType string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	var event AdmissionEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return err
	}
	p.messages = append(p.messages, event)
	p.types = append(p.types, messageType)
	p.done <- struct{}{}
	return nil
}

func waitPublished(t *testing.T, p *recordingPublisher) {
	t.Helper()
	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not published")
	}
}

func TestNotificationServicePublishesEvent(t *testing.T) {
	publisher := newRecordingPublisher(0)
	svc := NewNotificationService(publisher, NewMetricsService(), zap.NewNop(), jobs.QueueConfig{Workers: 1})
	svc.Start(context.Background())
	defer svc.Stop()

	svc.Notify(context.Background(), "s1", models.EventConsultationBooked)
	waitPublished(t, publisher)

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	require.Len(t, publisher.messages, 1)
	assert.Equal(t, "s1", publisher.messages[0].SubjectID)
	assert.Equal(t, models.EventConsultationBooked, publisher.messages[0].Kind)
	assert.NotEmpty(t, publisher.messages[0].ID)
	assert.Equal(t, "consultation_booked", publisher.types[0])
}

func TestNotificationServiceRetriesFailedPublish(t *testing.T) {
	publisher := newRecordingPublisher(1)
	svc := NewNotificationService(publisher, nil, nil, jobs.QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 5 * time.Millisecond})
	svc.Start(context.Background())
	defer svc.Stop()

	svc.Notify(context.Background(), "s1", models.EventPaymentConfirmed)
	waitPublished(t, publisher)
}

func TestNotificationServiceDoesNotBlockWhenStopped(t *testing.T) {
	publisher := newRecordingPublisher(0)
	svc := NewNotificationService(publisher, nil, nil, jobs.QueueConfig{Workers: 1})

	done := make(chan struct{})
	go func() {
		svc.Notify(context.Background(), "s1", models.EventEnrollmentApproved)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a stopped queue")
	}
	assert.Empty(t, publisher.messages)
}

func TestNotificationServiceIgnoresEmptyKind(t *testing.T) {
	publisher := newRecordingPublisher(0)
	svc := NewNotificationService(publisher, nil, nil, jobs.QueueConfig{Workers: 1})
	svc.Start(context.Background())
	defer svc.Stop()

	svc.Notify(context.Background(), "s1", models.EventKindFor(models.StatusApplicant))
	select {
	case <-publisher.done:
		t.Fatal("unexpected event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLogPublisherNeverFails(t *testing.T) {
	require.NoError(t, NewLogPublisher(nil).Publish(context.Background(), "id", "payment_confirmed", []byte(`{}`)))
}
