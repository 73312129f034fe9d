package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-admission-api/internal/models"
	"github.com/noah-isme/sma-admission-api/internal/repository"
	appErrors "github.com/noah-isme/sma-admission-api/pkg/errors"
)

// SubjectStore is the persistence the transition engine depends on.
// WriteStatus must be a compare-and-swap on the expected status and report a
// lost race with repository.ErrStaleStatus.
type SubjectStore interface {
	ReadStatus(ctx context.Context, id string) (*models.Subject, error)
	WriteStatus(ctx context.Context, id string, expected, next models.Status, at time.Time) error
}

// TransitionEngineOption customises a TransitionEngine.
type TransitionEngineOption func(*TransitionEngine)

// WithPersistenceTimeout bounds every store call.
func WithPersistenceTimeout(d time.Duration) TransitionEngineOption {
	return func(e *TransitionEngine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithClock overrides the time source used for ChangedAt.
func WithClock(now func() time.Time) TransitionEngineOption {
	return func(e *TransitionEngine) {
		if now != nil {
			e.now = now
		}
	}
}

// TransitionEngine is the single writer of admission status.
type TransitionEngine struct {
	store   SubjectStore
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewTransitionEngine constructs a TransitionEngine.
func NewTransitionEngine(store SubjectStore, logger *zap.Logger, opts ...TransitionEngineOption) *TransitionEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := &TransitionEngine{
		store:   store,
		logger:  logger,
		timeout: 5 * time.Second,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Transition moves the subject to target if target is the legal successor of
// its current status. Nothing is written unless every check passes, and a
// failed call leaves the stored status untouched.
func (e *TransitionEngine) Transition(ctx context.Context, subjectID string, target models.Status) (*models.TransitionResult, error) {
	readCtx, cancel := context.WithTimeout(ctx, e.timeout)
	subject, err := e.store.ReadStatus(readCtx, subjectID)
	cancel()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.WithDetails(appErrors.ErrSubjectNotFound, map[string]interface{}{"subject_id": subjectID})
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrPersistenceFailure, "failed to read subject status")
	}

	if !subject.Active || !subject.InWorkflow() {
		return nil, appErrors.WithDetails(appErrors.ErrTransitionUnauthorized, map[string]interface{}{
			"subject_id": subjectID,
			"reason":     "subject is not an active student",
		})
	}

	current := subject.Status
	if !target.Valid() || !models.CanTransition(current, target) {
		return nil, appErrors.WithDetails(appErrors.ErrInvalidTransition, map[string]interface{}{
			"from": string(current),
			"to":   string(target),
		})
	}

	at := e.now()
	writeCtx, cancel := context.WithTimeout(ctx, e.timeout)
	err = e.store.WriteStatus(writeCtx, subjectID, current, target, at)
	cancel()
	if err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			e.logger.Info("transition lost race",
				zap.String("subject_id", subjectID),
				zap.String("from", string(current)),
				zap.String("to", string(target)))
			return nil, appErrors.WithDetails(appErrors.ErrPersistenceConflict, map[string]interface{}{
				"from": string(current),
				"to":   string(target),
			})
		}
		e.logger.Error("transition write failed", zap.String("subject_id", subjectID), zap.Error(err))
		return nil, appErrors.WrapAs(err, appErrors.ErrPersistenceFailure, "failed to persist subject status")
	}

	e.logger.Info("subject transitioned",
		zap.String("subject_id", subjectID),
		zap.String("from", string(current)),
		zap.String("to", string(target)))
	return &models.TransitionResult{SubjectID: subjectID, From: current, To: target, ChangedAt: at}, nil
}
