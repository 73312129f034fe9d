package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-admission-api/internal/dto"
	"github.com/noah-isme/sma-admission-api/internal/models"
	"github.com/noah-isme/sma-admission-api/internal/repository"
	appErrors "github.com/noah-isme/sma-admission-api/pkg/errors"
)

const historyLimit = 50

type admissionRepository interface {
	Create(ctx context.Context, subject *models.Subject) error
	ReadStatus(ctx context.Context, id string) (*models.Subject, error)
	ReadActive(ctx context.Context, id string) (bool, error)
	History(ctx context.Context, subjectID string, limit int) ([]models.StatusHistory, error)
}

type transitioner interface {
	Transition(ctx context.Context, subjectID string, target models.Status) (*models.TransitionResult, error)
}

// AdmissionOption customises an AdmissionService.
type AdmissionOption func(*AdmissionService)

// WithSubjectCache enables cached subject snapshots.
func WithSubjectCache(cache *CacheService) AdmissionOption {
	return func(s *AdmissionService) { s.cache = cache }
}

// WithNotifier sets the notifier fired after committed transitions.
func WithNotifier(n Notifier) AdmissionOption {
	return func(s *AdmissionService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithMetrics records transition outcomes.
func WithMetrics(m *MetricsService) AdmissionOption {
	return func(s *AdmissionService) { s.metrics = m }
}

// WithMaxRetries bounds the conflict retries of Advance.
func WithMaxRetries(n int) AdmissionOption {
	return func(s *AdmissionService) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, models.EventKind) {}

// AdmissionService orchestrates registration, authorised transitions and reads.
type AdmissionService struct {
	repo       admissionRepository
	engine     transitioner
	policy     *AccessPolicy
	cache      *CacheService
	notifier   Notifier
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	maxRetries int
}

// NewAdmissionService constructs AdmissionService.
func NewAdmissionService(repo admissionRepository, engine transitioner, policy *AccessPolicy, validate *validator.Validate, logger *zap.Logger, opts ...AdmissionOption) *AdmissionService {
	if validate == nil {
		validate = validator.New()
		_ = dto.RegisterValidations(validate)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AdmissionService{
		repo:       repo,
		engine:     engine,
		policy:     policy,
		notifier:   noopNotifier{},
		validator:  validate,
		logger:     logger,
		maxRetries: 2,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func subjectCacheKey(id string) string {
	return "subject:" + id
}

// Register creates a new active student subject in the applicant status.
func (s *AdmissionService) Register(ctx context.Context, req dto.RegisterSubjectRequest) (*models.Subject, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	subject := &models.Subject{
		FullName: req.FullName,
		Email:    req.Email,
		Role:     models.RoleStudent,
		Status:   models.StatusApplicant,
		Active:   true,
	}
	if err := s.repo.Create(ctx, subject); err != nil {
		if errors.Is(err, repository.ErrDuplicateSubject) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register subject")
	}
	s.logger.Info("subject registered", zap.String("subject_id", subject.ID))
	return subject, nil
}

// Get returns the subject, served from cache when available.
func (s *AdmissionService) Get(ctx context.Context, id string) (*models.Subject, error) {
	var cached models.Subject
	if s.cache.Get(ctx, subjectCacheKey(id), &cached) {
		return &cached, nil
	}

	subject, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, subjectCacheKey(id), subject)
	return subject, nil
}

func (s *AdmissionService) load(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.ReadStatus(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrSubjectNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

// CallerResolver reads guard callers from persistence, skipping the snapshot
// cache so a deactivated subject loses its areas on the next request.
type CallerResolver struct {
	svc *AdmissionService
}

// Get loads the caller's current record.
func (r CallerResolver) Get(ctx context.Context, id string) (*models.Subject, error) {
	return r.svc.load(ctx, id)
}

// Callers returns the resolver used by the route guard.
func (s *AdmissionService) Callers() CallerResolver {
	return CallerResolver{svc: s}
}

// View returns the subject together with its derived access.
func (s *AdmissionService) View(ctx context.Context, id string) (*dto.SubjectView, error) {
	subject, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	view := &dto.SubjectView{
		Subject: subject,
		Home:    s.policy.HomeArea(subject),
		Areas:   s.policy.ReachableAreas(subject),
		Next:    []models.Status{},
	}
	if subject.InWorkflow() {
		view.Permissions = s.policy.Permissions(subject.Status)
		view.Next = models.LegalSuccessors(subject.Status)
	}
	return view, nil
}

// Transition moves subjectID to target on behalf of actor.
func (s *AdmissionService) Transition(ctx context.Context, actor *models.Subject, subjectID string, target models.Status) (*models.TransitionResult, error) {
	if err := s.authorize(ctx, actor, subjectID, target); err != nil {
		return nil, err
	}

	result, err := s.engine.Transition(ctx, subjectID, target)
	if err != nil {
		s.recordFailure(err, target)
		return nil, err
	}

	s.cache.Invalidate(ctx, subjectCacheKey(subjectID))
	s.metrics.RecordTransition(result.From, result.To, "ok")
	s.notifier.Notify(context.WithoutCancel(ctx), subjectID, models.EventKindFor(result.To))
	return result, nil
}

// Advance moves the subject to its sole legal successor, re-reading the
// current status and retrying when another writer got there first.
func (s *AdmissionService) Advance(ctx context.Context, actor *models.Subject, subjectID string) (*models.TransitionResult, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		subject, err := s.repo.ReadStatus(ctx, subjectID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrSubjectNotFound, "")
			}
			return nil, appErrors.WrapAs(err, appErrors.ErrPersistenceFailure, "failed to read subject status")
		}

		next := models.LegalSuccessors(subject.Status)
		if len(next) != 1 {
			return nil, appErrors.WithDetails(appErrors.ErrInvalidTransition, map[string]interface{}{
				"from":   string(subject.Status),
				"reason": "no legal successor",
			})
		}

		result, err := s.Transition(ctx, actor, subjectID, next[0])
		if err == nil {
			return result, nil
		}
		if !appErrors.Retryable(err) {
			return nil, err
		}
		lastErr = err
		s.logger.Debug("advance retrying after conflict", zap.String("subject_id", subjectID), zap.Int("attempt", attempt+1))
	}
	return nil, lastErr
}

// History returns the most recent status changes of the subject.
func (s *AdmissionService) History(ctx context.Context, subjectID string) ([]models.StatusHistory, error) {
	if _, err := s.Get(ctx, subjectID); err != nil {
		return nil, err
	}
	rows, err := s.repo.History(ctx, subjectID, historyLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status history")
	}
	if rows == nil {
		rows = []models.StatusHistory{}
	}
	return rows, nil
}

// authorize checks the requester table and that the actor is still active.
func (s *AdmissionService) authorize(ctx context.Context, actor *models.Subject, subjectID string, target models.Status) error {
	if actor == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if !s.policy.CanRequestTransition(actor, subjectID, target) {
		s.metrics.RecordTransition("", target, appErrors.ErrTransitionUnauthorized.Code)
		return appErrors.WithDetails(appErrors.ErrTransitionUnauthorized, map[string]interface{}{
			"role": string(actor.Role),
			"to":   string(target),
		})
	}
	active, err := s.repo.ReadActive(ctx, actor.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.WrapAs(err, appErrors.ErrPersistenceFailure, "failed to verify requester")
	}
	if !active {
		s.metrics.RecordTransition("", target, appErrors.ErrTransitionUnauthorized.Code)
		return appErrors.WithDetails(appErrors.ErrTransitionUnauthorized, map[string]interface{}{
			"reason": "requester is not active",
		})
	}
	return nil
}

func (s *AdmissionService) recordFailure(err error, target models.Status) {
	code := appErrors.FromError(err).Code
	var from models.Status
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		if raw, ok := appErr.Details["from"].(string); ok {
			from = models.Status(raw)
		}
	}
	s.metrics.RecordTransition(from, target, code)
	if errors.Is(err, appErrors.ErrPersistenceFailure) {
		s.logger.Error("transition failed", zap.String("to", string(target)), zap.Error(err))
	}
}
