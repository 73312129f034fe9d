package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-admission-api/internal/models"
	"github.com/noah-isme/sma-admission-api/internal/repository"
	appErrors "github.com/noah-isme/sma-admission-api/pkg/errors"
)

// memoryStore keeps subjects in memory and applies WriteStatus as a CAS.
type memoryStore struct {
	mu       sync.Mutex
	subjects map[string]models.Subject
	history  []models.StatusHistory
	writes   int
	readErr  error
	writeErr error
	// beforeWrite runs after the CAS check is scheduled but before it is applied.
	beforeWrite func()
}

func newMemoryStore(subjects ...models.Subject) *memoryStore {
	store := &memoryStore{subjects: make(map[string]models.Subject)}
	for _, s := range subjects {
		store.subjects[s.ID] = s
	}
	return store
}

func (m *memoryStore) ReadStatus(ctx context.Context, id string) (*models.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	s, ok := m.subjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (m *memoryStore) ReadActive(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subjects[id]
	if !ok {
		return false, sql.ErrNoRows
	}
	return s.Active, nil
}

func (m *memoryStore) WriteStatus(ctx context.Context, id string, expected, next models.Status, at time.Time) error {
	if m.beforeWrite != nil {
		m.beforeWrite()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.writeErr != nil {
		return m.writeErr
	}
	s, ok := m.subjects[id]
	if !ok || s.Status != expected || !s.Active || s.Role != models.RoleStudent {
		return repository.ErrStaleStatus
	}
	s.Status = next
	s.UpdatedAt = at
	m.subjects[id] = s
	m.history = append(m.history, models.StatusHistory{SubjectID: id, FromStatus: expected, ToStatus: next, ChangedAt: at})
	return nil
}

func (m *memoryStore) Create(ctx context.Context, subject *models.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if subject.ID == "" {
		subject.ID = "generated"
	}
	if subject.Status == "" {
		subject.Status = models.StatusApplicant
	}
	m.subjects[subject.ID] = *subject
	return nil
}

func (m *memoryStore) History(ctx context.Context, subjectID string, limit int) ([]models.StatusHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.StatusHistory
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].SubjectID == subjectID {
			out = append(out, m.history[i])
		}
	}
	return out, nil
}

func (m *memoryStore) status(id string) models.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subjects[id].Status
}

func student(id string, status models.Status) models.Subject {
	return models.Subject{ID: id, FullName: "Applicant " + id, Role: models.RoleStudent, Status: status, Active: true}
}

func fixedClock() func() time.Time {
	at := time.Date(2024, 7, 15, 8, 30, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func TestTransitionEngineLegalTransition(t *testing.T) {
	store := newMemoryStore(student("s1", models.StatusApplicant))
	engine := NewTransitionEngine(store, zap.NewNop(), WithClock(fixedClock()))

	result, err := engine.Transition(context.Background(), "s1", models.StatusConsultationPending)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApplicant, result.From)
	assert.Equal(t, models.StatusConsultationPending, result.To)
	assert.Equal(t, fixedClock()(), result.ChangedAt)
	assert.Equal(t, models.StatusConsultationPending, store.status("s1"))
}

func TestTransitionEngineRejectsIllegalEdgesWithoutWriting(t *testing.T) {
	cases := []struct {
		name    string
		current models.Status
		target  models.Status
	}{
		{"skip ahead", models.StatusApplicant, models.StatusPaymentPending},
		{"backwards", models.StatusPaymentPending, models.StatusConsultationPending},
		{"self loop", models.StatusConsultationCompleted, models.StatusConsultationCompleted},
		{"from terminal", models.StatusStudent, models.StatusApplicant},
		{"unknown target", models.StatusApplicant, models.Status("expelled")},
		{"unknown stored status", models.Status("enrolled_pending_payment"), models.StatusStudent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemoryStore(student("s1", tc.current))
			engine := NewTransitionEngine(store, zap.NewNop())

			_, err := engine.Transition(context.Background(), "s1", tc.target)
			require.ErrorIs(t, err, appErrors.ErrInvalidTransition)

			var appErr *appErrors.Error
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, string(tc.current), appErr.Details["from"])
			assert.Equal(t, string(tc.target), appErr.Details["to"])
			assert.Zero(t, store.writes)
			assert.Equal(t, tc.current, store.status("s1"))
		})
	}
}

func TestTransitionEngineRepeatedIllegalRequestFailsTheSameWay(t *testing.T) {
	store := newMemoryStore(student("s1", models.StatusApplicant))
	engine := NewTransitionEngine(store, nil)

	for attempt := 0; attempt < 2; attempt++ {
		_, err := engine.Transition(context.Background(), "s1", models.StatusEnrollmentSubmitted)
		require.ErrorIs(t, err, appErrors.ErrInvalidTransition, "attempt %d", attempt)

		appErr := appErrors.FromError(err)
		assert.Equal(t, "applicant", appErr.Details["from"])
		assert.Equal(t, "enrollment_submitted", appErr.Details["to"])
		assert.Zero(t, store.writes)
		assert.Equal(t, models.StatusApplicant, store.status("s1"))
	}
}

func TestTransitionEngineSubjectNotFound(t *testing.T) {
	engine := NewTransitionEngine(newMemoryStore(), nil)
	_, err := engine.Transition(context.Background(), "missing", models.StatusConsultationPending)
	require.ErrorIs(t, err, appErrors.ErrSubjectNotFound)
}

func TestTransitionEngineRejectsSubjectsOutsideWorkflow(t *testing.T) {
	inactive := student("s1", models.StatusApplicant)
	inactive.Active = false
	teacher := models.Subject{ID: "t1", Role: models.RoleTeacher, Status: models.StatusApplicant, Active: true}
	store := newMemoryStore(inactive, teacher)
	engine := NewTransitionEngine(store, nil)

	_, err := engine.Transition(context.Background(), "s1", models.StatusConsultationPending)
	require.ErrorIs(t, err, appErrors.ErrTransitionUnauthorized)
	_, err = engine.Transition(context.Background(), "t1", models.StatusConsultationPending)
	require.ErrorIs(t, err, appErrors.ErrTransitionUnauthorized)
	assert.Zero(t, store.writes)
}

func TestTransitionEngineReadFailure(t *testing.T) {
	store := newMemoryStore(student("s1", models.StatusApplicant))
	store.readErr = errors.New("connection refused")
	engine := NewTransitionEngine(store, nil)

	_, err := engine.Transition(context.Background(), "s1", models.StatusConsultationPending)
	require.ErrorIs(t, err, appErrors.ErrPersistenceFailure)
	assert.Zero(t, store.writes)
}

func TestTransitionEngineWriteFailureLeavesStatus(t *testing.T) {
	store := newMemoryStore(student("s1", models.StatusPaymentPending))
	store.writeErr = errors.New("disk full")
	engine := NewTransitionEngine(store, nil)

	_, err := engine.Transition(context.Background(), "s1", models.StatusEnrollmentSubmitted)
	require.ErrorIs(t, err, appErrors.ErrPersistenceFailure)
	assert.Equal(t, models.StatusPaymentPending, store.status("s1"))
}

func TestTransitionEngineTimeoutIsPersistenceFailure(t *testing.T) {
	store := newMemoryStore(student("s1", models.StatusApplicant))
	store.beforeWrite = func() { time.Sleep(20 * time.Millisecond) }
	engine := NewTransitionEngine(store, nil, WithPersistenceTimeout(time.Millisecond))

	_, err := engine.Transition(context.Background(), "s1", models.StatusConsultationPending)
	require.ErrorIs(t, err, appErrors.ErrPersistenceFailure)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, models.StatusApplicant, store.status("s1"))
}

func TestTransitionEngineStaleWriteIsConflict(t *testing.T) {
	store := newMemoryStore(student("s1", models.StatusApplicant))
	engine := NewTransitionEngine(store, nil)
	// Another writer moves the subject between the read and the write.
	store.beforeWrite = func() {
		store.mu.Lock()
		s := store.subjects["s1"]
		s.Status = models.StatusConsultationPending
		store.subjects["s1"] = s
		store.mu.Unlock()
		store.beforeWrite = nil
	}

	_, err := engine.Transition(context.Background(), "s1", models.StatusConsultationPending)
	require.ErrorIs(t, err, appErrors.ErrPersistenceConflict)
	assert.True(t, appErrors.Retryable(err))
}

func TestTransitionEngineConcurrentTransitionsCommitOnce(t *testing.T) {
	const racers = 8
	store := newMemoryStore(student("s1", models.StatusApplicant))
	engine := NewTransitionEngine(store, nil)

	// Hold every racer at the write until all of them have read the same status.
	var ready sync.WaitGroup
	ready.Add(racers)
	release := make(chan struct{})
	store.beforeWrite = func() {
		ready.Done()
		<-release
	}

	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Transition(context.Background(), "s1", models.StatusConsultationPending)
		}(i)
	}
	ready.Wait()
	close(release)
	wg.Wait()

	var committed, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			committed++
		case errors.Is(err, appErrors.ErrPersistenceConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, committed)
	assert.Equal(t, racers-1, conflicts)
	assert.Equal(t, models.StatusConsultationPending, store.status("s1"))
	assert.Len(t, store.history, 1)
}

func TestTransitionEngineFullLifecycle(t *testing.T) {
	store := newMemoryStore(student("s1", models.StatusApplicant))
	engine := NewTransitionEngine(store, nil)

	for _, target := range models.Statuses()[1:] {
		_, err := engine.Transition(context.Background(), "s1", target)
		require.NoError(t, err, target)
	}
	assert.Equal(t, models.StatusStudent, store.status("s1"))

	_, err := engine.Transition(context.Background(), "s1", models.StatusApplicant)
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	assert.Len(t, store.history, len(models.Statuses())-1)
}
