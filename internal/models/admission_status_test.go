package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegalSuccessorsFollowChain(t *testing.T) {
	chain := Statuses()
	for i, status := range chain {
		next := LegalSuccessors(status)
		if i == len(chain)-1 {
			assert.Empty(t, next, "student must be terminal")
			continue
		}
		require.Len(t, next, 1, "status %s", status)
		assert.Equal(t, chain[i+1], next[0])
	}
}

func TestLegalSuccessorsStudentEmpty(t *testing.T) {
	assert.Empty(t, LegalSuccessors(StatusStudent))
	assert.True(t, StatusStudent.Terminal())
	assert.False(t, StatusApplicant.Terminal())
}

func TestLegalSuccessorsReturnsCopy(t *testing.T) {
	next := LegalSuccessors(StatusApplicant)
	next[0] = StatusStudent
	assert.Equal(t, []Status{StatusConsultationPending}, LegalSuccessors(StatusApplicant))
}

func TestNormalizeStatusDefaultsToApplicant(t *testing.T) {
	assert.Equal(t, StatusApplicant, NormalizeStatus(""))
	assert.Equal(t, StatusApplicant, NormalizeStatus("   "))
	assert.Equal(t, StatusPaymentPending, NormalizeStatus(" Payment_Pending "))
}

func TestParseStatusRejectsUnknown(t *testing.T) {
	_, err := ParseStatus("enrolled_pending_payment")
	require.Error(t, err)

	status, err := ParseStatus("")
	require.NoError(t, err)
	assert.Equal(t, StatusApplicant, status)
}

func TestUnknownStatusHasNoSuccessors(t *testing.T) {
	unknown := Status("enrolled_pending_payment")
	assert.False(t, unknown.Valid())
	assert.False(t, unknown.Terminal())
	assert.Empty(t, LegalSuccessors(unknown))
	assert.Equal(t, -1, unknown.Index())
}

func TestCanTransitionNoSkipsNoCycles(t *testing.T) {
	for _, from := range Statuses() {
		for _, to := range Statuses() {
			want := to.Index() == from.Index()+1
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestEventKindFor(t *testing.T) {
	assert.Equal(t, EventConsultationBooked, EventKindFor(StatusConsultationPending))
	assert.Equal(t, EventEnrollmentApproved, EventKindFor(StatusStudent))
	assert.Equal(t, EventKind(""), EventKindFor(StatusApplicant))
}
