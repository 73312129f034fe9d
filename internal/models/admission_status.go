package models

import (
	"fmt"
	"strings"
)

// Status is a subject's stage in the admission lifecycle.
type Status string

// Admission lifecycle, in order.
const (
	StatusApplicant             Status = "applicant"
	StatusConsultationPending   Status = "consultation_pending"
	StatusConsultationCompleted Status = "consultation_completed"
	StatusPaymentPending        Status = "payment_pending"
	StatusEnrollmentSubmitted   Status = "enrollment_submitted"
	StatusStudent               Status = "student"
)

// DefaultStatus is assumed when no status has been stored for a subject yet.
const DefaultStatus = StatusApplicant

var lifecycle = []Status{
	StatusApplicant,
	StatusConsultationPending,
	StatusConsultationCompleted,
	StatusPaymentPending,
	StatusEnrollmentSubmitted,
	StatusStudent,
}

// successors is the only adjacency table of the workflow.
var successors = map[Status][]Status{
	StatusApplicant:             {StatusConsultationPending},
	StatusConsultationPending:   {StatusConsultationCompleted},
	StatusConsultationCompleted: {StatusPaymentPending},
	StatusPaymentPending:        {StatusEnrollmentSubmitted},
	StatusEnrollmentSubmitted:   {StatusStudent},
	StatusStudent:               {},
}

// Statuses returns every status in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(lifecycle))
	copy(out, lifecycle)
	return out
}

// NormalizeStatus maps a stored value to a Status, treating blank as DefaultStatus.
// Unknown values are returned as-is so callers can reject them with Valid.
func NormalizeStatus(raw string) Status {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return DefaultStatus
	}
	return Status(trimmed)
}

// ParseStatus normalises raw and rejects values outside the lifecycle.
func ParseStatus(raw string) (Status, error) {
	s := NormalizeStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown admission status %q", raw)
	}
	return s, nil
}

// Valid reports whether s is one of the lifecycle statuses.
func (s Status) Valid() bool {
	_, ok := successors[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s.Valid() && len(successors[s]) == 0
}

// Index returns the lifecycle position of s, or -1 when unknown.
func (s Status) Index() int {
	for i, candidate := range lifecycle {
		if candidate == s {
			return i
		}
	}
	return -1
}

// LegalSuccessors returns the statuses reachable from s in one transition.
func LegalSuccessors(s Status) []Status {
	next := successors[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to Status) bool {
	for _, next := range successors[from] {
		if next == to {
			return true
		}
	}
	return false
}

// EventKind names the external event that moved a subject into a status.
type EventKind string

const (
	EventConsultationBooked    EventKind = "consultation_booked"
	EventConsultationCompleted EventKind = "consultation_completed"
	EventPaymentConfirmed      EventKind = "payment_confirmed"
	EventEnrollmentSubmitted   EventKind = "enrollment_submitted"
	EventEnrollmentApproved    EventKind = "enrollment_approved"
)

var entryEvents = map[Status]EventKind{
	StatusConsultationPending:   EventConsultationBooked,
	StatusConsultationCompleted: EventConsultationCompleted,
	StatusPaymentPending:        EventPaymentConfirmed,
	StatusEnrollmentSubmitted:   EventEnrollmentSubmitted,
	StatusStudent:               EventEnrollmentApproved,
}

// EventKindFor returns the event that enters target; empty for applicant.
func EventKindFor(target Status) EventKind {
	return entryEvents[target]
}
