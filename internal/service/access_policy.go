package service

import (
	"sort"

	"github.com/noah-isme/sma-admission-api/internal/models"
	"github.com/noah-isme/sma-admission-api/pkg/config"
)

// actionStatuses is the single table of status-gated actions.
var actionStatuses = map[models.Action][]models.Status{
	models.ActionBookConsultation:    {models.StatusApplicant},
	models.ActionViewConsultation:    {models.StatusConsultationPending, models.StatusConsultationCompleted},
	models.ActionMakePayment:         {models.StatusConsultationCompleted, models.StatusPaymentPending},
	models.ActionAccessEnrollment:    {models.StatusPaymentPending, models.StatusEnrollmentSubmitted, models.StatusStudent},
	models.ActionSubmitEnrollment:    {models.StatusPaymentPending},
	models.ActionAccessBilling:       {models.StatusPaymentPending, models.StatusEnrollmentSubmitted, models.StatusStudent},
	models.ActionAccessDocuments:     {models.StatusStudent},
	models.ActionAccessStudentPortal: {models.StatusStudent},
}

// AccessPolicy derives reachable areas and permitted actions from a subject's
// role, status and active flag. It holds no mutable state.
type AccessPolicy struct {
	registry config.AreaRegistry
}

// NewAccessPolicy validates the registry and builds a policy over it.
func NewAccessPolicy(registry config.AreaRegistry) (*AccessPolicy, error) {
	if err := registry.Validate(); err != nil {
		return nil, err
	}
	return &AccessPolicy{registry: registry}, nil
}

// Registry returns the registry backing the policy.
func (p *AccessPolicy) Registry() config.AreaRegistry {
	return p.registry
}

// ReachableAreas lists the areas the subject may open, sorted. Inactive
// subjects only reach public areas.
func (p *AccessPolicy) ReachableAreas(subject *models.Subject) []models.Area {
	seen := make(map[models.Area]struct{})
	add := func(areas []models.Area) {
		for _, a := range areas {
			seen[a] = struct{}{}
		}
	}

	add(p.registry.PublicAreas)
	if subject != nil && subject.Active {
		add(p.registry.CommonAreas)
		if set, ok := p.areaSet(subject); ok {
			add(set.Areas)
		}
	}

	out := make([]models.Area, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CanReach reports whether area is in ReachableAreas(subject).
func (p *AccessPolicy) CanReach(subject *models.Subject, area models.Area) bool {
	if containsArea(p.registry.PublicAreas, area) {
		return true
	}
	if subject == nil || !subject.Active {
		return false
	}
	if containsArea(p.registry.CommonAreas, area) {
		return true
	}
	set, ok := p.areaSet(subject)
	return ok && containsArea(set.Areas, area)
}

// HomeArea returns the canonical landing area for the subject. The result is
// always reachable by the same subject.
func (p *AccessPolicy) HomeArea(subject *models.Subject) models.Area {
	if subject == nil || !subject.Active {
		return p.registry.InactiveHome
	}
	if set, ok := p.areaSet(subject); ok && set.Home != "" {
		return set.Home
	}
	return p.registry.InactiveHome
}

// CanPerform reports whether a subject in status may perform action.
func (p *AccessPolicy) CanPerform(action models.Action, status models.Status) bool {
	for _, allowed := range actionStatuses[action] {
		if allowed == status {
			return true
		}
	}
	return false
}

// Permissions evaluates every named action for status.
func (p *AccessPolicy) Permissions(status models.Status) map[models.Action]bool {
	out := make(map[models.Action]bool, len(actionStatuses))
	for _, action := range models.Actions() {
		out[action] = p.CanPerform(action, status)
	}
	return out
}

// CanRequestTransition reports whether actor may move subjectID into target.
// Students may only move themselves.
func (p *AccessPolicy) CanRequestTransition(actor *models.Subject, subjectID string, target models.Status) bool {
	if actor == nil || !actor.Active {
		return false
	}
	for _, role := range p.registry.TransitionRequesters[target] {
		if role != actor.Role {
			continue
		}
		if role == models.RoleStudent {
			return actor.ID == subjectID
		}
		return true
	}
	return false
}

func (p *AccessPolicy) areaSet(subject *models.Subject) (config.AreaSet, bool) {
	if subject.InWorkflow() {
		set, ok := p.registry.Statuses[subject.Status]
		return set, ok
	}
	set, ok := p.registry.Roles[subject.Role]
	return set, ok
}

func containsArea(areas []models.Area, area models.Area) bool {
	for _, candidate := range areas {
		if candidate == area {
			return true
		}
	}
	return false
}
