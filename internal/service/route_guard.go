package service

import (
	"github.com/noah-isme/sma-admission-api/internal/models"
)

// unknownAreaLabel replaces areas outside the registry in metric labels.
const unknownAreaLabel models.Area = "unknown"

// RouteGuard decides whether a navigation may proceed.
type RouteGuard struct {
	policy  *AccessPolicy
	metrics *MetricsService
	known   map[models.Area]struct{}
}

// NewRouteGuard constructs a RouteGuard.
func NewRouteGuard(policy *AccessPolicy, metrics *MetricsService) *RouteGuard {
	return &RouteGuard{policy: policy, metrics: metrics, known: policy.Registry().KnownAreas()}
}

// Guard allows the request when the area is reachable. Anonymous callers are
// always sent to sign-in with the requested area kept for resumption; everyone
// else is sent to their home area, which is always reachable for them.
func (g *RouteGuard) Guard(subject *models.Subject, requested models.Area) models.GuardDecision {
	decision := g.decide(subject, requested)
	g.metrics.RecordGuardDecision(g.metricLabel(requested), decision)
	return decision
}

// metricLabel keeps the label set bounded by the registry; requested areas
// come straight from callers.
func (g *RouteGuard) metricLabel(area models.Area) models.Area {
	if _, ok := g.known[area]; ok {
		return area
	}
	return unknownAreaLabel
}

func (g *RouteGuard) decide(subject *models.Subject, requested models.Area) models.GuardDecision {
	if subject == nil {
		return models.GuardDecision{RedirectTo: g.policy.Registry().SignInArea, ResumeArea: requested}
	}
	if g.policy.CanReach(subject, requested) {
		return models.GuardDecision{Allow: true}
	}
	return models.GuardDecision{RedirectTo: g.policy.HomeArea(subject)}
}
