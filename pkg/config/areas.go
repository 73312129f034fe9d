package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/noah-isme/sma-admission-api/internal/models"
)

// AreaSet is the canonical home and the reachable areas of one role or status.
type AreaSet struct {
	Home  models.Area   `mapstructure:"home" json:"home"`
	Areas []models.Area `mapstructure:"areas" json:"areas"`
}

// AreaRegistry maps roles and admission statuses to the areas they may open.
// Staff roles are keyed in Roles; students are keyed by status in Statuses.
type AreaRegistry struct {
	SignInArea           models.Area                     `mapstructure:"sign_in_area"`
	InactiveHome         models.Area                     `mapstructure:"inactive_home"`
	PublicAreas          []models.Area                   `mapstructure:"public_areas"`
	CommonAreas          []models.Area                   `mapstructure:"common_areas"`
	Roles                map[models.Role]AreaSet         `mapstructure:"roles"`
	Statuses             map[models.Status]AreaSet       `mapstructure:"statuses"`
	TransitionRequesters map[models.Status][]models.Role `mapstructure:"transition_requesters"`
}

// DefaultAreaRegistry returns the built-in registry.
func DefaultAreaRegistry() AreaRegistry {
	return AreaRegistry{
		SignInArea:   "sign_in",
		InactiveHome: "home",
		PublicAreas:  []models.Area{"home", "about", "contact", "sign_in"},
		CommonAreas:  []models.Area{"profile", "announcements"},
		Roles: map[models.Role]AreaSet{
			models.RoleGuest:      {Home: "profile"},
			models.RoleParent:     {Home: "parent_dashboard", Areas: []models.Area{"parent_dashboard", "child_progress", "billing"}},
			models.RoleTeacher:    {Home: "teacher_dashboard", Areas: []models.Area{"teacher_dashboard", "grading", "consultations"}},
			models.RoleRegistrar:  {Home: "registrar_dashboard", Areas: []models.Area{"registrar_dashboard", "applicants", "consultations", "enrollments"}},
			models.RoleAccountant: {Home: "accountant_dashboard", Areas: []models.Area{"accountant_dashboard", "billing", "payments"}},
			models.RoleSuperAdmin: {Home: "admin_dashboard", Areas: []models.Area{
				"admin_dashboard", "applicants", "consultations", "enrollments", "billing", "payments", "grading", "user_management",
			}},
		},
		Statuses: map[models.Status]AreaSet{
			models.StatusApplicant:             {Home: "applicant_dashboard", Areas: []models.Area{"applicant_dashboard", "consultation_booking"}},
			models.StatusConsultationPending:   {Home: "applicant_dashboard", Areas: []models.Area{"applicant_dashboard", "consultation_status"}},
			models.StatusConsultationCompleted: {Home: "applicant_dashboard", Areas: []models.Area{"applicant_dashboard", "consultation_status", "tuition_info"}},
			models.StatusPaymentPending:        {Home: "applicant_dashboard", Areas: []models.Area{"applicant_dashboard", "tuition_info", "billing", "enrollment_form"}},
			models.StatusEnrollmentSubmitted:   {Home: "applicant_dashboard", Areas: []models.Area{"applicant_dashboard", "billing", "enrollment_status"}},
			models.StatusStudent:               {Home: "student_dashboard", Areas: []models.Area{"student_dashboard", "grades", "schedule", "documents", "billing"}},
		},
		TransitionRequesters: map[models.Status][]models.Role{
			models.StatusConsultationPending:   {models.RoleStudent, models.RoleRegistrar, models.RoleSuperAdmin},
			models.StatusConsultationCompleted: {models.RoleTeacher, models.RoleRegistrar, models.RoleSuperAdmin},
			models.StatusPaymentPending:        {models.RoleAccountant, models.RoleSuperAdmin},
			models.StatusEnrollmentSubmitted:   {models.RoleStudent, models.RoleRegistrar, models.RoleSuperAdmin},
			models.StatusStudent:               {models.RoleRegistrar, models.RoleSuperAdmin},
		},
	}
}

// LoadAreaRegistry reads a registry file (YAML, JSON or TOML). An empty path
// yields the default registry.
func LoadAreaRegistry(path string) (AreaRegistry, error) {
	if path == "" {
		reg := DefaultAreaRegistry()
		return reg, reg.Validate()
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return AreaRegistry{}, fmt.Errorf("read area registry %s: %w", path, err)
	}

	var reg AreaRegistry
	if err := v.Unmarshal(&reg); err != nil {
		return AreaRegistry{}, fmt.Errorf("decode area registry %s: %w", path, err)
	}
	if err := reg.Validate(); err != nil {
		return AreaRegistry{}, err
	}
	return reg, nil
}

// Validate checks that every role and status is configured and that each
// home area is reachable by whoever is sent there.
func (r AreaRegistry) Validate() error {
	if r.SignInArea == "" {
		return fmt.Errorf("area registry: sign_in_area is required")
	}
	if !containsArea(r.PublicAreas, r.SignInArea) {
		return fmt.Errorf("area registry: sign_in_area %q must be public", r.SignInArea)
	}
	if !containsArea(r.PublicAreas, r.InactiveHome) {
		return fmt.Errorf("area registry: inactive_home %q must be public", r.InactiveHome)
	}

	for _, role := range models.Roles() {
		if role == models.RoleStudent {
			continue
		}
		set, ok := r.Roles[role]
		if !ok {
			return fmt.Errorf("area registry: role %q is not configured", role)
		}
		if !r.reachable(set, set.Home) {
			return fmt.Errorf("area registry: home %q of role %q is not reachable", set.Home, role)
		}
	}

	for _, status := range models.Statuses() {
		set, ok := r.Statuses[status]
		if !ok {
			return fmt.Errorf("area registry: status %q is not configured", status)
		}
		if !r.reachable(set, set.Home) {
			return fmt.Errorf("area registry: home %q of status %q is not reachable", set.Home, status)
		}
	}
	for status := range r.Statuses {
		if !status.Valid() {
			return fmt.Errorf("area registry: unknown status %q", status)
		}
	}

	for status, roles := range r.TransitionRequesters {
		if !status.Valid() {
			return fmt.Errorf("area registry: unknown transition target %q", status)
		}
		for _, role := range roles {
			if !role.Valid() {
				return fmt.Errorf("area registry: unknown role %q for target %q", role, status)
			}
		}
	}

	return nil
}

// KnownAreas returns every area named anywhere in the registry.
func (r AreaRegistry) KnownAreas() map[models.Area]struct{} {
	known := make(map[models.Area]struct{})
	add := func(areas ...models.Area) {
		for _, a := range areas {
			if a != "" {
				known[a] = struct{}{}
			}
		}
	}
	add(r.SignInArea, r.InactiveHome)
	add(r.PublicAreas...)
	add(r.CommonAreas...)
	for _, set := range r.Roles {
		add(set.Home)
		add(set.Areas...)
	}
	for _, set := range r.Statuses {
		add(set.Home)
		add(set.Areas...)
	}
	return known
}

func (r AreaRegistry) reachable(set AreaSet, area models.Area) bool {
	if area == "" {
		return false
	}
	return containsArea(set.Areas, area) || containsArea(r.CommonAreas, area) || containsArea(r.PublicAreas, area)
}

func containsArea(areas []models.Area, area models.Area) bool {
	for _, candidate := range areas {
		if candidate == area {
			return true
		}
	}
	return false
}
