package dto

import (
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-admission-api/internal/models"
)

// RegisterSubjectRequest defines payload for registering a new applicant.
type RegisterSubjectRequest struct {
	FullName string `json:"fullName" validate:"required,min=3,max=120"`
	Email    string `json:"email" validate:"required,email,max=254"`
}

// TransitionRequest defines payload for an explicit status transition.
type TransitionRequest struct {
	Target string `json:"target" validate:"required,admission_status"`
}

// SubjectView is a subject snapshot with its derived access.
type SubjectView struct {
	Subject     *models.Subject        `json:"subject"`
	Home        models.Area            `json:"home"`
	Areas       []models.Area          `json:"areas"`
	Permissions map[models.Action]bool `json:"permissions,omitempty"`
	Next        []models.Status        `json:"next"`
}

// AccessAreasResponse lists the caller's reachable areas.
type AccessAreasResponse struct {
	Home  models.Area   `json:"home"`
	Areas []models.Area `json:"areas"`
}

// GuardResponse wraps a guard decision with the evaluated area.
type GuardResponse struct {
	Area        models.Area `json:"area"`
	Allow       bool        `json:"allow"`
	RedirectTo  models.Area `json:"redirectTo,omitempty"`
	ResumeToken string      `json:"resumeToken,omitempty"`
}

// RegisterValidations installs the custom tags used by admission payloads.
func RegisterValidations(v *validator.Validate) error {
	return v.RegisterValidation("admission_status", func(fl validator.FieldLevel) bool {
		_, err := models.ParseStatus(fl.Field().String())
		return err == nil
	})
}
