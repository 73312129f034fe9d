package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-admission-api/internal/dto"
	"github.com/noah-isme/sma-admission-api/internal/models"
	appErrors "github.com/noah-isme/sma-admission-api/pkg/errors"
	"github.com/noah-isme/sma-admission-api/pkg/response"
)

type admissionService interface {
	Register(ctx context.Context, req dto.RegisterSubjectRequest) (*models.Subject, error)
	Get(ctx context.Context, id string) (*models.Subject, error)
	View(ctx context.Context, id string) (*dto.SubjectView, error)
	History(ctx context.Context, subjectID string) ([]models.StatusHistory, error)
	Transition(ctx context.Context, actor *models.Subject, subjectID string, target models.Status) (*models.TransitionResult, error)
	Advance(ctx context.Context, actor *models.Subject, subjectID string) (*models.TransitionResult, error)
}

// SubjectHandler handles admission subject endpoints.
type SubjectHandler struct {
	service   admissionService
	validator *validator.Validate
}

// NewSubjectHandler constructs a subject handler.
func NewSubjectHandler(svc admissionService, validate *validator.Validate) *SubjectHandler {
	if validate == nil {
		validate = validator.New()
		_ = dto.RegisterValidations(validate)
	}
	return &SubjectHandler{service: svc, validator: validate}
}

// Register godoc
// @Summary Register an applicant
// @Tags Subjects
// @Accept json
// @Produce json
// @Param payload body dto.RegisterSubjectRequest true "Applicant"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /subjects [post]
func (h *SubjectHandler) Register(c *gin.Context) {
	var req dto.RegisterSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	subject, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, subject)
}

// Get godoc
// @Summary Get subject with derived access
// @Tags Subjects
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /subjects/{id} [get]
func (h *SubjectHandler) Get(c *gin.Context) {
	view, err := h.service.View(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// History godoc
// @Summary List status history
// @Tags Subjects
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id}/history [get]
func (h *SubjectHandler) History(c *gin.Context) {
	rows, err := h.service.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, map[string]interface{}{"count": len(rows)})
}

// Transition godoc
// @Summary Move a subject to the given status
// @Tags Subjects
// @Accept json
// @Produce json
// @Param id path string true "Subject ID"
// @Param payload body dto.TransitionRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /subjects/{id}/transitions [post]
func (h *SubjectHandler) Transition(c *gin.Context) {
	actor, ok := requireActor(c, h.service)
	if !ok {
		return
	}

	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unknown target status"))
		return
	}
	target, _ := models.ParseStatus(req.Target)

	result, err := h.service.Transition(c.Request.Context(), actor, c.Param("id"), target)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Advance godoc
// @Summary Move a subject to its next status
// @Tags Subjects
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /subjects/{id}/advance [post]
func (h *SubjectHandler) Advance(c *gin.Context) {
	actor, ok := requireActor(c, h.service)
	if !ok {
		return
	}
	result, err := h.service.Advance(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
