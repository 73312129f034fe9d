package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-admission-api/internal/dto"
	"github.com/noah-isme/sma-admission-api/internal/middleware"
	"github.com/noah-isme/sma-admission-api/internal/models"
	appErrors "github.com/noah-isme/sma-admission-api/pkg/errors"
	"github.com/noah-isme/sma-admission-api/pkg/response"
)

type areaPolicy interface {
	ReachableAreas(subject *models.Subject) []models.Area
	HomeArea(subject *models.Subject) models.Area
	Permissions(status models.Status) map[models.Action]bool
}

type resumeTokens interface {
	Issue(area string) (string, time.Time, error)
	Parse(token string) (string, error)
}

// AccessHandler exposes reachability and guard decisions to front ends.
type AccessHandler struct {
	policy   areaPolicy
	guard    middleware.Guarder
	subjects middleware.SubjectResolver
	tokens   resumeTokens
}

// NewAccessHandler constructs an access handler.
func NewAccessHandler(policy areaPolicy, guard middleware.Guarder, subjects middleware.SubjectResolver, tokens resumeTokens) *AccessHandler {
	return &AccessHandler{policy: policy, guard: guard, subjects: subjects, tokens: tokens}
}

// Areas godoc
// @Summary List areas reachable by the caller
// @Tags Access
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /access/areas [get]
func (h *AccessHandler) Areas(c *gin.Context) {
	subject, err := middleware.CurrentSubject(c, h.subjects)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.AccessAreasResponse{
		Home:  h.policy.HomeArea(subject),
		Areas: h.policy.ReachableAreas(subject),
	})
}

// Guard godoc
// @Summary Evaluate the route guard for an area
// @Tags Access
// @Produce json
// @Param area query string true "Requested area"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /access/guard [get]
func (h *AccessHandler) Guard(c *gin.Context) {
	area := models.Area(strings.TrimSpace(c.Query("area")))
	if area == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "area is required"))
		return
	}
	h.decide(c, area)
}

// Resume godoc
// @Summary Resolve a resume token after sign-in
// @Tags Access
// @Produce json
// @Param token query string true "Resume token"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /access/resume [get]
func (h *AccessHandler) Resume(c *gin.Context) {
	raw, err := h.tokens.Parse(c.Query("token"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resume token"))
		return
	}
	h.decide(c, models.Area(raw))
}

// Area godoc
// @Summary Open an application area
// @Description Guarded by the route guard; denied requests carry the redirect target.
// @Tags Access
// @Produce json
// @Param area path string true "Area"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /areas/{area} [get]
func (h *AccessHandler) Area(c *gin.Context) {
	subject, err := middleware.CurrentSubject(c, h.subjects)
	if err != nil {
		response.Error(c, err)
		return
	}
	payload := gin.H{"area": c.Param("area")}
	if subject != nil {
		payload["subject_id"] = subject.ID
		if subject.InWorkflow() {
			payload["permissions"] = h.policy.Permissions(subject.Status)
		}
	}
	response.JSON(c, http.StatusOK, payload)
}

func (h *AccessHandler) decide(c *gin.Context, area models.Area) {
	subject, err := middleware.CurrentSubject(c, h.subjects)
	if err != nil {
		response.Error(c, err)
		return
	}
	decision := h.guard.Guard(subject, area)
	out := dto.GuardResponse{Area: area, Allow: decision.Allow, RedirectTo: decision.RedirectTo}
	if decision.ResumeArea != "" {
		token, _, err := h.tokens.Issue(string(decision.ResumeArea))
		if err != nil {
			// The redirect still stands; the caller just lands on home after sign-in.
			_ = c.Error(fmt.Errorf("issue resume token: %w", err))
		} else {
			out.ResumeToken = token
		}
	}
	response.JSON(c, http.StatusOK, out)
}
