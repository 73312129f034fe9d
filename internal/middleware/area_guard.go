package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-admission-api/internal/models"
	appErrors "github.com/noah-isme/sma-admission-api/pkg/errors"
	"github.com/noah-isme/sma-admission-api/pkg/response"
)

// ContextSubjectKey is the gin context key storing the resolved caller.
const ContextSubjectKey = "currentSubject"

// Headers carrying guard redirects to front ends.
const (
	HeaderRedirectArea = "X-Redirect-Area"
	HeaderResumeToken  = "X-Resume-Token"
)

// SubjectResolver loads the subject behind a set of claims.
type SubjectResolver interface {
	Get(ctx context.Context, id string) (*models.Subject, error)
}

// Guarder decides whether a subject may open an area.
type Guarder interface {
	Guard(subject *models.Subject, requested models.Area) models.GuardDecision
}

// ResumeIssuer signs the area an anonymous caller asked for.
type ResumeIssuer interface {
	Issue(area string) (string, time.Time, error)
}

// CurrentSubject resolves the caller from the JWT claims on the context. It
// returns nil without error when the caller is anonymous or no longer exists.
func CurrentSubject(c *gin.Context, resolver SubjectResolver) (*models.Subject, error) {
	if value, ok := c.Get(ContextSubjectKey); ok {
		if subject, ok := value.(*models.Subject); ok {
			return subject, nil
		}
	}
	claims := ClaimsFromContext(c)
	if claims == nil {
		return nil, nil
	}
	subject, err := resolver.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, appErrors.ErrSubjectNotFound) {
			return nil, nil
		}
		return nil, err
	}
	c.Set(ContextSubjectKey, subject)
	return subject, nil
}

// AreaGuard admits the request only when the caller may open the area
// returned by area. Anonymous callers get 401 with a resume token for the
// requested area; others get 403 pointing at their home area.
func AreaGuard(guard Guarder, resolver SubjectResolver, issuer ResumeIssuer, area func(*gin.Context) models.Area) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, err := CurrentSubject(c, resolver)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		requested := area(c)
		decision := guard.Guard(subject, requested)
		if decision.Allow {
			c.Next()
			return
		}

		c.Header(HeaderRedirectArea, string(decision.RedirectTo))
		details := map[string]interface{}{"redirect_to": string(decision.RedirectTo)}
		if decision.ResumeArea != "" {
			token, _, err := issuer.Issue(string(decision.ResumeArea))
			if err != nil {
				_ = c.Error(fmt.Errorf("issue resume token: %w", err))
			} else {
				c.Header(HeaderResumeToken, token)
				details["resume_token"] = token
			}
			response.Error(c, appErrors.WithDetails(appErrors.ErrUnauthorized, details))
			c.Abort()
			return
		}
		response.Error(c, appErrors.WithDetails(appErrors.ErrForbidden, details))
		c.Abort()
	}
}

// AreaParam reads the guarded area from a route param.
func AreaParam(name string) func(*gin.Context) models.Area {
	return func(c *gin.Context) models.Area {
		return models.Area(c.Param(name))
	}
}

// FixedArea guards every request as area.
func FixedArea(area models.Area) func(*gin.Context) models.Area {
	return func(*gin.Context) models.Area {
		return area
	}
}
