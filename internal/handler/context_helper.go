package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-admission-api/internal/middleware"
	"github.com/noah-isme/sma-admission-api/internal/models"
	appErrors "github.com/noah-isme/sma-admission-api/pkg/errors"
	"github.com/noah-isme/sma-admission-api/pkg/response"
)

// requireActor resolves the authenticated caller, writing the error response
// itself when there is none.
func requireActor(c *gin.Context, resolver middleware.SubjectResolver) (*models.Subject, bool) {
	actor, err := middleware.CurrentSubject(c, resolver)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return actor, true
}
