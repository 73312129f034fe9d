package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-admission-api/internal/dto"
	"github.com/noah-isme/sma-admission-api/internal/middleware"
	"github.com/noah-isme/sma-admission-api/internal/models"
	"github.com/noah-isme/sma-admission-api/internal/service"
	"github.com/noah-isme/sma-admission-api/pkg/config"
	"github.com/noah-isme/sma-admission-api/pkg/resume"
)

func newAccessHandler(t *testing.T) (*AccessHandler, *service.RouteGuard) {
	t.Helper()
	policy, err := service.NewAccessPolicy(config.DefaultAreaRegistry())
	require.NoError(t, err)
	guard := service.NewRouteGuard(policy, nil)
	return NewAccessHandler(policy, guard, newAdmissionMock(), resume.NewSigner("resume-secret", time.Minute)), guard
}

func decodeGuard(t *testing.T, w *httptest.ResponseRecorder) dto.GuardResponse {
	t.Helper()
	var body struct {
		Data dto.GuardResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Data
}

func TestAccessHandlerAreasForAnonymousAndStudent(t *testing.T) {
	handler, _ := newAccessHandler(t)

	c, w := newJSONContext(http.MethodGet, "/access/areas", nil)
	handler.Areas(c)
	require.Equal(t, http.StatusOK, w.Code)
	var anon struct {
		Data dto.AccessAreasResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &anon))
	assert.Equal(t, models.Area("home"), anon.Data.Home)
	assert.NotContains(t, anon.Data.Areas, models.Area("profile"))

	c, w = newJSONContext(http.MethodGet, "/access/areas", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	handler.Areas(c)
	var known struct {
		Data dto.AccessAreasResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &known))
	assert.Equal(t, models.Area("applicant_dashboard"), known.Data.Home)
	assert.Contains(t, known.Data.Areas, models.Area("consultation_booking"))
}

func TestAccessHandlerGuardAnonymousIssuesResumeToken(t *testing.T) {
	handler, _ := newAccessHandler(t)

	c, w := newJSONContext(http.MethodGet, "/access/guard?area=billing", nil)
	handler.Guard(c)
	require.Equal(t, http.StatusOK, w.Code)
	decision := decodeGuard(t, w)
	assert.False(t, decision.Allow)
	assert.Equal(t, models.Area("sign_in"), decision.RedirectTo)
	require.NotEmpty(t, decision.ResumeToken)

	// After signing in, the token resolves back to the requested area.
	c, w = newJSONContext(http.MethodGet, "/access/resume?token="+decision.ResumeToken, nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	handler.Resume(c)
	require.Equal(t, http.StatusOK, w.Code)
	resumed := decodeGuard(t, w)
	assert.Equal(t, models.Area("billing"), resumed.Area)
	assert.False(t, resumed.Allow)
	assert.Equal(t, models.Area("applicant_dashboard"), resumed.RedirectTo)
}

type failingTokens struct{}

func (failingTokens) Issue(string) (string, time.Time, error) {
	return "", time.Time{}, errors.New("signing key unavailable")
}

func (failingTokens) Parse(string) (string, error) {
	return "", errors.New("signing key unavailable")
}

func TestAccessHandlerGuardRecordsResumeTokenFailure(t *testing.T) {
	policy, err := service.NewAccessPolicy(config.DefaultAreaRegistry())
	require.NoError(t, err)
	handler := NewAccessHandler(policy, service.NewRouteGuard(policy, nil), newAdmissionMock(), failingTokens{})

	c, w := newJSONContext(http.MethodGet, "/access/guard?area=billing", nil)
	handler.Guard(c)
	require.Equal(t, http.StatusOK, w.Code)
	decision := decodeGuard(t, w)
	assert.Equal(t, models.Area("sign_in"), decision.RedirectTo)
	assert.Empty(t, decision.ResumeToken)
	require.Len(t, c.Errors, 1)
	assert.Contains(t, c.Errors.Last().Error(), "signing key unavailable")
}

func TestAccessHandlerGuardValidation(t *testing.T) {
	handler, _ := newAccessHandler(t)

	c, w := newJSONContext(http.MethodGet, "/access/guard", nil)
	handler.Guard(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newJSONContext(http.MethodGet, "/access/resume?token=forged.1.abc", nil)
	handler.Resume(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAccessHandlerAreaBehindGuard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, guard := newAccessHandler(t)
	subjects := newAdmissionMock()
	claims := &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if c.GetHeader("Authorization") != "" {
			c.Set(middleware.ContextUserKey, claims)
		}
		c.Next()
	})
	router.GET("/areas/:area", middleware.AreaGuard(guard, subjects, resume.NewSigner("resume-secret", time.Minute), middleware.AreaParam("area")), handler.Area)

	serveArea := func(area string, authed bool) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/areas/"+area, nil)
		if authed {
			req.Header.Set("Authorization", "Bearer x")
		}
		router.ServeHTTP(w, req)
		return w
	}

	w := serveArea("consultation_booking", true)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "s1", body.Data["subject_id"])

	w = serveArea("grades", true)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "applicant_dashboard", w.Header().Get(middleware.HeaderRedirectArea))

	w = serveArea("grades", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderResumeToken))
}
