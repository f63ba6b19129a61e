package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/therapy-match-api/internal/models"
	"github.com/noah-isme/therapy-match-api/internal/service"
	appErrors "github.com/noah-isme/therapy-match-api/pkg/errors"
)

type authServiceMock struct {
	loginReq   models.LoginRequest
	loginErr   error
	logoutMeta service.AuditMeta
	logoutReq  models.LogoutRequest
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	m.loginReq = req
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return &models.LoginResponse{AccessToken: "access", RefreshToken: "refresh", User: models.UserInfo{ID: "u1", Email: req.Email}}, nil
}

func (m *authServiceMock) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{AccessToken: "access-2", RefreshToken: "refresh-2"}, nil
}

func (m *authServiceMock) Logout(ctx context.Context, claims *models.JWTClaims, req models.LogoutRequest, meta service.AuditMeta) error {
	m.logoutReq = req
	m.logoutMeta = meta
	return nil
}

func (m *authServiceMock) Me(ctx context.Context, claims *models.JWTClaims) (*models.UserInfo, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	return &models.UserInfo{ID: claims.UserID, Role: claims.Role}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	svc := &authServiceMock{}
	h := NewAuthHandler(svc)
	c, w := newJSONContext(http.MethodPost, "/auth/login", gin.H{"email": "anna@example.at", "password": "secret"}, nil)

	h.Login(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "handler-test", svc.loginReq.UserAgent)
	assert.Contains(t, w.Body.String(), `"access_token":"access"`)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestAuthHandlerLoginErrors(t *testing.T) {
	h := NewAuthHandler(&authServiceMock{loginErr: appErrors.ErrInvalidCredentials})

	c, w := newJSONContext(http.MethodPost, "/auth/login", "{", nil)
	h.Login(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newJSONContext(http.MethodPost, "/auth/login", gin.H{"email": "anna@example.at", "password": "wrong"}, nil)
	h.Login(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, decodeEnvelope(t, w).Error.Code)
}

func TestAuthHandlerLogout(t *testing.T) {
	svc := &authServiceMock{}
	h := NewAuthHandler(svc)

	c, w := newJSONContext(http.MethodPost, "/auth/logout", gin.H{"refresh_token": "r1"}, nil)
	h.Logout(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newJSONContext(http.MethodPost, "/auth/logout", gin.H{"refresh_token": "r1"}, &models.JWTClaims{UserID: "u1"})
	h.Logout(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "r1", svc.logoutReq.RefreshToken)
	assert.Equal(t, "handler-test", svc.logoutMeta.UserAgent)
}

func TestAuthHandlerMe(t *testing.T) {
	h := NewAuthHandler(&authServiceMock{})

	c, w := newJSONContext(http.MethodGet, "/auth/me", nil, &models.JWTClaims{UserID: "u1", Role: models.RoleClient})
	h.Me(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"u1","email":"","full_name":"","role":"CLIENT"}`, string(decodeEnvelope(t, w).Data))

	c, w = newJSONContext(http.MethodGet, "/auth/me", nil, nil)
	h.Me(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
