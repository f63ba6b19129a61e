package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/therapy-match-api/internal/handler"
	"github.com/noah-isme/therapy-match-api/internal/models"
	appErrors "github.com/noah-isme/therapy-match-api/pkg/errors"
)

type fixedTokens map[string]*models.JWTClaims

func (f fixedTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := f[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrUnauthorized
}

func newTestRouter(docs bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	registerRoutes(r, "/api/v1", docs, fixedTokens{
		"client": {UserID: "c1", Role: models.RoleClient},
	}, handlers{
		auth:      handler.NewAuthHandler(nil),
		triage:    handler.NewTriageHandler(nil),
		directory: handler.NewDirectoryHandler(nil),
		therapist: handler.NewTherapistHandler(nil),
		dossier:   handler.NewDossierHandler(nil),
		metrics:   handler.NewMetricsHandler(nil, nil),
	})
	return r
}

func TestRegisterRoutesTable(t *testing.T) {
	r := newTestRouter(false)

	registered := map[string]bool{}
	for _, route := range r.Routes() {
		registered[route.Method+" "+route.Path] = true
	}
	for _, want := range []string{
		"POST /api/v1/auth/login",
		"POST /api/v1/auth/refresh",
		"POST /api/v1/auth/logout",
		"GET /api/v1/auth/me",
		"POST /api/v1/triage",
		"GET /api/v1/triage/sessions",
		"GET /api/v1/triage/sessions/:id",
		"GET /api/v1/therapists",
		"GET /api/v1/therapists/:id",
		"PUT /api/v1/therapists/:id",
		"PATCH /api/v1/admin/therapists/:id/status",
		"DELETE /api/v1/admin/therapists/:id",
		"GET /api/v1/admin/therapists/export",
		"POST /api/v1/dossiers",
		"GET /api/v1/dossiers/:id",
		"POST /api/v1/dossiers/:id/download-link",
		"GET /api/v1/dossiers/download/:token",
		"GET /metrics",
		"GET /health",
		"GET /ready",
	} {
		assert.True(t, registered[want], want)
	}
	assert.False(t, registered["GET /docs/*any"])
	assert.True(t, routeExists(newTestRouter(true), "GET", "/docs/*any"))
}

func routeExists(r *gin.Engine, method, path string) bool {
	for _, route := range r.Routes() {
		if route.Method == method && route.Path == path {
			return true
		}
	}
	return false
}

func TestRegisterRoutesGuards(t *testing.T) {
	r := newTestRouter(false)
	cases := []struct {
		method string
		path   string
		token  string
		want   int
	}{
		{http.MethodGet, "/api/v1/admin/therapists/export", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/admin/therapists/export", "client", http.StatusForbidden},
		{http.MethodPut, "/api/v1/therapists/t1", "client", http.StatusForbidden},
		{http.MethodPost, "/api/v1/dossiers", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/triage/sessions/s1", "", http.StatusUnauthorized},
		{http.MethodGet, "/health", "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
