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

type therapistServiceMock struct {
	updateReq models.UpdateTherapistProfileRequest
	statusReq models.UpdateTherapistStatusRequest
	deleted   string
	format    string
}

func (m *therapistServiceMock) Update(ctx context.Context, claims *models.JWTClaims, id string, req models.UpdateTherapistProfileRequest, meta service.AuditMeta) (*models.TherapistProfile, error) {
	m.updateReq = req
	return &models.TherapistProfile{ID: id, FullName: req.FullName, Status: models.ProfilePending}, nil
}

func (m *therapistServiceMock) UpdateStatus(ctx context.Context, claims *models.JWTClaims, id string, req models.UpdateTherapistStatusRequest, meta service.AuditMeta) (*models.TherapistProfile, error) {
	if !claims.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	m.statusReq = req
	return &models.TherapistProfile{ID: id, Status: req.Status}, nil
}

func (m *therapistServiceMock) Delete(ctx context.Context, claims *models.JWTClaims, id string, meta service.AuditMeta) error {
	m.deleted = id
	return nil
}

func (m *therapistServiceMock) Export(ctx context.Context, claims *models.JWTClaims, format string, meta service.AuditMeta) (*service.ExportFile, error) {
	m.format = format
	if format == "xlsx" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	return &service.ExportFile{Filename: "therapists.csv", ContentType: "text/csv; charset=utf-8", Data: []byte("ID;Name\n")}, nil
}

var handlerAdmin = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

func TestTherapistHandlerUpdate(t *testing.T) {
	svc := &therapistServiceMock{}
	h := NewTherapistHandler(svc)
	c, w := newJSONContext(http.MethodPut, "/therapists/t1", gin.H{
		"full_name": "Mag. Anna Huber", "city": "Wien", "formats": []string{"online"}, "price_min": 80,
	}, &models.JWTClaims{UserID: "u1", Role: models.RoleTherapist})
	c.Params = gin.Params{{Key: "id", Value: "t1"}}

	h.Update(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.updateReq.PriceMin)
	assert.Equal(t, 80, *svc.updateReq.PriceMin)
	assert.Contains(t, string(decodeEnvelope(t, w).Data), `"status":"PENDING"`)
}

func TestTherapistHandlerUpdateStatus(t *testing.T) {
	svc := &therapistServiceMock{}
	h := NewTherapistHandler(svc)

	c, w := newJSONContext(http.MethodPatch, "/admin/therapists/t1/status", gin.H{"status": "VERIFIED", "hidden": true}, handlerAdmin)
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	h.UpdateStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ProfileVerified, svc.statusReq.Status)
	require.NotNil(t, svc.statusReq.Hidden)
	assert.True(t, *svc.statusReq.Hidden)

	c, w = newJSONContext(http.MethodPatch, "/admin/therapists/t1/status", gin.H{"status": "VERIFIED"}, &models.JWTClaims{UserID: "u1", Role: models.RoleTherapist})
	h.UpdateStatus(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTherapistHandlerDelete(t *testing.T) {
	svc := &therapistServiceMock{}
	h := NewTherapistHandler(svc)
	c, w := newJSONContext(http.MethodDelete, "/admin/therapists/t1", nil, handlerAdmin)
	c.Params = gin.Params{{Key: "id", Value: "t1"}}

	h.Delete(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "t1", svc.deleted)
}

func TestTherapistHandlerExport(t *testing.T) {
	svc := &therapistServiceMock{}
	h := NewTherapistHandler(svc)

	c, w := newJSONContext(http.MethodGet, "/admin/therapists/export?format=csv", nil, handlerAdmin)
	h.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="therapists.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "ID;Name\n", w.Body.String())

	c, w = newJSONContext(http.MethodGet, "/admin/therapists/export?format=xlsx", nil, handlerAdmin)
	h.Export(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "xlsx", svc.format)
}
