package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/therapy-match-api/internal/models"
	"github.com/noah-isme/therapy-match-api/internal/service"
	appErrors "github.com/noah-isme/therapy-match-api/pkg/errors"
	"github.com/noah-isme/therapy-match-api/pkg/response"
)

type therapistService interface {
	Update(ctx context.Context, claims *models.JWTClaims, id string, req models.UpdateTherapistProfileRequest, meta service.AuditMeta) (*models.TherapistProfile, error)
	UpdateStatus(ctx context.Context, claims *models.JWTClaims, id string, req models.UpdateTherapistStatusRequest, meta service.AuditMeta) (*models.TherapistProfile, error)
	Delete(ctx context.Context, claims *models.JWTClaims, id string, meta service.AuditMeta) error
	Export(ctx context.Context, claims *models.JWTClaims, format string, meta service.AuditMeta) (*service.ExportFile, error)
}

// TherapistHandler covers profile self-service and admin review.
type TherapistHandler struct {
	service therapistService
}

// NewTherapistHandler constructs a TherapistHandler.
func NewTherapistHandler(svc therapistService) *TherapistHandler {
	return &TherapistHandler{service: svc}
}

// Update godoc
// @Summary Update own therapist profile
// @Description Verified profiles return to PENDING review after an edit.
// @Tags Therapists
// @Accept json
// @Produce json
// @Param id path string true "Therapist ID"
// @Param payload body models.UpdateTherapistProfileRequest true "Profile"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /therapists/{id} [put]
func (h *TherapistHandler) Update(c *gin.Context) {
	var req models.UpdateTherapistProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid profile payload"))
		return
	}

	profile, err := h.service.Update(c.Request.Context(), claimsFromContext(c), c.Param("id"), req, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// UpdateStatus godoc
// @Summary Review a therapist profile
// @Tags Therapists
// @Accept json
// @Produce json
// @Param id path string true "Therapist ID"
// @Param payload body models.UpdateTherapistStatusRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/therapists/{id}/status [patch]
func (h *TherapistHandler) UpdateStatus(c *gin.Context) {
	var req models.UpdateTherapistStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	profile, err := h.service.UpdateStatus(c.Request.Context(), claimsFromContext(c), c.Param("id"), req, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// Delete godoc
// @Summary Delete a therapist profile
// @Tags Therapists
// @Param id path string true "Therapist ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/therapists/{id} [delete]
func (h *TherapistHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id"), auditMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export all therapist profiles
// @Tags Therapists
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/therapists/export [get]
func (h *TherapistHandler) Export(c *gin.Context) {
	file, err := h.service.Export(c.Request.Context(), claimsFromContext(c), c.Query("format"), auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
