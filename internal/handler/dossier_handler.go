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

type dossierService interface {
	Create(ctx context.Context, claims *models.JWTClaims, req models.CreateDossierRequest, meta service.AuditMeta) (*models.Dossier, error)
	Get(ctx context.Context, claims *models.JWTClaims, id string, meta service.AuditMeta) (*models.DossierView, error)
	IssueDownloadLink(ctx context.Context, claims *models.JWTClaims, id string, meta service.AuditMeta) (*models.DossierDownloadLink, error)
	Download(ctx context.Context, token string) (*service.DossierDownload, error)
}

// DossierHandler exposes consent-gated clinical summaries.
type DossierHandler struct {
	service dossierService
}

// NewDossierHandler constructs a DossierHandler.
func NewDossierHandler(svc dossierService) *DossierHandler {
	return &DossierHandler{service: svc}
}

// Create godoc
// @Summary Create a dossier for a triage session
// @Description Requires the owning client or an admin and granted DOSSIER_SHARING consent. A second dossier for the same session is rejected with 409 and the existing id and version.
// @Tags Dossiers
// @Accept json
// @Produce json
// @Param payload body models.CreateDossierRequest true "Dossier request"
// @Success 201 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /dossiers [post]
func (h *DossierHandler) Create(c *gin.Context) {
	var req models.CreateDossierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid dossier payload"))
		return
	}

	dossier, err := h.service.Create(c.Request.Context(), claimsFromContext(c), req, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dossier)
}

// Get godoc
// @Summary Read a dossier
// @Tags Dossiers
// @Produce json
// @Param id path string true "Dossier ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Security BearerAuth
// @Router /dossiers/{id} [get]
func (h *DossierHandler) Get(c *gin.Context) {
	view, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"), auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// IssueDownloadLink godoc
// @Summary Issue a signed PDF download link
// @Tags Dossiers
// @Produce json
// @Param id path string true "Dossier ID"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /dossiers/{id}/download-link [post]
func (h *DossierHandler) IssueDownloadLink(c *gin.Context) {
	link, err := h.service.IssueDownloadLink(c.Request.Context(), claimsFromContext(c), c.Param("id"), auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// Download godoc
// @Summary Download a dossier PDF
// @Tags Dossiers
// @Produce application/pdf
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /dossiers/download/{token} [get]
func (h *DossierHandler) Download(c *gin.Context) {
	file, err := h.service.Download(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", file.Data)
}
