package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/therapy-match-api/internal/models"
	"github.com/noah-isme/therapy-match-api/internal/service"
	"github.com/noah-isme/therapy-match-api/internal/triage"
	appErrors "github.com/noah-isme/therapy-match-api/pkg/errors"
	"github.com/noah-isme/therapy-match-api/pkg/response"
)

type triageService interface {
	Submit(ctx context.Context, claims *models.JWTClaims, sub triage.Submission) (*service.TriageOutcome, error)
	Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.TriageSession, error)
	ListMine(ctx context.Context, claims *models.JWTClaims, limit int) ([]models.TriageSession, error)
}

// TriageHandler exposes questionnaire submission and session history.
type TriageHandler struct {
	service triageService
}

// NewTriageHandler constructs a TriageHandler.
func NewTriageHandler(svc triageService) *TriageHandler {
	return &TriageHandler{service: svc}
}

// Submit godoc
// @Summary Submit a triage assessment
// @Description Validates answers, recomputes scores and risk, stores the session and returns recommendations. Authentication is optional.
// @Tags Triage
// @Accept json
// @Produce json
// @Param payload body triage.Submission true "Assessment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /triage [post]
func (h *TriageHandler) Submit(c *gin.Context) {
	var sub triage.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		response.Error(c, appErrors.WithDetails(appErrors.ErrMalformedPayload, "", map[string]interface{}{
			"kind":   triage.KindMalformedPayload,
			"reason": err.Error(),
		}))
		return
	}

	outcome, err := h.service.Submit(c.Request.Context(), claimsFromContext(c), sub)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, outcome)
}

// Get godoc
// @Summary Get a triage session
// @Tags Triage
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /triage/sessions/{id} [get]
func (h *TriageHandler) Get(c *gin.Context) {
	session, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// ListMine godoc
// @Summary List my triage sessions
// @Tags Triage
// @Produce json
// @Param limit query int false "Maximum sessions" default(20)
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /triage/sessions [get]
func (h *TriageHandler) ListMine(c *gin.Context) {
	sessions, err := h.service.ListMine(c.Request.Context(), claimsFromContext(c), queryInt(c, "limit", 20))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}
