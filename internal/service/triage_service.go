package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/therapy-match-api/internal/matching"
	"github.com/noah-isme/therapy-match-api/internal/models"
	"github.com/noah-isme/therapy-match-api/internal/triage"
	appErrors "github.com/noah-isme/therapy-match-api/pkg/errors"
)

type triageSessionRepository interface {
	Create(ctx context.Context, session *models.TriageSession) error
	FindByID(ctx context.Context, id string) (*models.TriageSession, error)
	ListByClient(ctx context.Context, clientID string, limit int) ([]models.TriageSession, error)
}

type recommender interface {
	Recommend(ctx context.Context, prefs matching.Preferences) (*matching.Recommendations, error)
}

// TriageOutcome is returned for an accepted submission.
type TriageOutcome struct {
	SessionID         string                    `json:"sessionId"`
	AssessmentType    triage.AssessmentType     `json:"assessmentType"`
	Scores            []triage.Score            `json:"scores"`
	PHQ9Item9Score    int                       `json:"phq9Item9Score"`
	RiskLevel         triage.RiskLevel          `json:"riskLevel"`
	RequiresEmergency bool                      `json:"requiresEmergency"`
	Warnings          []triage.ScreeningWarning `json:"warnings,omitempty"`
	Recommendations   *matching.Recommendations `json:"recommendations"`
}

// TriageService accepts questionnaires, stores sessions and returns matches.
type TriageService struct {
	repo        triageSessionRepository
	validator   *triage.Validator
	recommender recommender
	events      EventEmitter
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewTriageService constructs a TriageService.
func NewTriageService(repo triageSessionRepository, validator *triage.Validator, recommender recommender, events EventEmitter, metrics *MetricsService, logger *zap.Logger) *TriageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validator == nil {
		validator = triage.NewValidator(nil)
	}
	return &TriageService{repo: repo, validator: validator, recommender: recommender, events: events, metrics: metrics, logger: logger}
}

// Submit validates and classifies a submission, stores it as a new session,
// emits monitoring events and returns recommendations. The principal is
// optional; anonymous sessions have no client.
func (s *TriageService) Submit(ctx context.Context, claims *models.JWTClaims, sub triage.Submission) (*TriageOutcome, error) {
	result, err := s.validator.Validate(sub)
	if err != nil {
		return nil, mapValidationError(err)
	}

	session := newTriageSession(sub, result)
	if claims != nil {
		clientID := claims.UserID
		session.ClientID = &clientID
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store triage session")
	}

	s.publish(ctx, session, result)

	outcome := &TriageOutcome{
		SessionID:         session.ID,
		AssessmentType:    result.AssessmentType,
		Scores:            result.Scores,
		PHQ9Item9Score:    result.Item9,
		RiskLevel:         result.Classification.RiskLevel,
		RequiresEmergency: result.Classification.RequiresEmergency,
		Warnings:          result.Warnings,
	}

	if s.recommender != nil {
		prefs := matching.NewPreferences(sub.SupportPreferences, sub.AvailabilityPreferences, result.Classification.RiskLevel)
		recs, err := s.recommender.Recommend(ctx, prefs)
		if err != nil {
			// Matching failures never undo the stored session.
			s.logger.Error("recommendations failed", zap.String("session_id", session.ID), zap.Error(err))
		} else {
			outcome.Recommendations = recs
		}
	}
	if outcome.Recommendations == nil {
		outcome.Recommendations = &matching.Recommendations{
			Therapists: []matching.TherapistRecommendation{},
			Courses:    []matching.CourseRecommendation{},
		}
	}

	return outcome, nil
}

// Get returns a session to its owner or an administrator.
func (s *TriageService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.TriageSession, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "triage session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load triage session")
	}
	if !claims.IsAdmin() && !session.OwnedBy(claims.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view this triage session")
	}
	return session, nil
}

// ListMine returns the caller's own sessions, newest first.
func (s *TriageService) ListMine(ctx context.Context, claims *models.JWTClaims, limit int) ([]models.TriageSession, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	sessions, err := s.repo.ListByClient(ctx, claims.UserID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list triage sessions")
	}
	if sessions == nil {
		sessions = []models.TriageSession{}
	}
	return sessions, nil
}

func (s *TriageService) publish(ctx context.Context, session *models.TriageSession, result *triage.Result) {
	risk := string(result.Classification.RiskLevel)
	s.metrics.RecordTriageSubmission(session.AssessmentType, risk, session.RequiresEmergency)

	if s.events == nil {
		return
	}
	s.events.Emit(ctx, EventTriageSubmitted, map[string]interface{}{
		"sessionId":         session.ID,
		"assessmentType":    session.AssessmentType,
		"riskLevel":         risk,
		"requiresEmergency": session.RequiresEmergency,
		"anonymous":         session.ClientID == nil,
	})

	if session.RequiresEmergency {
		s.logger.Warn("triage requires emergency routing", zap.String("session_id", session.ID), zap.String("risk_level", risk))
		s.events.Emit(ctx, EventTriageEmergency, map[string]interface{}{
			"sessionId":           session.ID,
			"riskLevel":           risk,
			"phq9Item9Score":      session.PHQ9Item9Score,
			"hasSuicidalIdeation": session.HasSuicidalIdeation,
		})
	}

	for _, w := range result.Warnings {
		s.metrics.RecordScreeningWarning(string(w.Instrument))
		s.events.Emit(ctx, EventTriageScreeningNotEscalated, map[string]interface{}{
			"sessionId":  session.ID,
			"instrument": string(w.Instrument),
			"total":      w.Total,
			"threshold":  triage.ScreeningThreshold,
		})
	}
}

func newTriageSession(sub triage.Submission, result *triage.Result) *models.TriageSession {
	session := &models.TriageSession{
		AssessmentType:          string(result.AssessmentType),
		PHQ9Item9Score:          result.Item9,
		HasSuicidalIdeation:     sub.HasSuicidalIdeation,
		RiskLevel:               string(result.Classification.RiskLevel),
		RequiresEmergency:       result.Classification.RequiresEmergency,
		SupportPreferences:      pq.StringArray(nonNil(sub.SupportPreferences)),
		AvailabilityPreferences: pq.StringArray(nonNil(sub.AvailabilityPreferences)),
	}

	for _, score := range result.Scores {
		total := score.Total
		var severity *string
		if score.Severity != "" {
			band := string(score.Severity)
			severity = &band
		}
		switch score.Instrument {
		case triage.PHQ2:
			session.PHQ2Answers = toInt64Array(sub.PHQ2Answers)
			session.PHQ2Score = &total
		case triage.GAD2:
			session.GAD2Answers = toInt64Array(sub.GAD2Answers)
			session.GAD2Score = &total
		case triage.PHQ9:
			session.PHQ9Answers = toInt64Array(sub.PHQ9Answers)
			session.PHQ9Score = &total
			session.PHQ9Severity = severity
		case triage.GAD7:
			session.GAD7Answers = toInt64Array(sub.GAD7Answers)
			session.GAD7Score = &total
			session.GAD7Severity = severity
		}
	}
	return session
}

// mapValidationError keeps each rejection kind under its own error code.
func mapValidationError(err error) error {
	var verr *triage.ValidationError
	if !errors.As(err, &verr) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate submission")
	}

	details := map[string]interface{}{"kind": verr.Kind}
	if verr.Field != "" {
		details["field"] = verr.Field
	}

	switch verr.Kind {
	case triage.KindScoreMismatch:
		details["mismatches"] = verr.Mismatches
		return appErrors.WithDetails(appErrors.ErrScoreMismatch, verr.Message, details)
	case triage.KindOutOfRangeAnswer:
		return appErrors.WithDetails(appErrors.ErrOutOfRange, verr.Message, details)
	case triage.KindWrongAnswerCount:
		return appErrors.WithDetails(appErrors.ErrWrongAnswerCount, verr.Message, details)
	default:
		return appErrors.WithDetails(appErrors.ErrMalformedPayload, verr.Message, details)
	}
}

func toInt64Array(values []int) pq.Int64Array {
	out := make(pq.Int64Array, len(values))
	for i, v := range values {
		out[i] = int64(v)
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
