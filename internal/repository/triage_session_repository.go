package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/therapy-match-api/internal/models"
)

const triageSessionColumns = `id, client_id, assessment_type, phq2_answers, gad2_answers, phq9_answers, gad7_answers, phq2_score, gad2_score, phq9_score, gad7_score, phq9_severity, gad7_severity, phq9_item9_score, has_suicidal_ideation, risk_level, requires_emergency, support_preferences, availability_preferences, created_at`

// TriageSessionRepository stores assessments. Sessions are never updated.
type TriageSessionRepository struct {
	db *sqlx.DB
}

// NewTriageSessionRepository constructs a TriageSessionRepository.
func NewTriageSessionRepository(db *sqlx.DB) *TriageSessionRepository {
	return &TriageSessionRepository{db: db}
}

// Create inserts a new session.
func (r *TriageSessionRepository) Create(ctx context.Context, session *models.TriageSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO triage_sessions (id, client_id, assessment_type, phq2_answers, gad2_answers, phq9_answers, gad7_answers, phq2_score, gad2_score, phq9_score, gad7_score, phq9_severity, gad7_severity, phq9_item9_score, has_suicidal_ideation, risk_level, requires_emergency, support_preferences, availability_preferences, created_at)
		VALUES (:id, :client_id, :assessment_type, :phq2_answers, :gad2_answers, :phq9_answers, :gad7_answers, :phq2_score, :gad2_score, :phq9_score, :gad7_score, :phq9_severity, :gad7_severity, :phq9_item9_score, :has_suicidal_ideation, :risk_level, :requires_emergency, :support_preferences, :availability_preferences, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create triage session: %w", err)
	}
	return nil
}

// FindByID fetches a session.
func (r *TriageSessionRepository) FindByID(ctx context.Context, id string) (*models.TriageSession, error) {
	query := fmt.Sprintf("SELECT %s FROM triage_sessions WHERE id = $1", triageSessionColumns)
	var session models.TriageSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListByClient returns a client's sessions, newest first.
func (r *TriageSessionRepository) ListByClient(ctx context.Context, clientID string, limit int) ([]models.TriageSession, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf("SELECT %s FROM triage_sessions WHERE client_id = $1 ORDER BY created_at DESC LIMIT %d", triageSessionColumns, limit)
	var sessions []models.TriageSession
	if err := r.db.SelectContext(ctx, &sessions, query, clientID); err != nil {
		return nil, fmt.Errorf("list triage sessions: %w", err)
	}
	return sessions, nil
}
