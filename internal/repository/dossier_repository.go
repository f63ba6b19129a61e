package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/therapy-match-api/internal/models"
)

// ErrDossierExists is returned when the one-dossier-per-session constraint fires.
var ErrDossierExists = errors.New("dossier already exists for triage session")

const uniqueViolation = "23505"

const dossierColumns = `id, triage_session_id, client_id, created_by, risk_level, red_flags, version, allowed_therapist_ids, encrypted_summary, expires_at, created_at`

// DossierRepository persists dossiers with a unique triage_session_id.
type DossierRepository struct {
	db *sqlx.DB
}

// NewDossierRepository constructs a DossierRepository.
func NewDossierRepository(db *sqlx.DB) *DossierRepository {
	return &DossierRepository{db: db}
}

// Create inserts a dossier. A concurrent insert for the same session yields ErrDossierExists.
func (r *DossierRepository) Create(ctx context.Context, dossier *models.Dossier) error {
	if dossier.ID == "" {
		dossier.ID = uuid.NewString()
	}
	if dossier.CreatedAt.IsZero() {
		dossier.CreatedAt = time.Now().UTC()
	}
	if dossier.Version == 0 {
		dossier.Version = 1
	}

	const query = `INSERT INTO dossiers (id, triage_session_id, client_id, created_by, risk_level, red_flags, version, allowed_therapist_ids, encrypted_summary, expires_at, created_at)
		VALUES (:id, :triage_session_id, :client_id, :created_by, :risk_level, :red_flags, :version, :allowed_therapist_ids, :encrypted_summary, :expires_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, dossier); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrDossierExists
		}
		return fmt.Errorf("create dossier: %w", err)
	}
	return nil
}

// FindByID fetches a dossier.
func (r *DossierRepository) FindByID(ctx context.Context, id string) (*models.Dossier, error) {
	query := fmt.Sprintf("SELECT %s FROM dossiers WHERE id = $1", dossierColumns)
	var dossier models.Dossier
	if err := r.db.GetContext(ctx, &dossier, query, id); err != nil {
		return nil, err
	}
	return &dossier, nil
}

// FindBySessionID fetches the dossier of a triage session.
func (r *DossierRepository) FindBySessionID(ctx context.Context, sessionID string) (*models.Dossier, error) {
	query := fmt.Sprintf("SELECT %s FROM dossiers WHERE triage_session_id = $1", dossierColumns)
	var dossier models.Dossier
	if err := r.db.GetContext(ctx, &dossier, query, sessionID); err != nil {
		return nil, err
	}
	return &dossier, nil
}
