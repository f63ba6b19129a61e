package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/therapy-match-api/internal/models"
)

// ConsentRepository reads consent grants. Grants are written by another system.
type ConsentRepository struct {
	db *sqlx.DB
}

// NewConsentRepository constructs a ConsentRepository.
func NewConsentRepository(db *sqlx.DB) *ConsentRepository {
	return &ConsentRepository{db: db}
}

// FindByClientAndScope returns the latest consent for a client and scope.
func (r *ConsentRepository) FindByClientAndScope(ctx context.Context, clientID string, scope models.ConsentScope) (*models.Consent, error) {
	const query = `SELECT id, client_id, scope, status, granted_at, revoked_at, updated_at FROM consents WHERE client_id = $1 AND scope = $2 ORDER BY updated_at DESC LIMIT 1`
	var consent models.Consent
	if err := r.db.GetContext(ctx, &consent, query, clientID, scope); err != nil {
		return nil, err
	}
	return &consent, nil
}
