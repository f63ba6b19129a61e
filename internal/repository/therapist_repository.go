package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/therapy-match-api/internal/models"
)

const therapistColumns = `id, user_id, full_name, title, gender, city, postal_code, latitude, longitude, specialties, modalities, languages, formats, price_min_cents, price_max_cents, accepts_insurance, insurance_providers, accepting_clients, availability_note, experience, rating, bio, status, hidden, deleted_at, created_at, updated_at`

// TherapistRepository manages persistence for therapist profiles.
type TherapistRepository struct {
	db *sqlx.DB
}

// NewTherapistRepository constructs a TherapistRepository.
func NewTherapistRepository(db *sqlx.DB) *TherapistRepository {
	return &TherapistRepository{db: db}
}

// List returns profiles in insertion order.
func (r *TherapistRepository) List(ctx context.Context, filter models.TherapistFilter) ([]models.TherapistProfile, error) {
	base := "FROM therapist_profiles WHERE 1=1"
	var conditions []string
	var args []interface{}

	if !filter.IncludeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}
	if filter.PublicOnly {
		conditions = append(conditions, fmt.Sprintf("status = $%d AND hidden = FALSE", len(args)+1))
		args = append(args, models.ProfileVerified)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at ASC, id ASC", therapistColumns, base)
	var profiles []models.TherapistProfile
	if err := r.db.SelectContext(ctx, &profiles, query, args...); err != nil {
		return nil, fmt.Errorf("list therapist profiles: %w", err)
	}
	return profiles, nil
}

// FindByID fetches a profile that has not been deleted.
func (r *TherapistRepository) FindByID(ctx context.Context, id string) (*models.TherapistProfile, error) {
	query := fmt.Sprintf("SELECT %s FROM therapist_profiles WHERE id = $1 AND deleted_at IS NULL", therapistColumns)
	var profile models.TherapistProfile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Create inserts a new profile.
func (r *TherapistRepository) Create(ctx context.Context, profile *models.TherapistProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	if profile.Status == "" {
		profile.Status = models.ProfilePending
	}

	const query = `INSERT INTO therapist_profiles (id, user_id, full_name, title, gender, city, postal_code, latitude, longitude, specialties, modalities, languages, formats, price_min_cents, price_max_cents, accepts_insurance, insurance_providers, accepting_clients, availability_note, experience, rating, bio, status, hidden, created_at, updated_at)
		VALUES (:id, :user_id, :full_name, :title, :gender, :city, :postal_code, :latitude, :longitude, :specialties, :modalities, :languages, :formats, :price_min_cents, :price_max_cents, :accepts_insurance, :insurance_providers, :accepting_clients, :availability_note, :experience, :rating, :bio, :status, :hidden, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("create therapist profile: %w", err)
	}
	return nil
}

// Update writes the self-service fields and review status of a profile.
func (r *TherapistRepository) Update(ctx context.Context, profile *models.TherapistProfile) error {
	profile.UpdatedAt = time.Now().UTC()
	const query = `UPDATE therapist_profiles SET full_name = :full_name, title = :title, gender = :gender, city = :city, postal_code = :postal_code, latitude = :latitude, longitude = :longitude, specialties = :specialties, modalities = :modalities, languages = :languages, formats = :formats, price_min_cents = :price_min_cents, price_max_cents = :price_max_cents, accepts_insurance = :accepts_insurance, insurance_providers = :insurance_providers, accepting_clients = :accepting_clients, availability_note = :availability_note, experience = :experience, bio = :bio, status = :status, updated_at = :updated_at WHERE id = :id AND deleted_at IS NULL`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("update therapist profile: %w", err)
	}
	return nil
}

// UpdateStatus sets the review status and visibility of a profile.
func (r *TherapistRepository) UpdateStatus(ctx context.Context, id string, status models.ProfileStatus, hidden bool) error {
	const query = `UPDATE therapist_profiles SET status = $2, hidden = $3, updated_at = $4 WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, status, hidden, time.Now().UTC()); err != nil {
		return fmt.Errorf("update therapist status: %w", err)
	}
	return nil
}

// SoftDelete marks a profile deleted without removing the row.
func (r *TherapistRepository) SoftDelete(ctx context.Context, id string, deletedAt time.Time) error {
	const query = `UPDATE therapist_profiles SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, deletedAt); err != nil {
		return fmt.Errorf("soft delete therapist profile: %w", err)
	}
	return nil
}
