package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/therapy-match-api/internal/models"
)

var therapistRowColumns = []string{"id", "user_id", "full_name", "title", "gender", "city", "postal_code", "latitude", "longitude", "specialties", "modalities", "languages", "formats", "price_min_cents", "price_max_cents", "accepts_insurance", "insurance_providers", "accepting_clients", "availability_note", "experience", "rating", "bio", "status", "hidden", "deleted_at", "created_at", "updated_at"}

func therapistRow(rows *sqlmock.Rows, id string, now time.Time) *sqlmock.Rows {
	return rows.AddRow(id, "u-"+id, "Mag. "+id, nil, "female", "Wien", "1010", 48.2, 16.37,
		"{Angst,Depression}", "{Verhaltenstherapie}", "{Deutsch,Englisch}", "{online,praesenz}",
		8000, 12000, true, "{ÖGK}", true, "Freie Plätze ab 5. März", "12 Jahre", 4.6, nil,
		string(models.ProfileVerified), false, nil, now, now)
}

func TestTherapistListPublicOnly(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTherapistRepository(db)

	now := time.Now()
	rows := therapistRow(sqlmock.NewRows(therapistRowColumns), "t1", now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM therapist_profiles WHERE 1=1 AND deleted_at IS NULL AND status = $1 AND hidden = FALSE ORDER BY created_at ASC, id ASC")).
		WithArgs(models.ProfileVerified).
		WillReturnRows(rows)

	profiles, err := repo.List(context.Background(), models.TherapistFilter{PublicOnly: true})
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	p := profiles[0]
	assert.Equal(t, []string{"Angst", "Depression"}, []string(p.Specialties))
	assert.Equal(t, []string{"online", "praesenz"}, []string(p.Formats))
	require.NotNil(t, p.PriceMinCents)
	assert.Equal(t, 8000, *p.PriceMinCents)
	assert.True(t, p.PubliclyVisible())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTherapistListByStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTherapistRepository(db)

	status := models.ProfilePending
	mock.ExpectQuery(regexp.QuoteMeta("FROM therapist_profiles WHERE 1=1 AND status = $1 ORDER BY")).
		WithArgs(status).
		WillReturnRows(sqlmock.NewRows(therapistRowColumns))

	profiles, err := repo.List(context.Background(), models.TherapistFilter{Status: &status, IncludeDeleted: true})
	require.NoError(t, err)
	assert.Empty(t, profiles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTherapistFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTherapistRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM therapist_profiles WHERE id = $1 AND deleted_at IS NULL")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTherapistCreateDefaultsToPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTherapistRepository(db)

	mock.ExpectExec("INSERT INTO therapist_profiles").WillReturnResult(sqlmock.NewResult(1, 1))

	profile := &models.TherapistProfile{FullName: "Dr. Huber", City: "Graz"}
	require.NoError(t, repo.Create(context.Background(), profile))
	assert.NotEmpty(t, profile.ID)
	assert.Equal(t, models.ProfilePending, profile.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTherapistUpdateStatusAndSoftDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTherapistRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE therapist_profiles SET status = $2, hidden = $3")).
		WithArgs("t1", models.ProfileVerified, true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE therapist_profiles SET deleted_at = $2")).
		WithArgs("t1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "t1", models.ProfileVerified, true))
	require.NoError(t, repo.SoftDelete(context.Background(), "t1", time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseListPublished(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "title", "summary", "format", "structured", "topics", "rating", "published", "duration_weeks", "created_at", "updated_at"}).
		AddRow("c1", "Achtsam durch den Alltag", nil, string(models.CourseSelfGuided), true, "{Stress}", 4.4, true, 6, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE published = TRUE")).WillReturnRows(rows)

	courses, err := repo.ListPublished(context.Background())
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, models.CourseSelfGuided, courses[0].Format)
	assert.Equal(t, []string{"Stress"}, []string(courses[0].Topics))
	assert.NoError(t, mock.ExpectationsWereMet())
}
