package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/therapy-match-api/internal/models"
)

// CourseRepository reads the course catalogue.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// ListPublished returns published courses in insertion order.
func (r *CourseRepository) ListPublished(ctx context.Context) ([]models.Course, error) {
	const query = `SELECT id, title, summary, format, structured, topics, rating, published, duration_weeks, created_at, updated_at FROM courses WHERE published = TRUE ORDER BY created_at ASC, id ASC`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list published courses: %w", err)
	}
	return courses, nil
}
