package models

import (
	"time"

	"github.com/lib/pq"
)

// CourseFormat describes how a self-help course is delivered.
type CourseFormat string

const (
	CourseSelfGuided CourseFormat = "self_guided"
	CourseCohort     CourseFormat = "cohort"
	CourseCheckIn    CourseFormat = "check_in"
)

// Course is a guided or self-paced programme offered alongside therapy.
type Course struct {
	ID          string         `db:"id" json:"id"`
	Title       string         `db:"title" json:"title"`
	Summary     *string        `db:"summary" json:"summary,omitempty"`
	Format      CourseFormat   `db:"format" json:"format"`
	Structured  bool           `db:"structured" json:"structured"`
	Topics      pq.StringArray `db:"topics" json:"topics"`
	Rating      *float64       `db:"rating" json:"rating,omitempty"`
	Published   bool           `db:"published" json:"published"`
	DurationWks *int           `db:"duration_weeks" json:"duration_weeks,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}
