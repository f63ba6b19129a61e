package models

import (
	"time"

	"github.com/lib/pq"
)

// TriageSession is one accepted assessment. Rows are append-only; a new
// submission creates a new session.
type TriageSession struct {
	ID                      string         `db:"id" json:"id"`
	ClientID                *string        `db:"client_id" json:"client_id,omitempty"`
	AssessmentType          string         `db:"assessment_type" json:"assessment_type"`
	PHQ2Answers             pq.Int64Array  `db:"phq2_answers" json:"phq2_answers,omitempty"`
	GAD2Answers             pq.Int64Array  `db:"gad2_answers" json:"gad2_answers,omitempty"`
	PHQ9Answers             pq.Int64Array  `db:"phq9_answers" json:"phq9_answers,omitempty"`
	GAD7Answers             pq.Int64Array  `db:"gad7_answers" json:"gad7_answers,omitempty"`
	PHQ2Score               *int           `db:"phq2_score" json:"phq2_score,omitempty"`
	GAD2Score               *int           `db:"gad2_score" json:"gad2_score,omitempty"`
	PHQ9Score               *int           `db:"phq9_score" json:"phq9_score,omitempty"`
	GAD7Score               *int           `db:"gad7_score" json:"gad7_score,omitempty"`
	PHQ9Severity            *string        `db:"phq9_severity" json:"phq9_severity,omitempty"`
	GAD7Severity            *string        `db:"gad7_severity" json:"gad7_severity,omitempty"`
	PHQ9Item9Score          int            `db:"phq9_item9_score" json:"phq9_item9_score"`
	HasSuicidalIdeation     bool           `db:"has_suicidal_ideation" json:"has_suicidal_ideation"`
	RiskLevel               string         `db:"risk_level" json:"risk_level"`
	RequiresEmergency       bool           `db:"requires_emergency" json:"requires_emergency"`
	SupportPreferences      pq.StringArray `db:"support_preferences" json:"support_preferences"`
	AvailabilityPreferences pq.StringArray `db:"availability_preferences" json:"availability_preferences"`
	CreatedAt               time.Time      `db:"created_at" json:"created_at"`
}

// OwnedBy reports whether the session belongs to the given client.
func (s *TriageSession) OwnedBy(userID string) bool {
	return s.ClientID != nil && *s.ClientID == userID
}

// PHQ9Total returns the stored PHQ-9 total or 0 for screening sessions.
func (s *TriageSession) PHQ9Total() int {
	if s.PHQ9Score == nil {
		return 0
	}
	return *s.PHQ9Score
}

// GAD7Total returns the stored GAD-7 total or 0 for screening sessions.
func (s *TriageSession) GAD7Total() int {
	if s.GAD7Score == nil {
		return 0
	}
	return *s.GAD7Score
}
