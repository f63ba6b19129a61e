package models

import (
	"time"

	"github.com/lib/pq"
)

// DossierRisk is the urgency label of a dossier. CRITICAL exists only here.
type DossierRisk string

const (
	DossierRiskLow      DossierRisk = "LOW"
	DossierRiskMedium   DossierRisk = "MEDIUM"
	DossierRiskHigh     DossierRisk = "HIGH"
	DossierRiskCritical DossierRisk = "CRITICAL"
)

// Red flags attached to a dossier.
const (
	RedFlagSuicidalIdeation  = "SUICIDAL_IDEATION"
	RedFlagItem9Positive     = "PHQ9_ITEM9_POSITIVE"
	RedFlagSevereDepression  = "SEVERE_DEPRESSION"
	RedFlagSevereAnxiety     = "SEVERE_ANXIETY"
	RedFlagEmergencyRequired = "EMERGENCY_REQUIRED"
)

// Dossier is an encrypted clinical summary tied 1:1 to a triage session.
type Dossier struct {
	ID                  string         `db:"id" json:"id"`
	TriageSessionID     string         `db:"triage_session_id" json:"triage_session_id"`
	ClientID            string         `db:"client_id" json:"client_id"`
	CreatedBy           string         `db:"created_by" json:"created_by"`
	RiskLevel           DossierRisk    `db:"risk_level" json:"risk_level"`
	RedFlags            pq.StringArray `db:"red_flags" json:"red_flags"`
	Version             int            `db:"version" json:"version"`
	AllowedTherapistIDs pq.StringArray `db:"allowed_therapist_ids" json:"allowed_therapist_ids"`
	EncryptedSummary    []byte         `db:"encrypted_summary" json:"-"`
	ExpiresAt           time.Time      `db:"expires_at" json:"expires_at"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
}

// Expired reports whether the dossier is past its expiry at now.
func (d *Dossier) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}

// AllowsTherapist reports whether the therapist id is on the allow-list.
func (d *Dossier) AllowsTherapist(id string) bool {
	for _, allowed := range d.AllowedTherapistIDs {
		if allowed == id {
			return true
		}
	}
	return false
}

// DossierSummary is the plaintext sealed into EncryptedSummary.
type DossierSummary struct {
	AssessmentType    string   `json:"assessment_type"`
	PHQ9Score         *int     `json:"phq9_score,omitempty"`
	GAD7Score         *int     `json:"gad7_score,omitempty"`
	PHQ9Severity      *string  `json:"phq9_severity,omitempty"`
	GAD7Severity      *string  `json:"gad7_severity,omitempty"`
	PHQ9Item9Score    int      `json:"phq9_item9_score"`
	BaseRiskLevel     string   `json:"base_risk_level"`
	RequiresEmergency bool     `json:"requires_emergency"`
	SupportNeeds      []string `json:"support_needs,omitempty"`
	Notes             string   `json:"notes,omitempty"`
}

// DossierView is a dossier with its summary decrypted for an authorised reader.
type DossierView struct {
	Dossier
	Summary DossierSummary `json:"summary"`
}

// CreateDossierRequest asks for a dossier over an existing triage session.
type CreateDossierRequest struct {
	TriageSessionID        string   `json:"triageSessionId" validate:"required,uuid"`
	TherapistIDs           []string `json:"therapistIds" validate:"required,min=1,dive,uuid"`
	ActiveSuicidalIdeation bool     `json:"activeSuicidalIdeation"`
	Notes                  string   `json:"notes" validate:"max=2000"`
}

// DossierDownloadLink is a signed, short-lived download URL.
type DossierDownloadLink struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
