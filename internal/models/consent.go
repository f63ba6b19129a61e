package models

import "time"

// ConsentScope names what a consent grant covers.
type ConsentScope string

const ConsentScopeDossierSharing ConsentScope = "DOSSIER_SHARING"

// ConsentStatus is the state of a grant.
type ConsentStatus string

const (
	ConsentGranted ConsentStatus = "GRANTED"
	ConsentRevoked ConsentStatus = "REVOKED"
)

// Consent is a client's scoped permission, managed outside this service.
type Consent struct {
	ID        string        `db:"id" json:"id"`
	ClientID  string        `db:"client_id" json:"client_id"`
	Scope     ConsentScope  `db:"scope" json:"scope"`
	Status    ConsentStatus `db:"status" json:"status"`
	GrantedAt *time.Time    `db:"granted_at" json:"granted_at,omitempty"`
	RevokedAt *time.Time    `db:"revoked_at" json:"revoked_at,omitempty"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// Granted reports whether the consent is currently in force.
func (c *Consent) Granted() bool {
	return c != nil && c.Status == ConsentGranted && c.RevokedAt == nil
}
