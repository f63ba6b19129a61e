package models

import (
	"time"

	"github.com/lib/pq"
)

// ProfileStatus is the review state of a therapist profile.
type ProfileStatus string

const (
	ProfilePending  ProfileStatus = "PENDING"
	ProfileVerified ProfileStatus = "VERIFIED"
	ProfileRejected ProfileStatus = "REJECTED"
)

// Format is a session delivery mode.
type Format string

const (
	FormatOnline   Format = "online"
	FormatInPerson Format = "praesenz"
	FormatHybrid   Format = "hybrid"
)

// TherapistProfile is a practitioner's public record. Prices are stored in cents.
type TherapistProfile struct {
	ID                 string         `db:"id" json:"id"`
	UserID             *string        `db:"user_id" json:"user_id,omitempty"`
	FullName           string         `db:"full_name" json:"full_name"`
	Title              *string        `db:"title" json:"title,omitempty"`
	Gender             *string        `db:"gender" json:"gender,omitempty"`
	City               string         `db:"city" json:"city"`
	PostalCode         *string        `db:"postal_code" json:"postal_code,omitempty"`
	Latitude           *float64       `db:"latitude" json:"latitude,omitempty"`
	Longitude          *float64       `db:"longitude" json:"longitude,omitempty"`
	Specialties        pq.StringArray `db:"specialties" json:"specialties"`
	Modalities         pq.StringArray `db:"modalities" json:"modalities"`
	Languages          pq.StringArray `db:"languages" json:"languages"`
	Formats            pq.StringArray `db:"formats" json:"formats"`
	PriceMinCents      *int           `db:"price_min_cents" json:"price_min_cents,omitempty"`
	PriceMaxCents      *int           `db:"price_max_cents" json:"price_max_cents,omitempty"`
	AcceptsInsurance   bool           `db:"accepts_insurance" json:"accepts_insurance"`
	InsuranceProviders pq.StringArray `db:"insurance_providers" json:"insurance_providers"`
	AcceptingClients   bool           `db:"accepting_clients" json:"accepting_clients"`
	AvailabilityNote   *string        `db:"availability_note" json:"availability_note,omitempty"`
	Experience         *string        `db:"experience" json:"experience,omitempty"`
	Rating             *float64       `db:"rating" json:"rating,omitempty"`
	Bio                *string        `db:"bio" json:"bio,omitempty"`
	Status             ProfileStatus  `db:"status" json:"status"`
	Hidden             bool           `db:"hidden" json:"hidden"`
	DeletedAt          *time.Time     `db:"deleted_at" json:"-"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// PubliclyVisible reports whether the profile may appear in search and matching.
func (p *TherapistProfile) PubliclyVisible() bool {
	return p.Status == ProfileVerified && !p.Hidden && p.DeletedAt == nil
}

// OffersFormat reports whether the profile lists the given delivery mode.
func (p *TherapistProfile) OffersFormat(f Format) bool {
	for _, have := range p.Formats {
		if Format(have) == f {
			return true
		}
	}
	return false
}

// OnlineOnly reports whether every session is delivered remotely.
func (p *TherapistProfile) OnlineOnly() bool {
	return p.OffersFormat(FormatOnline) && !p.OffersFormat(FormatInPerson) && !p.OffersFormat(FormatHybrid)
}

// Coordinates returns the stored location when both parts are present.
func (p *TherapistProfile) Coordinates() (lat, lng float64, ok bool) {
	if p.Latitude == nil || p.Longitude == nil {
		return 0, 0, false
	}
	return *p.Latitude, *p.Longitude, true
}

// TherapistFilter narrows repository listings.
type TherapistFilter struct {
	PublicOnly     bool
	Status         *ProfileStatus
	IncludeDeleted bool
}

// UpdateTherapistProfileRequest carries the self-service fields of a profile.
// Prices are whole euros.
type UpdateTherapistProfileRequest struct {
	FullName           string   `json:"full_name" validate:"required,min=3,max=120"`
	Title              *string  `json:"title" validate:"omitempty,max=60"`
	Gender             *string  `json:"gender" validate:"omitempty,oneof=female male diverse"`
	City               string   `json:"city" validate:"required,max=80"`
	PostalCode         *string  `json:"postal_code" validate:"omitempty,numeric,len=4"`
	Specialties        []string `json:"specialties" validate:"max=20,dive,min=2,max=80"`
	Modalities         []string `json:"modalities" validate:"max=10,dive,min=2,max=80"`
	Languages          []string `json:"languages" validate:"max=10,dive,min=2,max=40"`
	Formats            []string `json:"formats" validate:"required,min=1,dive,oneof=online praesenz hybrid"`
	PriceMin           *int     `json:"price_min" validate:"omitempty,gte=0,lte=1000"`
	PriceMax           *int     `json:"price_max" validate:"omitempty,gte=0,lte=1000"`
	AcceptsInsurance   bool     `json:"accepts_insurance"`
	InsuranceProviders []string `json:"insurance_providers" validate:"max=20,dive,min=2,max=40"`
	AcceptingClients   bool     `json:"accepting_clients"`
	AvailabilityNote   *string  `json:"availability_note" validate:"omitempty,max=500"`
	Experience         *string  `json:"experience" validate:"omitempty,max=200"`
	Bio                *string  `json:"bio" validate:"omitempty,max=4000"`
}

// UpdateTherapistStatusRequest is the admin review decision.
type UpdateTherapistStatusRequest struct {
	Status ProfileStatus `json:"status" validate:"required,oneof=PENDING VERIFIED REJECTED"`
	Hidden *bool         `json:"hidden"`
}
