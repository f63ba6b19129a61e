package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/therapy-match-api/internal/models"
	appErrors "github.com/noah-isme/therapy-match-api/pkg/errors"
	"github.com/noah-isme/therapy-match-api/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type therapistRepository interface {
	List(ctx context.Context, filter models.TherapistFilter) ([]models.TherapistProfile, error)
	FindByID(ctx context.Context, id string) (*models.TherapistProfile, error)
	Update(ctx context.Context, profile *models.TherapistProfile) error
	UpdateStatus(ctx context.Context, id string, status models.ProfileStatus, hidden bool) error
	SoftDelete(ctx context.Context, id string, deletedAt time.Time) error
}

type catalogInvalidator interface {
	Invalidate(ctx context.Context)
}

// ExportFile is a rendered export ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// TherapistService covers profile self-service and administrative review.
type TherapistService struct {
	repo      therapistRepository
	catalog   catalogInvalidator
	geocoder  Geocoder
	audit     AuditWriter
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewTherapistService constructs a TherapistService.
func NewTherapistService(repo therapistRepository, catalog catalogInvalidator, geocoder Geocoder, audit AuditWriter, validate *validator.Validate, logger *zap.Logger) *TherapistService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TherapistService{
		repo:      repo,
		catalog:   catalog,
		geocoder:  geocoder,
		audit:     audit,
		csv:       export.NewCSVExporter(export.WithDelimiter(';'), export.WithBOM()),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Update lets a therapist edit their own profile. Edits to a verified profile
// send it back to review.
func (s *TherapistService) Update(ctx context.Context, claims *models.JWTClaims, id string, req models.UpdateTherapistProfileRequest, meta AuditMeta) (*models.TherapistProfile, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	if req.PriceMin != nil && req.PriceMax != nil && *req.PriceMin > *req.PriceMax {
		return nil, appErrors.Clone(appErrors.ErrValidation, "price_min must not exceed price_max")
	}

	profile, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if profile.UserID == nil || *profile.UserID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "profile belongs to another therapist")
	}

	locationChanged := !strings.EqualFold(profile.City, req.City) || !equalStringPtr(profile.PostalCode, req.PostalCode)
	applyProfileUpdate(profile, req)
	if locationChanged || profile.Latitude == nil {
		s.locate(ctx, profile)
	}
	if profile.Status == models.ProfileVerified {
		profile.Status = models.ProfilePending
	}

	if err := s.repo.Update(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}
	s.catalog.Invalidate(ctx)

	recordAudit(ctx, s.audit, s.logger, claims.UserID, models.AuditActionProfileUpdate, "therapist_profile", profile.ID,
		map[string]string{"status": string(profile.Status)}, meta)
	return profile, nil
}

// UpdateStatus records an admin review decision and visibility.
func (s *TherapistService) UpdateStatus(ctx context.Context, claims *models.JWTClaims, id string, req models.UpdateTherapistStatusRequest, meta AuditMeta) (*models.TherapistProfile, error) {
	if !claims.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	profile, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	hidden := profile.Hidden
	if req.Hidden != nil {
		hidden = *req.Hidden
	}

	if err := s.repo.UpdateStatus(ctx, id, req.Status, hidden); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile status")
	}
	s.catalog.Invalidate(ctx)

	recordAudit(ctx, s.audit, s.logger, claims.UserID, models.AuditActionProfileStatus, "therapist_profile", id,
		map[string]interface{}{"from": profile.Status, "to": req.Status, "hidden": hidden}, meta)

	profile.Status = req.Status
	profile.Hidden = hidden
	return profile, nil
}

// Delete soft-deletes a profile.
func (s *TherapistService) Delete(ctx context.Context, claims *models.JWTClaims, id string, meta AuditMeta) error {
	if !claims.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id, s.now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete profile")
	}
	s.catalog.Invalidate(ctx)

	recordAudit(ctx, s.audit, s.logger, claims.UserID, models.AuditActionProfileDelete, "therapist_profile", id, nil, meta)
	return nil
}

// Export renders every non-deleted profile as CSV or PDF.
func (s *TherapistService) Export(ctx context.Context, claims *models.JWTClaims, format string, meta AuditMeta) (*ExportFile, error) {
	if !claims.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	profiles, err := s.repo.List(ctx, models.TherapistFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list profiles")
	}

	dataset := therapistDataset(profiles)
	stamp := s.now().UTC().Format("20060102-150405")
	file := &ExportFile{Filename: fmt.Sprintf("therapists-%s.%s", stamp, format)}

	switch format {
	case ExportFormatPDF:
		file.ContentType = "application/pdf"
		file.Data, err = s.pdf.Render(dataset, "Therapeut:innen-Verzeichnis")
	default:
		file.ContentType = "text/csv; charset=utf-8"
		file.Data, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	recordAudit(ctx, s.audit, s.logger, claims.UserID, models.AuditActionDirectoryExport, "therapist_profile", "",
		map[string]interface{}{"format": format, "rows": len(profiles)}, meta)
	return file, nil
}

func (s *TherapistService) load(ctx context.Context, id string) (*models.TherapistProfile, error) {
	profile, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "therapist not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load therapist")
	}
	return profile, nil
}

// locate refreshes coordinates from postal code and city. Unknown places
// clear stale coordinates.
func (s *TherapistService) locate(ctx context.Context, profile *models.TherapistProfile) {
	if s.geocoder == nil {
		return
	}
	query := profile.City
	if profile.PostalCode != nil {
		query = *profile.PostalCode + " " + profile.City
	}
	point, err := s.geocoder.Lookup(ctx, query)
	if err != nil {
		s.logger.Warn("geocoding profile failed", zap.String("therapist_id", profile.ID), zap.Error(err))
		return
	}
	if point == nil {
		profile.Latitude, profile.Longitude = nil, nil
		return
	}
	lat, lng := point.Lat, point.Lng
	profile.Latitude, profile.Longitude = &lat, &lng
}

func applyProfileUpdate(profile *models.TherapistProfile, req models.UpdateTherapistProfileRequest) {
	profile.FullName = strings.TrimSpace(req.FullName)
	profile.Title = req.Title
	profile.Gender = req.Gender
	profile.City = strings.TrimSpace(req.City)
	profile.PostalCode = req.PostalCode
	profile.Specialties = pq.StringArray(nonNil(req.Specialties))
	profile.Modalities = pq.StringArray(nonNil(req.Modalities))
	profile.Languages = pq.StringArray(nonNil(req.Languages))
	profile.Formats = pq.StringArray(nonNil(req.Formats))
	profile.PriceMinCents = eurosToCents(req.PriceMin)
	profile.PriceMaxCents = eurosToCents(req.PriceMax)
	profile.AcceptsInsurance = req.AcceptsInsurance
	profile.InsuranceProviders = pq.StringArray(nonNil(req.InsuranceProviders))
	profile.AcceptingClients = req.AcceptingClients
	profile.AvailabilityNote = req.AvailabilityNote
	profile.Experience = req.Experience
	profile.Bio = req.Bio
}

var therapistExportHeaders = []string{"ID", "Name", "Ort", "Status", "Versteckt", "Formate", "Schwerpunkte", "Preis (EUR)", "Nimmt auf"}

func therapistDataset(profiles []models.TherapistProfile) export.Dataset {
	rows := make([]map[string]string, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, map[string]string{
			"ID":           p.ID,
			"Name":         p.FullName,
			"Ort":          p.City,
			"Status":       string(p.Status),
			"Versteckt":    yesNo(p.Hidden),
			"Formate":      strings.Join(p.Formats, ", "),
			"Schwerpunkte": strings.Join(p.Specialties, ", "),
			"Preis (EUR)":  formatPriceRange(p.PriceMinCents, p.PriceMaxCents),
			"Nimmt auf":    yesNo(p.AcceptingClients),
		})
	}
	return export.Dataset{Headers: therapistExportHeaders, Rows: rows}
}

func yesNo(v bool) string {
	if v {
		return "ja"
	}
	return "nein"
}

func formatPriceRange(minCents, maxCents *int) string {
	format := func(c *int) string {
		if c == nil {
			return ""
		}
		return strings.Replace(fmt.Sprintf("%.2f", float64(*c)/100), ".", ",", 1)
	}
	lo, hi := format(minCents), format(maxCents)
	switch {
	case lo == "" && hi == "":
		return ""
	case lo == "" || lo == hi:
		return hi
	case hi == "":
		return lo
	default:
		return lo + " - " + hi
	}
}

func eurosToCents(v *int) *int {
	if v == nil {
		return nil
	}
	cents := *v * 100
	return &cents
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return strings.EqualFold(strings.TrimSpace(*a), strings.TrimSpace(*b))
}
