package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/therapy-match-api/internal/models"
	"github.com/noah-isme/therapy-match-api/internal/repository"
	appErrors "github.com/noah-isme/therapy-match-api/pkg/errors"
	"github.com/noah-isme/therapy-match-api/pkg/export"
	"github.com/noah-isme/therapy-match-api/pkg/storage"
)

const (
	defaultDossierTTL   = 72 * time.Hour
	criticalPHQ9Total   = 20
	severeAnxietyTotal  = 15
	dossierDownloadPath = "/api/v1/dossiers/download/"
)

type dossierRepository interface {
	Create(ctx context.Context, dossier *models.Dossier) error
	FindByID(ctx context.Context, id string) (*models.Dossier, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Dossier, error)
}

type triageSessionFinder interface {
	FindByID(ctx context.Context, id string) (*models.TriageSession, error)
}

type consentReader interface {
	FindByClientAndScope(ctx context.Context, clientID string, scope models.ConsentScope) (*models.Consent, error)
}

type summarySealer interface {
	Seal(plaintext, additional []byte) ([]byte, error)
	Open(sealed, additional []byte) ([]byte, error)
}

type artifactStore interface {
	Save(name string, data []byte) (string, error)
	Read(name string) ([]byte, error)
}

// DossierConfig tunes dossier lifetime and download links.
type DossierConfig struct {
	TTL          time.Duration
	DownloadPath string
}

// DossierDownload is a decrypted PDF ready to stream.
type DossierDownload struct {
	Filename string
	Data     []byte
}

// DossierService gates creation and reading of clinical summaries.
type DossierService struct {
	repo      dossierRepository
	sessions  triageSessionFinder
	consents  consentReader
	sealer    summarySealer
	store     artifactStore
	signer    *storage.SignedURLSigner
	pdf       *export.PDFExporter
	events    EventEmitter
	metrics   *MetricsService
	audit     AuditWriter
	validator *validator.Validate
	logger    *zap.Logger
	config    DossierConfig
	now       func() time.Time
}

// NewDossierService constructs a DossierService.
func NewDossierService(
	repo dossierRepository,
	sessions triageSessionFinder,
	consents consentReader,
	sealer summarySealer,
	store artifactStore,
	signer *storage.SignedURLSigner,
	events EventEmitter,
	metrics *MetricsService,
	audit AuditWriter,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg DossierConfig,
) *DossierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultDossierTTL
	}
	if cfg.DownloadPath == "" {
		cfg.DownloadPath = dossierDownloadPath
	}
	return &DossierService{
		repo:      repo,
		sessions:  sessions,
		consents:  consents,
		sealer:    sealer,
		store:     store,
		signer:    signer,
		pdf:       export.NewPDFExporter(),
		events:    events,
		metrics:   metrics,
		audit:     audit,
		validator: validate,
		logger:    logger,
		config:    cfg,
		now:       time.Now,
	}
}

// Create builds a dossier for a triage session. Checks run in a fixed order
// so each failure kind is reported precisely: authentication, session,
// ownership, consent, then uniqueness.
func (s *DossierService) Create(ctx context.Context, claims *models.JWTClaims, req models.CreateDossierRequest, meta AuditMeta) (*models.Dossier, error) {
	if claims == nil {
		s.metrics.RecordDossierAccess("create", "unauthenticated")
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid dossier payload")
	}

	session, err := s.sessions.FindByID(ctx, req.TriageSessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "triage session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load triage session")
	}

	if !claims.IsAdmin() && !session.OwnedBy(claims.UserID) {
		s.metrics.RecordDossierAccess("create", "denied")
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the client or an admin may create this dossier")
	}

	if err := s.requireConsent(ctx, session); err != nil {
		s.metrics.RecordDossierAccess("create", "no_consent")
		return nil, err
	}

	existing, err := s.repo.FindBySessionID(ctx, session.ID)
	switch {
	case err == nil:
		return nil, dossierConflict(existing)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing dossier")
	}

	now := s.now().UTC()
	dossier := &models.Dossier{
		ID:                  uuid.NewString(),
		TriageSessionID:     session.ID,
		ClientID:            *session.ClientID,
		CreatedBy:           claims.UserID,
		RiskLevel:           dossierRisk(session, req.ActiveSuicidalIdeation),
		RedFlags:            pq.StringArray(redFlags(session, req.ActiveSuicidalIdeation)),
		Version:             1,
		AllowedTherapistIDs: pq.StringArray(uniqueStrings(req.TherapistIDs)),
		ExpiresAt:           now.Add(s.config.TTL),
		CreatedAt:           now,
	}

	plaintext, err := json.Marshal(dossierSummary(session, req.Notes))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode dossier summary")
	}
	dossier.EncryptedSummary, err = s.sealer.Seal(plaintext, []byte(dossier.ID))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encrypt dossier summary")
	}

	if err := s.repo.Create(ctx, dossier); err != nil {
		if errors.Is(err, repository.ErrDossierExists) {
			if winner, findErr := s.repo.FindBySessionID(ctx, session.ID); findErr == nil {
				return nil, dossierConflict(winner)
			}
			return nil, appErrors.Clone(appErrors.ErrConflict, "dossier already exists for this triage session")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store dossier")
	}

	s.metrics.RecordDossierCreated(string(dossier.RiskLevel))
	s.metrics.RecordDossierAccess("create", "granted")
	if s.events != nil {
		s.events.Emit(ctx, EventDossierCreated, map[string]interface{}{
			"dossier_id":        dossier.ID,
			"triage_session_id": dossier.TriageSessionID,
			"risk_level":        dossier.RiskLevel,
			"red_flags":         []string(dossier.RedFlags),
			"therapist_count":   len(dossier.AllowedTherapistIDs),
			"expires_at":        dossier.ExpiresAt,
		})
	}
	recordAudit(ctx, s.audit, s.logger, claims.UserID, models.AuditActionDossierCreate, "dossier", dossier.ID,
		map[string]interface{}{"triage_session_id": dossier.TriageSessionID, "risk_level": dossier.RiskLevel}, meta)

	s.logger.Info("dossier created",
		zap.String("dossier_id", dossier.ID),
		zap.String("risk_level", string(dossier.RiskLevel)),
		zap.Int("red_flags", len(dossier.RedFlags)),
	)
	return dossier, nil
}

// Get returns a dossier with its decrypted summary.
func (s *DossierService) Get(ctx context.Context, claims *models.JWTClaims, id string, meta AuditMeta) (*models.DossierView, error) {
	dossier, err := s.authorize(ctx, claims, id, "view")
	if err != nil {
		return nil, err
	}

	summary, err := s.openSummary(dossier)
	if err != nil {
		return nil, err
	}

	recordAudit(ctx, s.audit, s.logger, claims.UserID, models.AuditActionDossierView, "dossier", dossier.ID, nil, meta)
	return &models.DossierView{Dossier: *dossier, Summary: *summary}, nil
}

// IssueDownloadLink renders the dossier as a sealed PDF artifact and returns
// a short-lived signed link to it.
func (s *DossierService) IssueDownloadLink(ctx context.Context, claims *models.JWTClaims, id string, meta AuditMeta) (*models.DossierDownloadLink, error) {
	dossier, err := s.authorize(ctx, claims, id, "export")
	if err != nil {
		return nil, err
	}
	summary, err := s.openSummary(dossier)
	if err != nil {
		return nil, err
	}

	pdf, err := s.pdf.RenderDocument(dossierDocument(dossier, summary, s.now()))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render dossier")
	}
	objectPath := dossierArtifactPath(dossier)
	sealed, err := s.sealer.Seal(pdf, []byte(objectPath))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encrypt dossier artifact")
	}
	if _, err := s.store.Save(objectPath, sealed); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store dossier artifact")
	}

	token, expiresAt, err := s.signer.Generate(dossier.ID, objectPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	// A link never outlives the dossier itself.
	if expiresAt.After(dossier.ExpiresAt) && !claims.IsAdmin() {
		expiresAt = dossier.ExpiresAt
	}

	recordAudit(ctx, s.audit, s.logger, claims.UserID, models.AuditActionDossierExport, "dossier", dossier.ID,
		map[string]interface{}{"expires_at": expiresAt}, meta)
	return &models.DossierDownloadLink{
		Token:     token,
		URL:       s.config.DownloadPath + token,
		ExpiresAt: expiresAt,
	}, nil
}

// Download resolves a signed token into the decrypted PDF.
func (s *DossierService) Download(ctx context.Context, token string) (*DossierDownload, error) {
	dossierID, objectPath, _, err := s.signer.Parse(token)
	if err != nil {
		s.metrics.RecordDossierAccess("download", "invalid_token")
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrExpired, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download link")
	}

	dossier, err := s.load(ctx, dossierID)
	if err != nil {
		return nil, err
	}
	if objectPath != dossierArtifactPath(dossier) {
		s.metrics.RecordDossierAccess("download", "invalid_token")
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download link")
	}

	sealed, err := s.store.Read(objectPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "dossier artifact not found")
	}
	data, err := s.sealer.Open(sealed, []byte(objectPath))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decrypt dossier artifact")
	}

	s.metrics.RecordDossierAccess("download", "granted")
	return &DossierDownload{
		Filename: fmt.Sprintf("dossier-%s-v%d.pdf", dossier.ID, dossier.Version),
		Data:     data,
	}, nil
}

// authorize loads a dossier for a reader. Admins read at any time; the owning
// client and allow-listed therapists only until expiry.
func (s *DossierService) authorize(ctx context.Context, claims *models.JWTClaims, id, operation string) (*models.Dossier, error) {
	if claims == nil {
		s.metrics.RecordDossierAccess(operation, "unauthenticated")
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	dossier, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case claims.IsAdmin():
	case dossier.ClientID == claims.UserID,
		claims.Role == models.RoleTherapist && dossier.AllowsTherapist(claims.UserID):
		if dossier.Expired(s.now()) {
			s.metrics.RecordDossierAccess(operation, "expired")
			return nil, appErrors.Clone(appErrors.ErrExpired, "dossier expired")
		}
	default:
		s.metrics.RecordDossierAccess(operation, "denied")
		return nil, appErrors.Clone(appErrors.ErrForbidden, "dossier is not shared with you")
	}

	s.metrics.RecordDossierAccess(operation, "granted")
	return dossier, nil
}

func (s *DossierService) load(ctx context.Context, id string) (*models.Dossier, error) {
	dossier, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "dossier not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dossier")
	}
	return dossier, nil
}

func (s *DossierService) requireConsent(ctx context.Context, session *models.TriageSession) error {
	if session.ClientID == nil {
		return appErrors.Clone(appErrors.ErrConsentRequired, "anonymous sessions cannot be shared")
	}
	consent, err := s.consents.FindByClientAndScope(ctx, *session.ClientID, models.ConsentScopeDossierSharing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load consent")
	}
	if !consent.Granted() {
		return appErrors.Clone(appErrors.ErrConsentRequired, "")
	}
	return nil
}

func (s *DossierService) openSummary(dossier *models.Dossier) (*models.DossierSummary, error) {
	plaintext, err := s.sealer.Open(dossier.EncryptedSummary, []byte(dossier.ID))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decrypt dossier summary")
	}
	var summary models.DossierSummary
	if err := json.Unmarshal(plaintext, &summary); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode dossier summary")
	}
	return &summary, nil
}

func dossierConflict(existing *models.Dossier) error {
	return appErrors.WithDetails(appErrors.ErrConflict, "dossier already exists for this triage session", map[string]interface{}{
		"dossierId": existing.ID,
		"version":   existing.Version,
	})
}

// dossierRisk escalates to CRITICAL on any ideation signal or a PHQ-9 total
// in the severe band. The stored session risk is never modified.
func dossierRisk(session *models.TriageSession, activeIdeation bool) models.DossierRisk {
	if activeIdeation || session.HasSuicidalIdeation || session.PHQ9Item9Score > 0 || session.PHQ9Total() >= criticalPHQ9Total {
		return models.DossierRiskCritical
	}
	switch models.DossierRisk(session.RiskLevel) {
	case models.DossierRiskHigh:
		return models.DossierRiskHigh
	case models.DossierRiskMedium:
		return models.DossierRiskMedium
	default:
		return models.DossierRiskLow
	}
}

func redFlags(session *models.TriageSession, activeIdeation bool) []string {
	flags := []string{}
	if activeIdeation || session.HasSuicidalIdeation {
		flags = append(flags, models.RedFlagSuicidalIdeation)
	}
	if session.PHQ9Item9Score > 0 {
		flags = append(flags, models.RedFlagItem9Positive)
	}
	if session.PHQ9Total() >= criticalPHQ9Total {
		flags = append(flags, models.RedFlagSevereDepression)
	}
	if session.GAD7Total() >= severeAnxietyTotal {
		flags = append(flags, models.RedFlagSevereAnxiety)
	}
	if session.RequiresEmergency {
		flags = append(flags, models.RedFlagEmergencyRequired)
	}
	return flags
}

func dossierSummary(session *models.TriageSession, notes string) models.DossierSummary {
	return models.DossierSummary{
		AssessmentType:    session.AssessmentType,
		PHQ9Score:         session.PHQ9Score,
		GAD7Score:         session.GAD7Score,
		PHQ9Severity:      session.PHQ9Severity,
		GAD7Severity:      session.GAD7Severity,
		PHQ9Item9Score:    session.PHQ9Item9Score,
		BaseRiskLevel:     session.RiskLevel,
		RequiresEmergency: session.RequiresEmergency,
		SupportNeeds:      []string(session.SupportPreferences),
		Notes:             strings.TrimSpace(notes),
	}
}

func dossierArtifactPath(dossier *models.Dossier) string {
	return fmt.Sprintf("dossiers/%s/v%d.pdf.sealed", dossier.ID, dossier.Version)
}

func dossierDocument(dossier *models.Dossier, summary *models.DossierSummary, now time.Time) export.Document {
	scores := export.Section{Heading: "Ergebnisse"}
	scores.Fields = append(scores.Fields, export.Field{Label: "Erhebung", Value: summary.AssessmentType})
	if summary.PHQ9Score != nil {
		scores.Fields = append(scores.Fields, export.Field{Label: "PHQ-9", Value: scoreLabel(*summary.PHQ9Score, summary.PHQ9Severity)})
	}
	if summary.GAD7Score != nil {
		scores.Fields = append(scores.Fields, export.Field{Label: "GAD-7", Value: scoreLabel(*summary.GAD7Score, summary.GAD7Severity)})
	}
	scores.Fields = append(scores.Fields,
		export.Field{Label: "PHQ-9 Item 9", Value: strconv.Itoa(summary.PHQ9Item9Score)},
		export.Field{Label: "Risiko (Erhebung)", Value: summary.BaseRiskLevel},
		export.Field{Label: "Notfall", Value: yesNo(summary.RequiresEmergency)},
	)

	sections := []export.Section{
		{
			Heading: "Dossier",
			Fields: []export.Field{
				{Label: "Dringlichkeit", Value: string(dossier.RiskLevel)},
				{Label: "Version", Value: strconv.Itoa(dossier.Version)},
				{Label: "Gültig bis", Value: dossier.ExpiresAt.UTC().Format("02.01.2006 15:04 MST")},
			},
			Lines: []string(dossier.RedFlags),
		},
		scores,
	}
	if len(summary.SupportNeeds) > 0 {
		sections = append(sections, export.Section{Heading: "Unterstützungswünsche", Lines: summary.SupportNeeds})
	}
	if summary.Notes != "" {
		sections = append(sections, export.Section{Heading: "Notizen", Lines: []string{summary.Notes}})
	}

	return export.Document{
		Title:       "Klinisches Dossier",
		Subtitle:    "Triage " + dossier.TriageSessionID,
		Sections:    sections,
		Footer:      "Vertraulich. Nur für die freigegebenen Therapeut:innen bestimmt.",
		GeneratedAt: now,
	}
}

func scoreLabel(total int, severity *string) string {
	if severity == nil || *severity == "" {
		return strconv.Itoa(total)
	}
	return fmt.Sprintf("%d (%s)", total, *severity)
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
