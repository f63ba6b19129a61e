// Package matching ranks therapists and courses against the preferences and
// risk level of a triage session.
package matching

import (
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/therapy-match-api/internal/availability"
	"github.com/noah-isme/therapy-match-api/internal/models"
	"github.com/noah-isme/therapy-match-api/internal/triage"
)

// Support types a client can ask for.
const (
	SupportTherapist  = "therapist"
	SupportSelfGuided = "self_guided"
)

// MaxHighlights caps the reasons attached to a recommendation.
const MaxHighlights = 3

// DefaultLimit is the number of items returned per list when none is configured.
const DefaultLimit = 3

// Weights are the additive bonuses applied on top of an item's rating.
type Weights struct {
	DefaultRating float64

	TherapistPreference     float64
	TherapistElevatedRisk   float64
	TherapistFormatMatch    float64
	TherapistShortTermSlots float64

	CoursePreference        float64
	CourseStructuredProgram float64
	CourseFormatMatch       float64
}

// DefaultWeights returns the production weighting.
func DefaultWeights() Weights {
	return Weights{
		DefaultRating:           4.0,
		TherapistPreference:     1.5,
		TherapistElevatedRisk:   0.75,
		TherapistFormatMatch:    1.0,
		TherapistShortTermSlots: 0.5,
		CoursePreference:        1.5,
		CourseStructuredProgram: 0.75,
		CourseFormatMatch:       1.0,
	}
}

// Preferences describe what the client asked for.
type Preferences struct {
	SupportTypes []string
	Formats      []string
	RiskLevel    triage.RiskLevel
}

// NewPreferences normalises the free-text preference lists of a submission.
func NewPreferences(support, formats []string, risk triage.RiskLevel) Preferences {
	return Preferences{
		SupportTypes: normalise(support),
		Formats:      normalise(formats),
		RiskLevel:    risk,
	}
}

func (p Preferences) wantsSupport(kind string) bool {
	return contains(p.SupportTypes, kind)
}

func (p Preferences) wantsFormat(format string) bool {
	return contains(p.Formats, format)
}

// TherapistRecommendation is a ranked therapist without its internal score.
type TherapistRecommendation struct {
	Rank         int               `json:"rank"`
	ID           string            `json:"id"`
	FullName     string            `json:"fullName"`
	Title        *string           `json:"title,omitempty"`
	City         string            `json:"city"`
	Formats      []string          `json:"formats"`
	Specialties  []string          `json:"specialties"`
	Rating       *float64          `json:"rating,omitempty"`
	Availability availability.Meta `json:"availability"`
	Highlights   []string          `json:"highlights"`
}

// CourseRecommendation is a ranked course without its internal score.
type CourseRecommendation struct {
	Rank       int                 `json:"rank"`
	ID         string              `json:"id"`
	Title      string              `json:"title"`
	Format     models.CourseFormat `json:"format"`
	Structured bool                `json:"structured"`
	Rating     *float64            `json:"rating,omitempty"`
	Highlights []string            `json:"highlights"`
}

// Recommendations bundles both ranked lists.
type Recommendations struct {
	Therapists []TherapistRecommendation `json:"therapists"`
	Courses    []CourseRecommendation    `json:"courses"`
}

// Engine scores candidates. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	weights Weights
	limit   int
	now     func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the reference clock used for availability ranking.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine builds an engine returning at most limit items per list.
func NewEngine(weights Weights, limit int, opts ...Option) *Engine {
	if limit <= 0 {
		limit = DefaultLimit
	}
	e := &Engine{weights: weights, limit: limit, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recommend ranks both therapists and courses.
func (e *Engine) Recommend(prefs Preferences, therapists []models.TherapistProfile, courses []models.Course) Recommendations {
	return Recommendations{
		Therapists: e.RankTherapists(prefs, therapists),
		Courses:    e.RankCourses(prefs, courses),
	}
}

type scoredTherapist struct {
	profile    *models.TherapistProfile
	meta       availability.Meta
	score      float64
	highlights []string
}

// RankTherapists returns the top therapists. Profiles that are not publicly
// visible are dropped before scoring.
func (e *Engine) RankTherapists(prefs Preferences, profiles []models.TherapistProfile) []TherapistRecommendation {
	now := e.now()
	elevated := prefs.RiskLevel.Elevated()

	scored := make([]scoredTherapist, 0, len(profiles))
	for i := range profiles {
		p := &profiles[i]
		if !p.PubliclyVisible() {
			continue
		}

		note := ""
		if p.AvailabilityNote != nil {
			note = *p.AvailabilityNote
		}
		meta := availability.Rank(note, p.AcceptingClients, now)

		s := scoredTherapist{profile: p, meta: meta, score: e.rating(p.Rating)}
		if prefs.wantsSupport(SupportTherapist) {
			s.score += e.weights.TherapistPreference
			s.highlights = append(s.highlights, "Persönliche Begleitung durch Therapeut:in")
		}
		if elevated {
			s.score += e.weights.TherapistElevatedRisk
			s.highlights = append(s.highlights, "Engmaschige Unterstützung bei erhöhter Belastung")
		}
		if format, ok := matchedFormat(prefs, p); ok {
			s.score += e.weights.TherapistFormatMatch
			s.highlights = append(s.highlights, formatHighlight(format))
		}
		if elevated && meta.Rank <= availability.RankShortTerm {
			s.score += e.weights.TherapistShortTermSlots
			s.highlights = append(s.highlights, "Kurzfristige Termine verfügbar")
		}
		if len(p.Specialties) > 0 {
			s.highlights = append(s.highlights, "Schwerpunkt: "+p.Specialties[0])
		}
		scored = append(scored, s)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > e.limit {
		scored = scored[:e.limit]
	}

	out := make([]TherapistRecommendation, 0, len(scored))
	for i, s := range scored {
		out = append(out, TherapistRecommendation{
			Rank:         i + 1,
			ID:           s.profile.ID,
			FullName:     s.profile.FullName,
			Title:        s.profile.Title,
			City:         s.profile.City,
			Formats:      []string(s.profile.Formats),
			Specialties:  []string(s.profile.Specialties),
			Rating:       s.profile.Rating,
			Availability: s.meta,
			Highlights:   Highlights(s.highlights...),
		})
	}
	return out
}

type scoredCourse struct {
	course     *models.Course
	score      float64
	highlights []string
}

// RankCourses returns the top published courses.
func (e *Engine) RankCourses(prefs Preferences, courses []models.Course) []CourseRecommendation {
	elevated := prefs.RiskLevel.Elevated()

	scored := make([]scoredCourse, 0, len(courses))
	for i := range courses {
		c := &courses[i]
		if !c.Published {
			continue
		}

		s := scoredCourse{course: c, score: e.rating(c.Rating)}
		if prefs.wantsSupport(SupportSelfGuided) && c.Format == models.CourseSelfGuided {
			s.score += e.weights.CoursePreference
			s.highlights = append(s.highlights, "Im eigenen Tempo durcharbeiten")
		}
		if elevated && c.Structured {
			s.score += e.weights.CourseStructuredProgram
			s.highlights = append(s.highlights, "Strukturiertes Programm mit klaren Schritten")
		}
		if (c.Format == models.CourseCheckIn || c.Format == models.CourseCohort) && prefs.wantsFormat(string(c.Format)) {
			s.score += e.weights.CourseFormatMatch
			if c.Format == models.CourseCheckIn {
				s.highlights = append(s.highlights, "Regelmäßige Check-ins")
			} else {
				s.highlights = append(s.highlights, "Austausch in der Gruppe")
			}
		}
		if len(c.Topics) > 0 {
			s.highlights = append(s.highlights, "Thema: "+c.Topics[0])
		}
		scored = append(scored, s)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > e.limit {
		scored = scored[:e.limit]
	}

	out := make([]CourseRecommendation, 0, len(scored))
	for i, s := range scored {
		out = append(out, CourseRecommendation{
			Rank:       i + 1,
			ID:         s.course.ID,
			Title:      s.course.Title,
			Format:     s.course.Format,
			Structured: s.course.Structured,
			Rating:     s.course.Rating,
			Highlights: Highlights(s.highlights...),
		})
	}
	return out
}

func (e *Engine) rating(r *float64) float64 {
	if r == nil {
		return e.weights.DefaultRating
	}
	return *r
}

// Highlights drops blanks and duplicates, keeping the first MaxHighlights entries.
func Highlights(reasons ...string) []string {
	out := make([]string, 0, MaxHighlights)
	seen := make(map[string]struct{}, len(reasons))
	for _, r := range reasons {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
		if len(out) == MaxHighlights {
			break
		}
	}
	return out
}

// matchedFormat returns the first requested delivery format the therapist
// offers. Hybrid practices serve both online and in-person requests.
func matchedFormat(prefs Preferences, p *models.TherapistProfile) (models.Format, bool) {
	for _, raw := range prefs.Formats {
		f := models.Format(raw)
		switch f {
		case models.FormatOnline, models.FormatInPerson:
			if p.OffersFormat(f) || p.OffersFormat(models.FormatHybrid) {
				return f, true
			}
		case models.FormatHybrid:
			if p.OffersFormat(f) {
				return f, true
			}
		}
	}
	return "", false
}

func formatHighlight(f models.Format) string {
	switch f {
	case models.FormatOnline:
		return "Online-Termine möglich"
	case models.FormatInPerson:
		return "Termine vor Ort möglich"
	default:
		return "Online und vor Ort möglich"
	}
}

var aliases = map[string]string{
	"präsenz":     string(models.FormatInPerson),
	"in_person":   string(models.FormatInPerson),
	"vor_ort":     string(models.FormatInPerson),
	"one_on_one":  SupportTherapist,
	"selbsthilfe": SupportSelfGuided,
}

func normalise(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if canonical, ok := aliases[v]; ok {
			v = canonical
		}
		out = append(out, v)
	}
	return out
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
