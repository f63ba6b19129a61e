package matching

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/therapy-match-api/internal/models"
	"github.com/noah-isme/therapy-match-api/internal/triage"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func fixedClock() time.Time {
	return time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
}

func therapist(id string, rating *float64, formats ...string) models.TherapistProfile {
	return models.TherapistProfile{
		ID:               id,
		FullName:         "Therapist " + id,
		City:             "Wien",
		Formats:          pq.StringArray(formats),
		Rating:           rating,
		AcceptingClients: true,
		Status:           models.ProfileVerified,
	}
}

func ids(recs []TherapistRecommendation) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

func TestRankTherapistsFiltersBeforeScoring(t *testing.T) {
	engine := NewEngine(DefaultWeights(), 3, WithClock(fixedClock))

	deleted := time.Now()
	pending := therapist("pending", floatPtr(5))
	pending.Status = models.ProfilePending
	hidden := therapist("hidden", floatPtr(5))
	hidden.Hidden = true
	gone := therapist("gone", floatPtr(5))
	gone.DeletedAt = &deleted

	recs := engine.RankTherapists(Preferences{}, []models.TherapistProfile{
		pending, hidden, gone, therapist("ok", floatPtr(3)),
	})

	assert.Equal(t, []string{"ok"}, ids(recs))
	assert.Equal(t, 1, recs[0].Rank)
}

func TestRankTherapistsAppliesFormatBonus(t *testing.T) {
	engine := NewEngine(DefaultWeights(), 3, WithClock(fixedClock))
	prefs := NewPreferences(nil, []string{"Online"}, triage.RiskLow)

	recs := engine.RankTherapists(prefs, []models.TherapistProfile{
		therapist("inperson", floatPtr(4.5), "praesenz"),
		therapist("online", floatPtr(4.0), "online"),
		therapist("hybrid", floatPtr(3.2), "hybrid"),
	})

	// 4.0+1.0 beats 4.5; hybrid gets the bonus too but stays behind.
	assert.Equal(t, []string{"online", "inperson", "hybrid"}, ids(recs))
	assert.Contains(t, recs[0].Highlights, "Online-Termine möglich")
}

func TestRankTherapistsElevatedRiskPrefersShortTermOpenings(t *testing.T) {
	engine := NewEngine(DefaultWeights(), 3, WithClock(fixedClock))
	prefs := NewPreferences([]string{"therapist"}, nil, triage.RiskHigh)

	waitlisted := therapist("waitlist", floatPtr(4.2))
	waitlisted.AvailabilityNote = strPtr("Derzeit Warteliste")
	soon := therapist("soon", floatPtr(4.0))
	soon.AvailabilityNote = strPtr("Termine nächste Woche")

	recs := engine.RankTherapists(prefs, []models.TherapistProfile{waitlisted, soon})

	require.Len(t, recs, 2)
	assert.Equal(t, "soon", recs[0].ID)
	assert.Equal(t, 1, recs[0].Availability.Rank)
	assert.Len(t, recs[0].Highlights, MaxHighlights)
	assert.Equal(t, 2, recs[1].Rank)
}

func TestRankTherapistsStableOnTies(t *testing.T) {
	engine := NewEngine(DefaultWeights(), 2, WithClock(fixedClock))

	recs := engine.RankTherapists(Preferences{}, []models.TherapistProfile{
		therapist("a", nil),
		therapist("b", nil),
		therapist("c", nil),
	})

	assert.Equal(t, []string{"a", "b"}, ids(recs))
}

func TestRankCourses(t *testing.T) {
	engine := NewEngine(DefaultWeights(), 3, WithClock(fixedClock))
	prefs := NewPreferences([]string{"self_guided"}, []string{"check_in"}, triage.RiskMedium)

	courses := []models.Course{
		{ID: "draft", Title: "Draft", Format: models.CourseSelfGuided, Published: false, Rating: floatPtr(5)},
		{ID: "cohort", Title: "Cohort", Format: models.CourseCohort, Published: true, Rating: floatPtr(4.8)},
		{ID: "self", Title: "Self", Format: models.CourseSelfGuided, Published: true, Rating: floatPtr(4.0)},
		{ID: "checkin", Title: "Check-in", Format: models.CourseCheckIn, Structured: true, Published: true, Rating: floatPtr(3.5)},
	}

	recs := engine.RankCourses(prefs, courses)

	require.Len(t, recs, 3)
	// self 5.5, checkin 3.5+0.75+1.0=5.25, cohort 4.8
	assert.Equal(t, "self", recs[0].ID)
	assert.Equal(t, "checkin", recs[1].ID)
	assert.Equal(t, "cohort", recs[2].ID)
	assert.Equal(t, []string{"Strukturiertes Programm mit klaren Schritten", "Regelmäßige Check-ins"}, recs[1].Highlights)
}

func TestRecommendCapsBothLists(t *testing.T) {
	engine := NewEngine(DefaultWeights(), 1, WithClock(fixedClock))

	recs := engine.Recommend(Preferences{}, []models.TherapistProfile{
		therapist("a", nil), therapist("b", nil),
	}, []models.Course{
		{ID: "x", Published: true}, {ID: "y", Published: true},
	})

	assert.Len(t, recs.Therapists, 1)
	assert.Len(t, recs.Courses, 1)
}

func TestNewEngineDefaultsLimit(t *testing.T) {
	engine := NewEngine(DefaultWeights(), 0)
	assert.Equal(t, DefaultLimit, engine.limit)
}

func TestHighlightsDedupesAndCaps(t *testing.T) {
	got := Highlights("a", " ", "a", "b", "c", "d")
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestNewPreferencesNormalisesAliases(t *testing.T) {
	prefs := NewPreferences([]string{" One_On_One "}, []string{"Präsenz", ""}, triage.RiskLow)
	assert.Equal(t, []string{SupportTherapist}, prefs.SupportTypes)
	assert.Equal(t, []string{"praesenz"}, prefs.Formats)
}
