package directory

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/therapy-match-api/internal/models"
	"github.com/noah-isme/therapy-match-api/pkg/geo"
)

var (
	now    = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	vienna = geo.Point{Lat: 48.2082, Lng: 16.3738}
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

func profile(id string, formats ...string) models.TherapistProfile {
	return models.TherapistProfile{
		ID:               id,
		FullName:         "Dr. " + id,
		City:             "Wien",
		Formats:          pq.StringArray(formats),
		AcceptingClients: true,
		Status:           models.ProfileVerified,
	}
}

func located(p models.TherapistProfile, lat, lng float64) models.TherapistProfile {
	p.Latitude = floatPtr(lat)
	p.Longitude = floatPtr(lng)
	return p
}

func priced(p models.TherapistProfile, minEUR, maxEUR int) models.TherapistProfile {
	p.PriceMinCents = intPtr(minEUR * 100)
	p.PriceMaxCents = intPtr(maxEUR * 100)
	return p
}

func itemIDs(res Result) []string {
	out := make([]string, 0, len(res.Items))
	for _, it := range res.Items {
		out = append(out, it.Profile.ID)
	}
	return out
}

func TestApplyEmptyFilterIsPassThrough(t *testing.T) {
	profiles := []models.TherapistProfile{profile("a", "online"), profile("b", "praesenz")}

	res := Apply(profiles, Filter{}, now)

	assert.Equal(t, []string{"a", "b"}, itemIDs(res))
	assert.Equal(t, 2, res.Total)
}

func TestNearbyOnlineOnlyAlwaysPasses(t *testing.T) {
	profiles := []models.TherapistProfile{
		profile("online-only", "online"),
		profile("inperson-no-coords", "praesenz"),
		located(profile("graz", "praesenz"), 47.0707, 15.4395),
		located(profile("vienna", "praesenz", "online"), 48.21, 16.37),
	}
	f := Filter{NearbyOnly: true, RadiusKm: 10, Origin: &vienna}

	res := Apply(profiles, f, now)

	assert.Equal(t, []string{"online-only", "vienna"}, itemIDs(res))
}

func TestNearbyWithoutOriginIsPassThrough(t *testing.T) {
	profiles := []models.TherapistProfile{profile("a", "praesenz")}

	res := Apply(profiles, Filter{NearbyOnly: true, RadiusKm: 5}, now)

	assert.Len(t, res.Items, 1)
}

func TestPriceOverlap(t *testing.T) {
	profiles := []models.TherapistProfile{
		priced(profile("overlap", "online"), 90, 150),
		priced(profile("above", "online"), 110, 150),
		profile("unpriced", "online"),
	}
	f := Filter{PriceMin: intPtr(70), PriceMax: intPtr(100)}

	res := Apply(profiles, f, now)

	assert.Equal(t, []string{"overlap"}, itemIDs(res))
}

func TestConjunctionOfFilters(t *testing.T) {
	a := profile("a", "online")
	a.Languages = pq.StringArray{"Deutsch", "Englisch"}
	a.Specialties = pq.StringArray{"Angst", "Depression"}
	a.Gender = strPtr("female")
	a.AcceptsInsurance = true
	a.InsuranceProviders = pq.StringArray{"ÖGK"}

	b := profile("b", "online")
	b.Languages = pq.StringArray{"Deutsch"}
	b.Specialties = pq.StringArray{"Angst"}
	b.Gender = strPtr("male")

	f := Filter{
		Languages:          []string{"englisch"},
		Specializations:    []string{"angst"},
		Gender:             "Female",
		InsuranceOnly:      true,
		InsuranceProviders: []string{"ögk"},
		Formats:            []string{"online"},
	}

	res := Apply([]models.TherapistProfile{a, b}, f, now)

	assert.Equal(t, []string{"a"}, itemIDs(res))
}

func TestQueryMatchesNameCityAndSpecialties(t *testing.T) {
	a := profile("a", "online")
	a.City = "Linz"
	b := profile("b", "online")
	b.Specialties = pq.StringArray{"Traumatherapie"}

	assert.Equal(t, []string{"a"}, itemIDs(Apply([]models.TherapistProfile{a, b}, Filter{Query: "linz"}, now)))
	assert.Equal(t, []string{"b"}, itemIDs(Apply([]models.TherapistProfile{a, b}, Filter{Query: "TRAUMA"}, now)))
}

func TestHybridSatisfiesFormatFilter(t *testing.T) {
	res := Apply([]models.TherapistProfile{profile("h", "hybrid"), profile("o", "online")}, Filter{Formats: []string{"praesenz"}}, now)
	assert.Equal(t, []string{"h"}, itemIDs(res))
}

func TestSortRelevance(t *testing.T) {
	pending := profile("pending", "online")
	pending.Status = models.ProfilePending
	waitlist := profile("waitlist", "online")
	waitlist.AvailabilityNote = strPtr("Warteliste")
	urgent := profile("urgent", "online")
	urgent.AvailabilityNote = strPtr("Termine ab sofort")

	res := Apply([]models.TherapistProfile{pending, waitlist, urgent}, Filter{}, now)

	assert.Equal(t, []string{"urgent", "waitlist", "pending"}, itemIDs(res))
}

func TestSortDistanceMissingLast(t *testing.T) {
	profiles := []models.TherapistProfile{
		profile("none", "online"),
		located(profile("graz", "praesenz"), 47.0707, 15.4395),
		located(profile("vienna", "praesenz"), 48.21, 16.37),
	}

	res := Apply(profiles, Filter{Origin: &vienna, Sort: SortDistance}, now)

	assert.Equal(t, []string{"vienna", "graz", "none"}, itemIDs(res))
	require.NotNil(t, res.Items[1].DistanceKm)
	assert.InDelta(t, 144.9, *res.Items[1].DistanceKm, 1.5)
}

func TestSortPrice(t *testing.T) {
	profiles := []models.TherapistProfile{
		profile("unpriced", "online"),
		priced(profile("cheap", "online"), 60, 80),
		priced(profile("pricey", "online"), 120, 150),
	}

	asc := Apply(profiles, Filter{Sort: SortPriceAsc}, now)
	assert.Equal(t, []string{"cheap", "pricey", "unpriced"}, itemIDs(asc))

	desc := Apply(profiles, Filter{Sort: SortPriceDesc}, now)
	assert.Equal(t, []string{"pricey", "cheap", "unpriced"}, itemIDs(desc))
}

func TestSortExperienceAndRating(t *testing.T) {
	junior := profile("junior", "online")
	junior.Experience = strPtr("3 Jahre Erfahrung")
	junior.Rating = floatPtr(4.9)
	senior := profile("senior", "online")
	senior.Experience = strPtr("in freier Praxis seit 2001")
	unknown := profile("unknown", "online")
	unknown.Experience = strPtr("langjährig")
	unknown.Rating = floatPtr(4.1)

	profiles := []models.TherapistProfile{unknown, junior, senior}

	assert.Equal(t, []string{"senior", "junior", "unknown"}, itemIDs(Apply(profiles, Filter{Sort: SortExperience}, now)))
	assert.Equal(t, []string{"junior", "unknown", "senior"}, itemIDs(Apply(profiles, Filter{Sort: SortRating}, now)))
}

func TestSortAvailabilityIsStable(t *testing.T) {
	a := profile("a", "online")
	b := profile("b", "online")
	c := profile("c", "online")
	c.AvailabilityNote = strPtr("heute noch frei")

	res := Apply([]models.TherapistProfile{a, b, c}, Filter{Sort: SortAvailability}, now)

	assert.Equal(t, []string{"c", "a", "b"}, itemIDs(res))
}

func TestBuildFacets(t *testing.T) {
	a := priced(profile("a", "online"), 80, 120)
	a.Specialties = pq.StringArray{"Depression", "Angst"}
	a.Languages = pq.StringArray{"Deutsch"}
	a.InsuranceProviders = pq.StringArray{"ÖGK"}
	b := profile("b", "online")
	b.PriceMinCents = intPtr(6550)
	b.Specialties = pq.StringArray{"Angst", " "}
	b.Languages = pq.StringArray{"Englisch", "Deutsch"}

	facets := BuildFacets([]models.TherapistProfile{a, b})

	assert.Equal(t, []string{"Angst", "Depression"}, facets.Specializations)
	assert.Equal(t, []string{"Deutsch", "Englisch"}, facets.Languages)
	assert.Equal(t, []string{"ÖGK"}, facets.InsuranceProviders)
	require.NotNil(t, facets.PriceMin)
	assert.Equal(t, 65, *facets.PriceMin)
	assert.Equal(t, 120, *facets.PriceMax)
}

func TestBuildFacetsWithoutPrices(t *testing.T) {
	facets := BuildFacets([]models.TherapistProfile{profile("a", "online")})
	assert.Nil(t, facets.PriceMin)
	assert.Nil(t, facets.PriceMax)
	assert.Empty(t, facets.Languages)
}

func TestParseExperience(t *testing.T) {
	cases := map[string]int{
		"12 Jahre Erfahrung":          12,
		"über 20+ Jahre":              20,
		"seit 2015 in eigener Praxis": 10,
		"5 years, since 2010":         15,
		"erfahren":                    0,
		"seit 2099":                   0,
	}
	for text, want := range cases {
		assert.Equal(t, want, ParseExperience(text, now), text)
	}
}

func TestApplyFacetsCoverUnfilteredInput(t *testing.T) {
	a := profile("a", "online")
	a.Languages = pq.StringArray{"Deutsch"}
	b := profile("b", "praesenz")
	b.Languages = pq.StringArray{"Türkisch"}

	res := Apply([]models.TherapistProfile{a, b}, Filter{Formats: []string{"online"}}, now)

	assert.Equal(t, []string{"a"}, itemIDs(res))
	assert.Equal(t, []string{"Deutsch", "Türkisch"}, res.Facets.Languages)
}
