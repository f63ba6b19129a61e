package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var vienna = time.FixedZone("CET", 3600)

func at(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 10, 30, 0, 0, vienna)
}

func TestRankBase(t *testing.T) {
	now := at(2025, time.March, 1)

	assert.Equal(t, Meta{Label: LabelAccepting, Rank: RankShortTerm}, Rank("", true, now))
	assert.Equal(t, Meta{Label: LabelNotAccepting, Rank: RankLater}, Rank("   ", false, now))
}

func TestRankPatternClasses(t *testing.T) {
	now := at(2025, time.March, 1)
	cases := []struct {
		note      string
		accepting bool
		want      int
	}{
		{"Derzeit Warteliste", true, RankWaitlist},
		{"Keine freien Plätze", true, RankWaitlist},
		{"Termine nächste Woche möglich", false, RankShortTerm},
		{"Freie Plätze in 1-2 Wochen", false, RankShortTerm},
		{"Termine ab sofort", false, RankImmediate},
		{"Akuttermine innerhalb weniger Tage", false, RankImmediate},
		{"Warteliste, Akutplätze heute verfügbar", true, RankImmediate},
		{"Warteliste, aber nächste Woche ein Platz frei", true, RankShortTerm},
		{"Keine Wartezeit", true, RankShortTerm},
		{"Kurze Wartezeit", false, RankShortTerm},
		{"Derzeit keine Wartezeit, freie Plätze vorhanden", true, RankShortTerm},
		{"Aufnahme ohne Wartezeit", false, RankShortTerm},
		{"Lange Wartezeit", true, RankWaitlist},
		{"Wartezeit ca. 3 Monate", true, RankWaitlist},
		{"Wartezeit von 4-6 Monaten", true, RankWaitlist},
	}
	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			assert.Equal(t, tc.want, Rank(tc.note, tc.accepting, now).Rank)
		})
	}
}

func TestRankConcreteDates(t *testing.T) {
	now := at(2025, time.March, 1)

	near := Rank("Freie Plätze ab 5. März", false, now)
	require.NotNil(t, near.NextDate)
	assert.Equal(t, time.March, near.NextDate.Month())
	assert.Equal(t, 5, near.NextDate.Day())
	assert.Equal(t, RankShortTerm, near.Rank)

	weeks := Rank("Ab 15. März", true, now)
	assert.Equal(t, RankWeeks, weeks.Rank)

	later := Rank("Ab 1. Mai 2025", true, now)
	assert.Equal(t, RankLater, later.Rank)
}

func TestRankDateNeverOverridesForcedClasses(t *testing.T) {
	now := at(2025, time.March, 1)

	assert.Equal(t, RankImmediate, Rank("Akut: sofort, regulär ab 20. April", true, now).Rank)
	assert.Equal(t, RankWaitlist, Rank("Warteliste bis 3. März", true, now).Rank)
}

func TestRankAustrianMonthSpellings(t *testing.T) {
	now := at(2025, time.December, 20)
	for _, note := range []string{"ab 8. Jänner", "ab 8. Jaenner", "ab 8. Januar"} {
		meta := Rank(note, true, now)
		require.NotNil(t, meta.NextDate, note)
		assert.Equal(t, time.January, meta.NextDate.Month(), note)
		assert.Equal(t, 2026, meta.NextDate.Year(), note)
		assert.Equal(t, RankWeeks, meta.Rank, note)
	}

	feb := Rank("ab 2. Feber", true, now)
	require.NotNil(t, feb.NextDate)
	assert.Equal(t, time.February, feb.NextDate.Month())
}

func TestRankIgnoresInvalidDates(t *testing.T) {
	meta := Rank("ab 31. Feber", true, at(2025, time.January, 1))
	assert.Nil(t, meta.NextDate)
	assert.Equal(t, RankShortTerm, meta.Rank)
}

func TestRankDateNeedsStandaloneDay(t *testing.T) {
	now := at(2025, time.March, 1)

	meta := Rank("Jahr 2025 März frei", true, now)
	assert.Nil(t, meta.NextDate)
	assert.Equal(t, RankShortTerm, meta.Rank)

	meta = Rank("Termine:12. März", true, now)
	require.NotNil(t, meta.NextDate)
	assert.Equal(t, 12, meta.NextDate.Day())
}

func TestRankIsIdempotent(t *testing.T) {
	now := at(2025, time.June, 10)
	note := "Freie Therapieplätze: ab 1. Juli (laut Register)"

	first := Rank(note, true, now)
	second := Rank(note, true, now)
	assert.Equal(t, first, second)
}

func TestLabelStripsBoilerplate(t *testing.T) {
	meta := Rank("Freie Therapieplätze: ab 1. Juli (laut Register)", true, at(2025, time.June, 10))
	assert.Equal(t, "ab 1. Juli", meta.Label)

	meta = Rank("Verfügbarkeit: ", false, at(2025, time.June, 10))
	assert.Equal(t, LabelNotAccepting, meta.Label)
}
