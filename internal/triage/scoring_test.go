package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityForPHQ9Boundaries(t *testing.T) {
	cases := []struct {
		total int
		want  Severity
	}{
		{0, SeverityMinimal},
		{4, SeverityMinimal},
		{5, SeverityMild},
		{9, SeverityMild},
		{10, SeverityModerate},
		{14, SeverityModerate},
		{15, SeverityModeratelySevere},
		{19, SeverityModeratelySevere},
		{20, SeveritySevere},
		{27, SeveritySevere},
	}
	for _, tc := range cases {
		got, ok := SeverityFor(PHQ9, tc.total)
		assert.True(t, ok)
		assert.Equal(t, tc.want, got, "total %d", tc.total)
	}
}

func TestSeverityForGAD7HasNoModeratelySevereBand(t *testing.T) {
	cases := map[int]Severity{
		4:  SeverityMinimal,
		5:  SeverityMild,
		9:  SeverityMild,
		10: SeverityModerate,
		14: SeverityModerate,
		15: SeveritySevere,
		21: SeveritySevere,
	}
	for total, want := range cases {
		got, ok := SeverityFor(GAD7, total)
		assert.True(t, ok)
		assert.Equal(t, want, got, "total %d", total)
	}
}

func TestSeverityForScreeningInstruments(t *testing.T) {
	_, ok := SeverityFor(PHQ2, 6)
	assert.False(t, ok)
	_, ok = SeverityFor(GAD2, 0)
	assert.False(t, ok)

	assert.False(t, ScreeningPositive(2))
	assert.True(t, ScreeningPositive(3))
}

func TestItemCount(t *testing.T) {
	assert.Equal(t, 9, ItemCount(PHQ9))
	assert.Equal(t, 7, ItemCount(GAD7))
	assert.Equal(t, 2, ItemCount(PHQ2))
	assert.Equal(t, 2, ItemCount(GAD2))
	assert.Equal(t, 0, ItemCount("BDI"))
}
