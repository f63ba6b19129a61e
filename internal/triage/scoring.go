// Package triage scores PHQ/GAD questionnaires, classifies risk and validates
// client submissions. Everything here is pure and safe for concurrent use.
package triage

// Instrument identifies a standardised questionnaire.
type Instrument string

const (
	PHQ9 Instrument = "PHQ9"
	GAD7 Instrument = "GAD7"
	PHQ2 Instrument = "PHQ2"
	GAD2 Instrument = "GAD2"
)

// Severity is the clinical band derived from a total score.
type Severity string

const (
	SeverityMinimal          Severity = "minimal"
	SeverityMild             Severity = "mild"
	SeverityModerate         Severity = "moderate"
	SeverityModeratelySevere Severity = "moderately_severe"
	SeveritySevere           Severity = "severe"
)

const (
	// MinAnswer and MaxAnswer bound every item on all supported instruments.
	MinAnswer = 0
	MaxAnswer = 3

	// ScreeningThreshold is the PHQ-2/GAD-2 sum at which a full assessment is indicated.
	ScreeningThreshold = 3
)

// ItemCount returns the exact number of answers an instrument expects.
func ItemCount(instrument Instrument) int {
	switch instrument {
	case PHQ9:
		return 9
	case GAD7:
		return 7
	case PHQ2, GAD2:
		return 2
	default:
		return 0
	}
}

// Sum totals an answer array.
func Sum(answers []int) int {
	total := 0
	for _, a := range answers {
		total += a
	}
	return total
}

// SeverityFor maps a total onto the instrument's band. Screening instruments
// have no bands and return false.
func SeverityFor(instrument Instrument, total int) (Severity, bool) {
	switch instrument {
	case PHQ9:
		switch {
		case total >= 20:
			return SeveritySevere, true
		case total >= 15:
			return SeverityModeratelySevere, true
		case total >= 10:
			return SeverityModerate, true
		case total >= 5:
			return SeverityMild, true
		default:
			return SeverityMinimal, true
		}
	case GAD7:
		// GAD-7 has no moderately severe band.
		switch {
		case total >= 15:
			return SeveritySevere, true
		case total >= 10:
			return SeverityModerate, true
		case total >= 5:
			return SeverityMild, true
		default:
			return SeverityMinimal, true
		}
	default:
		return "", false
	}
}

// ScreeningPositive reports whether a PHQ-2/GAD-2 sum warrants a full assessment.
func ScreeningPositive(total int) bool {
	return total >= ScreeningThreshold
}
