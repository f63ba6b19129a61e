package triage

// RiskLevel is the stored triage risk tier.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Elevated reports whether the level is MEDIUM or HIGH.
func (r RiskLevel) Elevated() bool {
	return r == RiskMedium || r == RiskHigh
}

// Classification is the outcome of Classify.
type Classification struct {
	RiskLevel         RiskLevel `json:"riskLevel"`
	RequiresEmergency bool      `json:"requiresEmergency"`
}

// Classify derives the risk level from full-assessment totals. Any non-zero
// answer on PHQ-9 item 9, or an explicit ideation flag, requires emergency
// escalation regardless of the totals.
func Classify(phq9Total, gad7Total, phq9Item9 int, suicidalIdeation bool) Classification {
	level := RiskLow
	switch {
	case phq9Total >= 20 || gad7Total >= 15:
		level = RiskHigh
	case phq9Total >= 10 || gad7Total >= 10:
		level = RiskMedium
	}

	return Classification{
		RiskLevel:         level,
		RequiresEmergency: phq9Item9 > 0 || suicidalIdeation,
	}
}
