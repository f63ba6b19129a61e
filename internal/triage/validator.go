package triage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// AssessmentType distinguishes the two accepted submission shapes.
type AssessmentType string

const (
	AssessmentScreening AssessmentType = "screening"
	AssessmentFull      AssessmentType = "full"
)

// Submission is the raw payload posted by the client. Claimed severities,
// risk level and emergency flag are accepted for compatibility but never
// trusted.
type Submission struct {
	AssessmentType AssessmentType `json:"assessmentType" validate:"required,oneof=screening full"`

	PHQ2Answers []int `json:"phq2Answers,omitempty" validate:"required_if=AssessmentType screening"`
	GAD2Answers []int `json:"gad2Answers,omitempty" validate:"required_if=AssessmentType screening"`
	PHQ2Score   *int  `json:"phq2Score,omitempty" validate:"required_if=AssessmentType screening"`
	GAD2Score   *int  `json:"gad2Score,omitempty" validate:"required_if=AssessmentType screening"`

	PHQ9Answers  []int  `json:"phq9Answers,omitempty" validate:"required_if=AssessmentType full"`
	GAD7Answers  []int  `json:"gad7Answers,omitempty" validate:"required_if=AssessmentType full"`
	PHQ9Score    *int   `json:"phq9Score,omitempty" validate:"required_if=AssessmentType full"`
	GAD7Score    *int   `json:"gad7Score,omitempty" validate:"required_if=AssessmentType full"`
	PHQ9Severity string `json:"phq9Severity,omitempty"`
	GAD7Severity string `json:"gad7Severity,omitempty"`

	PHQ9Item9Score      *int   `json:"phq9Item9Score,omitempty"`
	HasSuicidalIdeation bool   `json:"hasSuicidalIdeation"`
	RiskLevel           string `json:"riskLevel,omitempty"`
	RequiresEmergency   bool   `json:"requiresEmergency"`

	SupportPreferences      []string `json:"supportPreferences" validate:"max=10,dive,max=64"`
	AvailabilityPreferences []string `json:"availabilityPreferences" validate:"max=10,dive,max=64"`
}

// ErrorKind classifies a rejected submission.
type ErrorKind string

const (
	KindMalformedPayload ErrorKind = "MALFORMED_PAYLOAD"
	KindOutOfRangeAnswer ErrorKind = "OUT_OF_RANGE_ANSWER"
	KindWrongAnswerCount ErrorKind = "WRONG_ANSWER_COUNT"
	KindScoreMismatch    ErrorKind = "SCORE_MISMATCH"
)

// ScoreMismatch reports a claimed total that disagrees with its answers.
type ScoreMismatch struct {
	Instrument Instrument `json:"instrument"`
	Field      string     `json:"field"`
	Calculated int        `json:"calculated"`
	Provided   int        `json:"provided"`
}

// ValidationError is returned for every rejected submission.
type ValidationError struct {
	Kind       ErrorKind       `json:"kind"`
	Field      string          `json:"field,omitempty"`
	Message    string          `json:"message"`
	Mismatches []ScoreMismatch `json:"mismatches,omitempty"`
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Score is one recomputed instrument total.
type Score struct {
	Instrument Instrument `json:"instrument"`
	Total      int        `json:"total"`
	Severity   Severity   `json:"severity,omitempty"`
}

// ScreeningWarning flags a positive screening that was not expanded.
type ScreeningWarning struct {
	Instrument Instrument `json:"instrument"`
	Total      int        `json:"total"`
}

// Result is an accepted submission with server-side scores.
type Result struct {
	AssessmentType AssessmentType     `json:"assessmentType"`
	Scores         []Score            `json:"scores"`
	Item9          int                `json:"phq9Item9Score"`
	Classification Classification     `json:"classification"`
	Warnings       []ScreeningWarning `json:"warnings,omitempty"`
}

// Total returns the recomputed total for an instrument, or 0 when absent.
func (r *Result) Total(instrument Instrument) int {
	for _, s := range r.Scores {
		if s.Instrument == instrument {
			return s.Total
		}
	}
	return 0
}

// Severity returns the recomputed band for an instrument.
func (r *Result) Severity(instrument Instrument) Severity {
	for _, s := range r.Scores {
		if s.Instrument == instrument {
			return s.Severity
		}
	}
	return ""
}

// Validator checks submissions and recomputes every derived value.
type Validator struct {
	validate *validator.Validate
}

// NewValidator constructs a Validator.
func NewValidator(validate *validator.Validate) *Validator {
	if validate == nil {
		validate = validator.New()
	}
	return &Validator{validate: validate}
}

type answerSet struct {
	instrument Instrument
	field      string
	answers    []int
	claimed    *int
}

// Validate accepts or rejects a submission. Nothing about the submission is
// trusted beyond its raw answers.
func (v *Validator) Validate(sub Submission) (*Result, error) {
	if err := v.validate.Struct(sub); err != nil {
		return nil, malformed(err)
	}

	var sets []answerSet
	switch sub.AssessmentType {
	case AssessmentScreening:
		sets = []answerSet{
			{instrument: PHQ2, field: "phq2", answers: sub.PHQ2Answers, claimed: sub.PHQ2Score},
			{instrument: GAD2, field: "gad2", answers: sub.GAD2Answers, claimed: sub.GAD2Score},
		}
	case AssessmentFull:
		sets = []answerSet{
			{instrument: PHQ9, field: "phq9", answers: sub.PHQ9Answers, claimed: sub.PHQ9Score},
			{instrument: GAD7, field: "gad7", answers: sub.GAD7Answers, claimed: sub.GAD7Score},
		}
	}

	for _, set := range sets {
		if want := ItemCount(set.instrument); len(set.answers) != want {
			return nil, &ValidationError{
				Kind:    KindWrongAnswerCount,
				Field:   set.field + "Answers",
				Message: fmt.Sprintf("expected %d answers, got %d", want, len(set.answers)),
			}
		}
		for i, a := range set.answers {
			if a < MinAnswer || a > MaxAnswer {
				return nil, &ValidationError{
					Kind:    KindOutOfRangeAnswer,
					Field:   fmt.Sprintf("%sAnswers[%d]", set.field, i),
					Message: fmt.Sprintf("answer %d outside [%d,%d]", a, MinAnswer, MaxAnswer),
				}
			}
		}
	}

	if sub.PHQ9Item9Score != nil {
		if item9 := *sub.PHQ9Item9Score; item9 < MinAnswer || item9 > MaxAnswer {
			return nil, &ValidationError{
				Kind:    KindOutOfRangeAnswer,
				Field:   "phq9Item9Score",
				Message: fmt.Sprintf("answer %d outside [%d,%d]", item9, MinAnswer, MaxAnswer),
			}
		}
	}

	// Zero-padded partial expansions sum to the real answers only, so the
	// same comparison accepts them.
	var mismatches []ScoreMismatch
	scores := make([]Score, 0, len(sets))
	for _, set := range sets {
		total := Sum(set.answers)
		if *set.claimed != total {
			mismatches = append(mismatches, ScoreMismatch{
				Instrument: set.instrument,
				Field:      set.field + "Score",
				Calculated: total,
				Provided:   *set.claimed,
			})
		}
		severity, _ := SeverityFor(set.instrument, total)
		scores = append(scores, Score{Instrument: set.instrument, Total: total, Severity: severity})
	}
	if len(mismatches) > 0 {
		return nil, &ValidationError{
			Kind:       KindScoreMismatch,
			Field:      mismatches[0].Field,
			Message:    mismatchMessage(mismatches),
			Mismatches: mismatches,
		}
	}

	result := &Result{AssessmentType: sub.AssessmentType, Scores: scores}

	switch sub.AssessmentType {
	case AssessmentScreening:
		for _, s := range scores {
			if ScreeningPositive(s.Total) {
				result.Warnings = append(result.Warnings, ScreeningWarning{Instrument: s.Instrument, Total: s.Total})
			}
		}
		result.Classification = Classify(0, 0, 0, sub.HasSuicidalIdeation)
	case AssessmentFull:
		item9 := sub.PHQ9Answers[8]
		if sub.PHQ9Item9Score != nil && *sub.PHQ9Item9Score > item9 {
			item9 = *sub.PHQ9Item9Score
		}
		result.Item9 = item9
		result.Classification = Classify(result.Total(PHQ9), result.Total(GAD7), item9, sub.HasSuicidalIdeation)
	}

	return result, nil
}

func malformed(err error) *ValidationError {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{
			Kind:    KindMalformedPayload,
			Field:   jsonFieldName(fe.StructField()),
			Message: fmt.Sprintf("failed %q constraint", fe.Tag()),
		}
	}
	return &ValidationError{Kind: KindMalformedPayload, Message: err.Error()}
}

func jsonFieldName(structField string) string {
	if structField == "" {
		return ""
	}
	switch {
	case strings.HasPrefix(structField, "PHQ"), strings.HasPrefix(structField, "GAD"):
		return strings.ToLower(structField[:4]) + structField[4:]
	default:
		return strings.ToLower(structField[:1]) + structField[1:]
	}
}

func mismatchMessage(mismatches []ScoreMismatch) string {
	parts := make([]string, 0, len(mismatches))
	for _, m := range mismatches {
		parts = append(parts, fmt.Sprintf("%s calculated %d, provided %d", m.Instrument, m.Calculated, m.Provided))
	}
	return strings.Join(parts, "; ")
}
