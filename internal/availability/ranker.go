// Package availability turns free-text availability notes from therapist
// profiles into a comparable urgency rank.
package availability

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Rank values, most urgent first.
const (
	RankImmediate = 0
	RankShortTerm = 1
	RankWeeks     = 2
	RankLater     = 3
	RankWaitlist  = 4
)

const (
	LabelAccepting    = "Nimmt neue Klient:innen auf"
	LabelNotAccepting = "Derzeit keine freien Plätze"
)

// Meta is the derived availability of a single profile.
type Meta struct {
	Label    string     `json:"label"`
	Rank     int        `json:"rank"`
	NextDate *time.Time `json:"nextDate,omitempty"`
}

var (
	waitlistPattern = regexp.MustCompile(`(?i)(warteliste|(lange|l(ä|ae)ngere|mehrmonatige)\s+wartezeit|wartezeit\s+(von\s+)?(ca\.?|etwa|mind(\.|estens))?\s*\d+\s*(-\s*\d+\s*)?monat(e|en)?|keine\s+(freien\s+)?(plätze|plaetze|kapazit(ä|ae)t(en)?|termine)|ausgebucht|voll\s+belegt|waitlist|no\s+capacity|fully\s+booked)`)
	soonPattern     = regexp.MustCompile(`(?i)((keine|kurze|ohne)\s+wartezeit|n(ä|ae)chste[nr]?\s+woche|in\s+(1|2|einer|zwei)(\s*(-|–|bis)\s*(2|zwei))?\s+wochen?|innerhalb\s+von\s+(1|2|einer|zwei)(\s*(-|–|bis)\s*(2|zwei))?\s+wochen?|kurzfristig|next\s+week|within\s+(1|2|one|two)(\s*-\s*(2|two))?\s+weeks?)`)
	urgentPattern   = regexp.MustCompile(`(?i)(heute|sofort|umgehend|innerhalb\s+(weniger|einiger|(von\s+)?[1-7])\s+tage|in\s+wenigen\s+tagen|akut|today|immediately|within\s+(a\s+few\s+)?days|acute)`)
	datePattern     = regexp.MustCompile(`(?i)(?:^|[^\d])(\d{1,2})\.?\s*(` + monthAlternation() + `)\b\.?(?:\s+(\d{4}))?`)

	boilerplatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)freie\s+therapiepl(ä|ae)tze\s*:?`),
		regexp.MustCompile(`(?i)verf(ü|ue)gbarkeit\s*:?`),
		regexp.MustCompile(`(?i)\(?\s*(laut|lt\.?)\s+(psychotherapeut(:?inn?en)?liste|register|psyonline)\s*\)?`),
		regexp.MustCompile(`(?i)\(?\s*angabe\s+(laut|lt\.?)\s+register\s*\)?`),
		regexp.MustCompile(`(?i)stand\s*:\s*\d{1,2}\.\d{1,2}\.\d{2,4}`),
	}
	whitespace = regexp.MustCompile(`\s+`)
)

// months maps every accepted spelling to its month, including Austrian variants.
var months = map[string]time.Month{
	"jänner":    time.January,
	"jaenner":   time.January,
	"januar":    time.January,
	"jän":       time.January,
	"jan":       time.January,
	"feber":     time.February,
	"februar":   time.February,
	"feb":       time.February,
	"märz":      time.March,
	"maerz":     time.March,
	"mär":       time.March,
	"april":     time.April,
	"apr":       time.April,
	"mai":       time.May,
	"juni":      time.June,
	"jun":       time.June,
	"juli":      time.July,
	"jul":       time.July,
	"august":    time.August,
	"aug":       time.August,
	"september": time.September,
	"sept":      time.September,
	"sep":       time.September,
	"oktober":   time.October,
	"okt":       time.October,
	"november":  time.November,
	"nov":       time.November,
	"dezember":  time.December,
	"dez":       time.December,
}

func monthAlternation() string {
	// Longest names first so "jänner" wins over "jän".
	names := []string{
		"september", "dezember", "november", "oktober", "jaenner", "februar", "august",
		"jänner", "januar", "feber", "maerz", "april", "märz", "juni", "juli", "sept",
		"jän", "jan", "feb", "mär", "apr", "mai", "jun", "jul", "aug", "sep", "okt", "nov", "dez",
	}
	return strings.Join(names, "|")
}

// Rank derives the availability meta for a note. now is the reference clock;
// equal inputs always produce equal results.
func Rank(note string, accepting bool, now time.Time) Meta {
	rank := RankLater
	if accepting {
		rank = RankShortTerm
	}

	text := strings.TrimSpace(note)
	forced := false

	if waitlistPattern.MatchString(text) {
		rank = RankWaitlist
		forced = true
	}
	if soonPattern.MatchString(text) {
		if rank > RankShortTerm {
			rank = RankShortTerm
		}
		forced = false
	}
	if urgentPattern.MatchString(text) {
		rank = RankImmediate
		forced = true
	}

	next := parseDate(text, now)
	if next != nil && !forced {
		days := daysUntil(now, *next)
		switch {
		case days <= 7:
			if rank > RankShortTerm {
				rank = RankShortTerm
			}
		case days <= 21:
			if rank < RankWeeks {
				rank = RankWeeks
			}
		default:
			if rank < RankLater {
				rank = RankLater
			}
		}
	}

	return Meta{Label: label(text, accepting), Rank: rank, NextDate: next}
}

func parseDate(text string, now time.Time) *time.Time {
	m := datePattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	day, err := strconv.Atoi(m[1])
	if err != nil || day < 1 || day > 31 {
		return nil
	}
	month, ok := months[strings.ToLower(m[2])]
	if !ok {
		return nil
	}

	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	year := now.Year()
	explicitYear := m[3] != ""
	if explicitYear {
		if y, err := strconv.Atoi(m[3]); err == nil {
			year = y
		}
	}

	date := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if date.Day() != day {
		return nil
	}
	if !explicitYear && date.Before(today) {
		date = date.AddDate(1, 0, 0)
	}
	return &date
}

func daysUntil(now, date time.Time) int {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return int(math.Round(date.Sub(today).Hours() / 24))
}

func label(text string, accepting bool) string {
	cleaned := text
	for _, p := range boilerplatePatterns {
		cleaned = p.ReplaceAllString(cleaned, " ")
	}
	cleaned = whitespace.ReplaceAllString(cleaned, " ")
	cleaned = strings.Trim(cleaned, " .,;:-–")
	if cleaned != "" {
		return cleaned
	}
	if accepting {
		return LabelAccepting
	}
	return LabelNotAccepting
}
