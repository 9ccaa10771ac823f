// Package identify recognises a gazette's jurisdiction and issue from its
// coverpage text.
package identify

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"gazettemachine/internal/gazette"
)

// Identifier recognises gazettes of a single jurisdiction.
type Identifier interface {
	Code() string
	// Identify fills in what it can extract from coverpage and reports
	// whether the record is now fully identified. When the coverpage does
	// not belong to this jurisdiction the record is left untouched.
	Identify(rec *gazette.Record, coverpage string) bool
}

// DefaultDatePattern matches "1 January 2018", "23rd March, 2018" and similar.
const DefaultDatePattern = `\b(\d{1,2})(?:st|nd|rd|th)?\s+(January|February|March|April|May|June|July|August|September|October|November|December),?\s+(\d{4})\b`

var defaultDateRE = regexp.MustCompile(DefaultDatePattern)

// PatternIdentifier matches a jurisdiction by literal markers and pulls the
// issue number and date out with regular expressions. NumberRE must have
// one capture group. DateRE must capture day, month and year.
type PatternIdentifier struct {
	Jurisdiction string
	Name         string
	Publication  string
	Markers      []string
	NumberRE     *regexp.Regexp
	DateRE       *regexp.Regexp
}

func (p *PatternIdentifier) Code() string { return p.Jurisdiction }

func (p *PatternIdentifier) Identify(rec *gazette.Record, coverpage string) bool {
	if rec == nil || !p.matches(coverpage) {
		return false
	}

	rec.Jurisdiction = p.Jurisdiction
	rec.JurisdictionName = p.Name
	rec.Publication = p.Publication
	rec.Number, rec.Date, rec.Year = "", "", ""

	if m := p.NumberRE.FindStringSubmatch(coverpage); len(m) > 1 {
		rec.Number = m[1]
	}
	if date, ok := p.date(coverpage); ok {
		rec.Date = date.Format(time.DateOnly)
		rec.Year = date.Format("2006")
	}

	rec.Identified = rec.Number != "" && rec.Date != ""
	return rec.Identified
}

func (p *PatternIdentifier) matches(coverpage string) bool {
	if len(p.Markers) == 0 {
		return false
	}
	for _, marker := range p.Markers {
		if !strings.Contains(coverpage, marker) {
			return false
		}
	}
	return true
}

func (p *PatternIdentifier) date(coverpage string) (time.Time, bool) {
	re := p.DateRE
	if re == nil {
		re = defaultDateRE
	}
	m := re.FindStringSubmatch(coverpage)
	if len(m) < 4 {
		return time.Time{}, false
	}
	parsed, err := time.Parse("2 January 2006", fmt.Sprintf("%s %s %s", m[1], m[2], m[3]))
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// Namibia returns the built-in matcher for the Government Gazette of the
// Republic of Namibia.
func Namibia() *PatternIdentifier {
	return &PatternIdentifier{
		Jurisdiction: "na",
		Name:         "Namibia",
		Publication:  "Government Gazette",
		Markers:      []string{"GOVERNMENT GAZETTE", "REPUBLIC OF NAMIBIA"},
		NumberRE:     regexp.MustCompile(`(?m)^No\.\s+(\d+)\s*$`),
		DateRE:       defaultDateRE,
	}
}

// Botswana returns the built-in matcher for the Botswana Government Gazette.
func Botswana() *PatternIdentifier {
	return &PatternIdentifier{
		Jurisdiction: "bw",
		Name:         "Botswana",
		Publication:  "Government Gazette",
		Markers:      []string{"GOVERNMENT GAZETTE", "BOTSWANA"},
		NumberRE:     regexp.MustCompile(`\bNo\.\s*(\d+)\b`),
		DateRE:       defaultDateRE,
	}
}
