package gazette

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrIncomplete reports an attempt to derive keys before identification
// finished. It indicates a programming error in the caller.
var ErrIncomplete = errors.New("gazette identity incomplete")

// Keys are the identifiers derived from a gazette's identity.
type Keys struct {
	Key         string
	Name        string
	FRBRWorkURI string
}

// BuildKeys derives the unique key, display name and work URI. It is a pure
// function of its inputs; jurisdictionName only affects the display name.
func BuildKeys(jurisdiction, jurisdictionName, publication, date, number string) (Keys, error) {
	jurisdiction = NormalizeJurisdiction(jurisdiction)
	publication = strings.TrimSpace(publication)
	date = strings.TrimSpace(date)
	number = strings.TrimSpace(number)

	var missing []string
	for _, field := range []struct{ name, value string }{
		{"jurisdiction", jurisdiction},
		{"publication", publication},
		{"date", date},
		{"number", number},
	} {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return Keys{}, fmt.Errorf("%w: missing %s", ErrIncomplete, strings.Join(missing, ", "))
	}

	slug := Slugify(publication)
	if slug == "" {
		return Keys{}, fmt.Errorf("%w: publication %q has no usable characters", ErrIncomplete, publication)
	}

	display := strings.TrimSpace(jurisdictionName)
	if display == "" {
		display = strings.ToUpper(jurisdiction)
	}

	return Keys{
		Key:         fmt.Sprintf("%s-%s-dated-%s-no-%s", jurisdiction, slug, date, number),
		Name:        fmt.Sprintf("%s %s dated %s number %s", display, publication, date, number),
		FRBRWorkURI: fmt.Sprintf("%s/%s/%s/%s", jurisdiction, slug, date, number),
	}, nil
}

// AssignKeys sets Key, Name and FRBRWorkURI on an identified record.
func (r *Record) AssignKeys() error {
	if !r.Identified {
		return fmt.Errorf("%w: record is not identified", ErrIncomplete)
	}
	keys, err := BuildKeys(r.Jurisdiction, r.JurisdictionName, r.Publication, r.Date, r.Number)
	if err != nil {
		return err
	}
	r.Key = keys.Key
	r.Name = keys.Name
	r.FRBRWorkURI = keys.FRBRWorkURI
	return nil
}

// Slugify lowercases value, folds accents and joins the remaining
// alphanumeric runs with single hyphens.
func Slugify(value string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, value)
	if err != nil {
		folded = value
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}
