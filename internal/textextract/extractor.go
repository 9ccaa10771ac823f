package textextract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"gazettemachine/internal/config"
	"gazettemachine/internal/services"
)

// ErrRequiresOCR signals that the coverpage has no usable text layer. It is
// a control signal for the pipeline, not a failure.
var ErrRequiresOCR = errors.New("coverpage requires ocr")

// Extractor returns the text of a PDF's first page.
type Extractor interface {
	Coverpage(ctx context.Context, pdfPath string) (string, error)
}

// Threshold decides whether extracted text is good enough to identify.
type Threshold struct {
	MinChars int
	Phrase   string
}

// Usable reports whether text has at least MinChars non-whitespace runes and
// contains Phrase, ignoring case.
func (t Threshold) Usable(text string) bool {
	count := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			count++
		}
	}
	if count < t.MinChars {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(t.Phrase))
}

func (t Threshold) check(text string) (string, error) {
	if !t.Usable(text) {
		return "", ErrRequiresOCR
	}
	return text, nil
}

// New selects the extraction provider named by extraction.provider.
func New(cfg *config.Config, runner services.Runner) (Extractor, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "extract", "new", "config is required", nil)
	}
	threshold := Threshold{MinChars: cfg.Extraction.MinChars, Phrase: cfg.Extraction.RequiredPhrase}
	switch cfg.Extraction.Provider {
	case config.ExtractPdftotext, "":
		if runner == nil {
			return nil, services.Wrap(services.ErrConfiguration, "extract", "new", "pdftotext provider requires a command runner", nil)
		}
		return &Pdftotext{
			Binary:    cfg.Extraction.Pdftotext,
			WorkDir:   cfg.Paths.WorkDir,
			Runner:    runner,
			Threshold: threshold,
		}, nil
	case config.ExtractNative:
		return &Native{Threshold: threshold}, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "extract", "new", fmt.Sprintf("unsupported provider %q", cfg.Extraction.Provider), nil)
	}
}
