package textextract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gazettemachine/internal/services"
)

// Pdftotext extracts page 1 with poppler's pdftotext.
type Pdftotext struct {
	Binary    string
	WorkDir   string
	Runner    services.Runner
	Threshold Threshold
}

// Coverpage runs `pdftotext -f 1 -l 1 <pdf> <out>` in a scoped temp dir.
func (p *Pdftotext) Coverpage(ctx context.Context, pdfPath string) (string, error) {
	if p == nil || p.Runner == nil {
		return "", services.Wrap(services.ErrConfiguration, "extract", "pdftotext", "extractor not configured", nil)
	}
	binary := p.Binary
	if binary == "" {
		binary = "pdftotext"
	}

	dir, err := os.MkdirTemp(p.WorkDir, "extract-*")
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "extract", "scratch dir", "create scratch dir", err)
	}
	defer os.RemoveAll(dir)

	out := filepath.Join(dir, "coverpage.txt")
	_, stderr, err := p.Runner.Run(ctx, binary, "-f", "1", "-l", "1", pdfPath, out)
	if err != nil {
		msg := fmt.Sprintf("%s failed on %s", binary, filepath.Base(pdfPath))
		if summary := services.StderrSummary(stderr); summary != "" {
			msg += ": " + summary
		}
		return "", services.Wrap(services.ErrExternalTool, "extract", "pdftotext", msg, err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "extract", "read output", "pdftotext produced no output", err)
	}
	return p.Threshold.check(string(data))
}
