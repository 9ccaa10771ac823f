package textextract

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"

	"gazettemachine/internal/services"
)

// Native reads the first page's text layer in-process.
type Native struct {
	Threshold Threshold
}

func (n *Native) Coverpage(ctx context.Context, pdfPath string) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	content, err := os.ReadFile(pdfPath)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "extract", "read pdf", pdfPath, err)
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = services.Wrap(services.ErrExternalTool, "extract", "native", "parse pdf", fmt.Errorf("%v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "extract", "native", "open pdf", err)
	}
	if reader.NumPage() < 1 {
		return "", ErrRequiresOCR
	}
	page := reader.Page(1)
	if page.V.IsNull() {
		return "", ErrRequiresOCR
	}
	raw, err := page.GetPlainText(nil)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "extract", "native", "read page 1 text", err)
	}
	return n.Threshold.check(raw)
}
