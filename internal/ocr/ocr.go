// Package ocr rebuilds a scanned PDF with a recognised text layer.
package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gazettemachine/internal/config"
	"gazettemachine/internal/services"
)

// Engine runs the rasterize, recognize and recompress toolchain.
type Engine struct {
	Ghostscript string
	Tesseract   string
	DPI         int
	PDFSettings string
	WorkDir     string
	Runner      services.Runner
}

// New builds an engine from the [ocr] config section.
func New(cfg *config.Config, runner services.Runner) *Engine {
	return &Engine{
		Ghostscript: cfg.OCR.Ghostscript,
		Tesseract:   cfg.OCR.Tesseract,
		DPI:         cfg.OCR.DPI,
		PDFSettings: cfg.OCR.PDFSettings,
		WorkDir:     cfg.Paths.WorkDir,
		Runner:      runner,
	}
}

type step struct {
	operation string
	binary    string
	args      []string
}

// Run writes an OCRed copy of src to dst. Intermediate files live in a
// scoped temp dir that is removed however Run returns.
func (e *Engine) Run(ctx context.Context, src, dst string) error {
	if e == nil || e.Runner == nil {
		return services.Wrap(services.ErrConfiguration, "ocr", "run", "ocr engine not configured", nil)
	}
	dir, err := os.MkdirTemp(e.WorkDir, "ocr-*")
	if err != nil {
		return services.Wrap(services.ErrTransient, "ocr", "scratch dir", "create scratch dir", err)
	}
	defer os.RemoveAll(dir)

	for _, s := range e.steps(src, dst, dir) {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, stderr, err := e.Runner.Run(ctx, s.binary, s.args...)
		if err != nil {
			msg := fmt.Sprintf("%s exited with error", s.binary)
			if summary := services.StderrSummary(stderr); summary != "" {
				msg += ": " + summary
			}
			return services.Wrap(services.ErrExternalTool, "ocr", s.operation, msg, err)
		}
	}

	if _, err := os.Stat(dst); err != nil {
		return services.Wrap(services.ErrExternalTool, "ocr", "recompress", "no output produced", err)
	}
	return nil
}

func (e *Engine) steps(src, dst, dir string) []step {
	gs := defaultString(e.Ghostscript, "gs")
	tesseract := defaultString(e.Tesseract, "tesseract")
	dpi := e.DPI
	if dpi <= 0 {
		dpi = 300
	}
	settings := defaultString(e.PDFSettings, "/ebook")

	images := filepath.Join(dir, "images.tiff")
	base := filepath.Join(dir, "ocr-output")

	return []step{
		{
			operation: "rasterize",
			binary:    gs,
			args:      []string{"-o", images, "-sDEVICE=tiff32nc", "-dUseBigTIFF=true", "-r" + strconv.Itoa(dpi), src},
		},
		{
			operation: "recognize",
			binary:    tesseract,
			args:      []string{images, base, "pdf"},
		},
		{
			operation: "recompress",
			binary:    gs,
			args: []string{
				"-dNOPAUSE", "-dBATCH", "-sDEVICE=pdfwrite", "-dCompatibilityLevel=1.4",
				"-dPDFSETTINGS=" + settings, "-sOutputFile=" + dst, base + ".pdf",
			},
		},
	}
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
