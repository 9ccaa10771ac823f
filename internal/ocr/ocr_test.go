package ocr_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gazettemachine/internal/ocr"
	"gazettemachine/internal/services"
	"gazettemachine/internal/testsupport"
)

func writeOutput(call testsupport.Call) ([]byte, []byte, error) {
	if out := call.ArgValue("-sOutputFile="); out != "" {
		return nil, nil, os.WriteFile(out, []byte("%PDF-1.4 ocr"), 0o644)
	}
	return nil, nil, nil
}

// requireNoScratch fails when any ocr-* directory is left in workDir.
func requireNoScratch(t *testing.T, workDir string) {
	t.Helper()
	left, err := filepath.Glob(filepath.Join(workDir, "ocr-*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("expected no ocr scratch dirs in %s, found %v", workDir, left)
	}
}

func TestRunExecutesStagesInOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := &testsupport.FakeRunner{Handle: writeOutput}
	engine := ocr.New(cfg, runner)

	dst := filepath.Join(t.TempDir(), "out.pdf")
	if err := engine.Run(context.Background(), "/data/in.pdf", dst); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	calls := runner.Calls()
	if len(calls) != 3 {
		t.Fatalf("expected three stages, got %d", len(calls))
	}
	raster, recognize, recompress := calls[0], calls[1], calls[2]

	images := raster.ArgValue("-o")
	if raster.Name != "gs" || !strings.HasSuffix(images, "images.tiff") {
		t.Fatalf("unexpected rasterize call %q", raster.Line())
	}
	for _, want := range []string{"-sDEVICE=tiff32nc", "-dUseBigTIFF=true", "-r300"} {
		if !strings.Contains(raster.Line(), want) {
			t.Fatalf("rasterize call %q missing %s", raster.Line(), want)
		}
	}
	if raster.LastArg() != "/data/in.pdf" {
		t.Fatalf("rasterize should read the source, got %q", raster.Line())
	}

	if recognize.Name != "tesseract" || recognize.Args[0] != images || recognize.LastArg() != "pdf" {
		t.Fatalf("unexpected recognize call %q", recognize.Line())
	}

	if recompress.Name != "gs" || recompress.ArgValue("-sOutputFile=") != dst {
		t.Fatalf("unexpected recompress call %q", recompress.Line())
	}
	if recompress.ArgValue("-dPDFSETTINGS=") != "/ebook" || recompress.ArgValue("-dCompatibilityLevel=") != "1.4" {
		t.Fatalf("recompress call %q has wrong settings", recompress.Line())
	}
	if recompress.LastArg() != recognize.Args[1]+".pdf" {
		t.Fatalf("recompress should read tesseract output, got %q", recompress.Line())
	}

	if _, err := os.Stat(filepath.Dir(images)); !os.IsNotExist(err) {
		t.Fatalf("expected scratch dir removed, stat err=%v", err)
	}
	requireNoScratch(t, cfg.Paths.WorkDir)
}

func TestRunStopsAtFailingStage(t *testing.T) {
	stages := []string{"rasterize", "recognize", "recompress"}
	for failAt, stage := range stages {
		t.Run(stage, func(t *testing.T) {
			cfg := testsupport.NewConfig(t)
			var scratch string
			n := 0
			runner := &testsupport.FakeRunner{Handle: func(call testsupport.Call) ([]byte, []byte, error) {
				if images := call.ArgValue("-o"); images != "" {
					scratch = filepath.Dir(images)
				}
				defer func() { n++ }()
				if n == failAt {
					return nil, []byte("boom\n"), errors.New("exit status 1")
				}
				return writeOutput(call)
			}}
			engine := ocr.New(cfg, runner)

			err := engine.Run(context.Background(), "/data/in.pdf", filepath.Join(t.TempDir(), "out.pdf"))
			if !errors.Is(err, services.ErrExternalTool) {
				t.Fatalf("expected ErrExternalTool, got %v", err)
			}
			if got := services.Details(err).Operation; got != stage {
				t.Fatalf("expected failing operation %q, got %q", stage, got)
			}
			if len(runner.Calls()) != failAt+1 {
				t.Fatalf("expected %d calls, got %d", failAt+1, len(runner.Calls()))
			}
			if _, err := os.Stat(scratch); !os.IsNotExist(err) {
				t.Fatalf("expected scratch dir removed after failure, stat err=%v", err)
			}
			requireNoScratch(t, cfg.Paths.WorkDir)
		})
	}
}

func TestRunDetectsMissingOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine := ocr.New(cfg, &testsupport.FakeRunner{})
	err := engine.Run(context.Background(), "/data/in.pdf", filepath.Join(t.TempDir(), "out.pdf"))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	requireNoScratch(t, cfg.Paths.WorkDir)
}
