// Package deps reports whether the external tools and directories the
// pipeline needs are usable.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"gazettemachine/internal/config"
)

// Requirement defines an external binary the pipeline shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command,omitempty"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// Requirements lists the binaries cfg will invoke. pdftotext is optional
// when the native extractor is selected.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "pdftotext",
			Command:     cfg.Extraction.Pdftotext,
			Description: "Extracts coverpage text",
			Optional:    cfg.Extraction.Provider == config.ExtractNative,
		},
		{
			Name:        "Ghostscript",
			Command:     cfg.OCR.Ghostscript,
			Description: "Rasterizes and recompresses scans for OCR",
		},
		{
			Name:        "Tesseract",
			Command:     cfg.OCR.Tesseract,
			Description: "Recognizes text on scanned coverpages",
		},
	}
}

// Check evaluates every binary requirement plus work_dir access.
func Check(cfg *config.Config) []Status {
	results := CheckBinaries(Requirements(cfg))
	return append(results, CheckDirectory("work_dir", cfg.Paths.WorkDir))
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Detail = resolved
		results = append(results, status)
	}
	return results
}

// CheckDirectory verifies that path is a directory the process can read,
// write and traverse.
func CheckDirectory(name, path string) Status {
	status := Status{Name: name, Command: path, Description: "Scoped temp directories"}
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		status.Detail = "does not exist"
		return status
	case err != nil:
		status.Detail = fmt.Sprintf("stat: %v", err)
		return status
	case !info.IsDir():
		status.Detail = "is not a directory"
		return status
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		status.Detail = fmt.Sprintf("insufficient permissions: %v", err)
		return status
	}
	status.Available = true
	status.Detail = "read/write ok"
	return status
}
