// Package stageexec runs one pipeline stage with uniform logging, timing
// and error attribution.
package stageexec

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gazettemachine/internal/logging"
	"gazettemachine/internal/services"
)

// Observer receives the duration and result of every stage.
type Observer interface {
	ObserveStage(stage string, duration time.Duration, err error)
}

// Options controls a single stage execution.
type Options struct {
	Logger   *slog.Logger
	Observer Observer
	Stage    string
	// Attrs are added to the start and completion log lines.
	Attrs []logging.Attr
}

// Func is the body of a stage. It receives a context and logger already
// annotated with the stage name.
type Func func(ctx context.Context, logger *slog.Logger) error

// Run executes fn as the named stage. Errors that do not already carry a
// stage are wrapped so callers can tell where the pipeline stopped.
func Run(ctx context.Context, opts Options, fn Func) error {
	stageCtx := logging.WithStage(ctx, opts.Stage)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)

	stageLogger.Debug("stage started",
		logging.Args(append([]logging.Attr{logging.String(logging.FieldEventType, "stage_start")}, opts.Attrs...)...)...)

	start := time.Now()
	err := fn(stageCtx, stageLogger)
	elapsed := time.Since(start)
	if opts.Observer != nil {
		opts.Observer.ObserveStage(opts.Stage, elapsed, err)
	}

	if err != nil {
		err = attribute(opts.Stage, err)
		details := services.Details(err)
		message := strings.TrimSpace(details.Message)
		if message == "" {
			message = strings.TrimSpace(err.Error())
		}
		logging.ErrorWithContext(stageLogger, "stage failed", "stage_failure",
			logging.String("error_kind", string(details.Kind)),
			logging.String("error_message", message),
			logging.Duration("duration", elapsed),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hint(details.Kind)),
		)
		return err
	}

	stageLogger.Info("stage completed",
		logging.Args(append([]logging.Attr{
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Duration("duration", elapsed),
		}, opts.Attrs...)...)...)
	return nil
}

func attribute(stage string, err error) error {
	var svcErr *services.Error
	if errors.As(err, &svcErr) && svcErr.Stage != "" {
		return err
	}
	marker := services.ErrTransient
	if errors.Is(err, context.DeadlineExceeded) {
		marker = services.ErrTimeout
	}
	return services.Wrap(marker, stage, "run", "", err)
}

func hint(kind services.Kind) string {
	switch kind {
	case services.KindExternalTool:
		return "check that pdftotext, gs and tesseract are installed and the input is a valid PDF"
	case services.KindConfiguration:
		return "check the gazettes config file"
	case services.KindValidation:
		return "check the document reference"
	case services.KindNotFound:
		return "check that the document exists"
	case services.KindTimeout:
		return "retry later or raise the configured timeout"
	default:
		return "retry the document; its staged input was kept"
	}
}
