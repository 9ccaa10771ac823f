package ingest

import (
	"context"

	"gazettemachine/internal/gazette"
	"gazettemachine/internal/jobs"
	"gazettemachine/internal/pipeline"
)

// Runner is the subset of pipeline.Controller used for local dispatch.
type Runner interface {
	IdentifyAndArchive(ctx context.Context, rec *gazette.Record) (pipeline.Outcome, error)
}

// RunLocally dispatches by running the pipeline in-process and reports the
// final state.
func RunLocally(r Runner) Dispatcher {
	return DispatchFunc(func(ctx context.Context, job jobs.Job) (string, error) {
		rec, err := job.Record()
		if err != nil {
			return "", err
		}
		outcome, err := r.IdentifyAndArchive(ctx, rec)
		if err != nil {
			return "", err
		}
		return string(outcome.Final), nil
	})
}
