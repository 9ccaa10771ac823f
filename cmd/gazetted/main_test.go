package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"gazettemachine/internal/gazette"
	"gazettemachine/internal/jobs"
	"gazettemachine/internal/logging"
	"gazettemachine/internal/metrics"
	"gazettemachine/internal/pipeline"
	"gazettemachine/internal/services"
)

type fakeIdentifier struct {
	got *gazette.Record
	err error
}

func (f *fakeIdentifier) IdentifyAndArchive(ctx context.Context, rec *gazette.Record) (pipeline.Outcome, error) {
	f.got = rec
	if f.err != nil {
		return pipeline.Outcome{Final: pipeline.StateFetched, Record: rec}, f.err
	}
	done := rec.Clone()
	done.Key = "na-government-gazette-dated-2018-01-01-no-31"
	return pipeline.Outcome{Final: pipeline.StateArchived, Record: done}, nil
}

func TestJobHandlerRunsPipeline(t *testing.T) {
	fake := &fakeIdentifier{}
	handler := newJobHandler(fake, logging.NewNop())

	if err := handler(context.Background(), jobs.Job{Jurisdiction: "NA", Source: "s3://incoming/upload/31.pdf"}); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if fake.got == nil || fake.got.Jurisdiction != "na" || fake.got.Source.Kind != gazette.SourceObject {
		t.Fatalf("unexpected record %+v", fake.got)
	}
}

func TestJobHandlerReturnsPipelineErrors(t *testing.T) {
	fake := &fakeIdentifier{err: services.Wrap(services.ErrExternalTool, "extract", "pdftotext", "", errors.New("exit status 1"))}
	err := newJobHandler(fake, logging.NewNop())(context.Background(), jobs.Job{Jurisdiction: "na", Source: "/tmp/a.pdf"})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected pipeline error, got %v", err)
	}
}

func TestMetricsServerServesEndpoints(t *testing.T) {
	recorder := metrics.NewPipeline()
	recorder.JobReceived(true)
	server, err := startMetricsServer("127.0.0.1:0", recorder, logging.NewNop())
	if err != nil {
		t.Fatalf("startMetricsServer: %v", err)
	}
	t.Cleanup(func() { _ = server.Shutdown(context.Background()) })

	resp, err := http.Get("http://" + server.Addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `gazettes_jobs_received_total{status="ok"} 1`) {
		t.Fatalf("unexpected metrics body:\n%s", body)
	}

	resp, err = http.Get("http://" + server.Addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected health status %d", resp.StatusCode)
	}
}
