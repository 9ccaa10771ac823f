package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPipelineCounters(t *testing.T) {
	m := NewPipeline()
	m.StartDocument()
	m.StartDocument()
	m.FinishDocument("na", "archived")
	m.CleanupFailed(2)
	m.CleanupFailed(0)
	m.JobReceived(true)
	m.JobReceived(false)

	if got := testutil.ToFloat64(m.inFlight); got != 1 {
		t.Fatalf("expected one in-flight document, got %v", got)
	}
	if got := testutil.ToFloat64(m.outcomes.WithLabelValues("na", "archived")); got != 1 {
		t.Fatalf("expected one archived outcome, got %v", got)
	}
	if got := testutil.ToFloat64(m.cleanupErrors); got != 2 {
		t.Fatalf("expected two cleanup errors, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobs.WithLabelValues("invalid")); got != 1 {
		t.Fatalf("expected one invalid job, got %v", got)
	}
}

func TestHandlerExposesStageDurations(t *testing.T) {
	m := NewPipeline()
	m.ObserveStage("fetch", 150*time.Millisecond, nil)
	m.ObserveStage("ocr", time.Second, errors.New("boom"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	for _, want := range []string{
		`gazettes_pipeline_stage_duration_seconds_count{result="ok",stage="fetch"} 1`,
		`gazettes_pipeline_stage_duration_seconds_count{result="error",stage="ocr"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, text)
		}
	}
}
