// Package ingest discovers gazette PDFs on index pages and hands the ones
// not yet seen to a dispatcher.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"

	"gazettemachine/internal/config"
	"gazettemachine/internal/jobs"
	"gazettemachine/internal/logging"
	"gazettemachine/internal/services"
)

// SeenFilter drops URLs that were already processed.
type SeenFilter interface {
	FilterSeen(ctx context.Context, urls []string) ([]string, error)
}

// Dispatcher takes one job and reports what became of it.
type Dispatcher interface {
	Dispatch(ctx context.Context, job jobs.Job) (string, error)
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(ctx context.Context, job jobs.Job) (string, error)

func (f DispatchFunc) Dispatch(ctx context.Context, job jobs.Job) (string, error) { return f(ctx, job) }

// Publisher is the subset of jobs.Client used for queue dispatch.
type Publisher interface {
	Publish(ctx context.Context, job jobs.Job) error
}

// PublishTo dispatches by publishing each job for gazetted workers.
func PublishTo(p Publisher) Dispatcher {
	return DispatchFunc(func(ctx context.Context, job jobs.Job) (string, error) {
		if err := p.Publish(ctx, job); err != nil {
			return "", err
		}
		return "published", nil
	})
}

// Item is the result for one discovered link.
type Item struct {
	URL    string `json:"url"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Report summarises one ingest run.
type Report struct {
	Index string `json:"index"`
	Found int    `json:"found"`
	Seen  int    `json:"seen"`
	Items []Item `json:"items"`
}

// Failed counts items whose dispatch returned an error.
func (r Report) Failed() int {
	return len(lo.Filter(r.Items, func(item Item, _ int) bool { return item.Error != "" }))
}

// Ingester scrapes index pages and fans work out to a bounded pool.
type Ingester struct {
	client      *http.Client
	userAgent   string
	seen        SeenFilter
	dispatcher  Dispatcher
	limiter     *rate.Limiter
	concurrency int
	logger      *slog.Logger
}

// New builds an ingester from the [ingest] and [download] sections.
func New(cfg *config.Config, seen SeenFilter, dispatcher Dispatcher, logger *slog.Logger) *Ingester {
	timeout := time.Duration(cfg.Download.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	concurrency := cfg.Ingest.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	burst := cfg.Ingest.Burst
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if cfg.Ingest.RatePerSecond > 0 {
		limit = rate.Limit(cfg.Ingest.RatePerSecond)
	}
	return &Ingester{
		client:      &http.Client{Timeout: timeout},
		userAgent:   cfg.Download.UserAgent,
		seen:        seen,
		dispatcher:  dispatcher,
		limiter:     rate.NewLimiter(limit, burst),
		concurrency: concurrency,
		logger:      logging.NewComponentLogger(logger, "ingest"),
	}
}

// Run scrapes index, drops seen links and dispatches the rest.
func (i *Ingester) Run(ctx context.Context, jurisdiction, index string) (Report, error) {
	report := Report{Index: index}
	links, err := i.Links(ctx, index)
	if err != nil {
		return report, err
	}
	report.Found = len(links)

	fresh, err := i.seen.FilterSeen(ctx, links)
	if err != nil {
		return report, err
	}
	report.Seen = len(links) - len(fresh)
	i.logger.Info("index scraped",
		logging.String(logging.FieldEventType, "ingest_index"),
		logging.String("index", index),
		logging.Int("found", report.Found),
		logging.Int("seen", report.Seen),
	)

	type indexed struct {
		n    int
		item Item
	}
	p := pool.NewWithResults[indexed]().WithMaxGoroutines(i.concurrency).WithContext(ctx)
	for n, link := range fresh {
		p.Go(func(ctx context.Context) (indexed, error) {
			return indexed{n: n, item: i.dispatch(ctx, jurisdiction, link)}, nil
		})
	}
	results, err := p.Wait()
	sort.Slice(results, func(a, b int) bool { return results[a].n < results[b].n })
	report.Items = lo.Map(results, func(r indexed, _ int) Item { return r.item })
	if err != nil {
		return report, err
	}
	return report, ctx.Err()
}

func (i *Ingester) dispatch(ctx context.Context, jurisdiction, link string) Item {
	item := Item{URL: link}
	if err := i.limiter.Wait(ctx); err != nil {
		item.Error = err.Error()
		return item
	}
	result, err := i.dispatcher.Dispatch(ctx, jobs.Job{Jurisdiction: jurisdiction, Source: link})
	if err != nil {
		item.Error = err.Error()
		logging.WarnWithContext(i.logger, "dispatch failed", "ingest_dispatch_failed",
			logging.String("url", link),
			logging.Error(err),
			logging.String(logging.FieldImpact, "link will be retried on the next ingest run"),
		)
		return item
	}
	item.Result = result
	return item
}

// Links returns the absolute URLs of PDFs linked from index, in page order
// without duplicates.
func (i *Ingester) Links(ctx context.Context, index string) ([]string, error) {
	base, err := url.Parse(index)
	if err != nil || base.Host == "" {
		return nil, services.Wrap(services.ErrValidation, "ingest", "parse index", fmt.Sprintf("invalid index url %q", index), err)
	}
	doc, err := i.fetchDocument(ctx, base.String())
	if err != nil {
		return nil, err
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		if !strings.EqualFold(path.Ext(abs.Path), ".pdf") {
			return
		}
		links = append(links, abs.String())
	})
	return lo.Uniq(links), nil
}

func (i *Ingester) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "ingest", "build request", pageURL, err)
	}
	if i.userAgent != "" {
		req.Header.Set("User-Agent", i.userAgent)
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "ingest", "fetch index", pageURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, services.Wrap(services.ErrNotFound, "ingest", "fetch index", pageURL+" returned "+resp.Status, nil)
	case resp.StatusCode != http.StatusOK:
		return nil, services.Wrap(services.ErrTransient, "ingest", "fetch index", pageURL+" returned "+resp.Status, nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "ingest", "parse index", pageURL, err)
	}
	return doc, nil
}
