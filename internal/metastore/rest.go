package metastore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"gazettemachine/internal/config"
	"gazettemachine/internal/gazette"
	"gazettemachine/internal/logging"
	"gazettemachine/internal/services"
)

const (
	gazettesPath = "/gazettes/"
	tasksPath    = "/tasks/"
	seenPath     = "/seen/filter/"
)

// REST is the gazettes API client.
type REST struct {
	baseURL string
	token   string
	client  *retryablehttp.Client
	logger  *slog.Logger
}

// NewREST builds a client from the [metadata] section. Retries stay off
// unless metadata.retry_max is set.
func NewREST(cfg config.Metadata, logger *slog.Logger) *REST {
	c := retryablehttp.NewClient()
	c.RetryMax = cfg.RetryMax
	c.HTTPClient.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	c.Logger = nil
	return &REST{
		baseURL: cfg.APIURL,
		token:   cfg.AuthToken,
		client:  c,
		logger:  logging.NewComponentLogger(logger, "metastore"),
	}
}

type taskRequest struct {
	Title  string          `json:"title"`
	Record *gazette.Record `json:"record"`
}

type taskResponse struct {
	URL string `json:"url"`
}

type seenPayload struct {
	URLs []string `json:"urls"`
}

// Save creates the record. A 409 from the API marks a duplicate.
func (r *REST) Save(ctx context.Context, rec *gazette.Record) (SaveResult, error) {
	if err := requireKeyed("save", rec); err != nil {
		return SaveResult{}, err
	}
	resp, err := r.post(ctx, "save", gazettesPath, rec)
	if err != nil {
		return SaveResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		r.logger.Info("record already stored", logging.String(logging.FieldDocumentID, rec.Key))
		return SaveResult{Record: rec, Duplicate: true}, nil
	}
	if err := ensureSuccess("save", resp); err != nil {
		return SaveResult{}, err
	}

	saved := rec.Clone()
	if err := decodeBody(resp, saved); err != nil {
		return SaveResult{}, services.Wrap(services.ErrTransient, "metadata", "save", "decode response", err)
	}
	return SaveResult{Record: saved}, nil
}

// CreateManualTask files a review task and returns its URL.
func (r *REST) CreateManualTask(ctx context.Context, rec *gazette.Record) (string, error) {
	if rec == nil {
		return "", services.Wrap(services.ErrValidation, "metadata", "create task", "record is required", nil)
	}
	body := taskRequest{Title: manualTaskTitle(rec), Record: rec}
	resp, err := r.post(ctx, "create task", tasksPath, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := ensureSuccess("create task", resp); err != nil {
		return "", err
	}
	var out taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", services.Wrap(services.ErrTransient, "metadata", "create task", "decode response", err)
	}
	if out.URL == "" {
		return "", services.Wrap(services.ErrTransient, "metadata", "create task", "response has no task url", nil)
	}
	return out.URL, nil
}

// FilterSeen returns the subset of urls the API has not seen, in input order.
func (r *REST) FilterSeen(ctx context.Context, urls []string) ([]string, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	resp, err := r.post(ctx, "filter seen", seenPath, seenPayload{URLs: urls})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := ensureSuccess("filter seen", resp); err != nil {
		return nil, err
	}
	var out seenPayload
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, services.Wrap(services.ErrTransient, "metadata", "filter seen", "decode response", err)
	}
	return keepOrder(urls, out.URLs), nil
}

func (r *REST) Close() error { return nil }

func (r *REST) post(ctx context.Context, operation, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "metadata", operation, "encode request", err)
	}
	req, err := retryablehttp.NewRequest(http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "metadata", operation, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Token "+r.token)
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		req.Header.Set("X-Request-ID", rid)
	}

	resp, err := r.client.Do(req.WithContext(ctx))
	if err != nil {
		marker := services.ErrTransient
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			marker = services.ErrTimeout
		}
		return nil, services.Wrap(marker, "metadata", operation, "POST "+path, err)
	}
	return resp, nil
}

func ensureSuccess(operation string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := fmt.Sprintf("unexpected status %d", resp.StatusCode)
	if len(bytes.TrimSpace(snippet)) > 0 {
		msg += ": " + string(bytes.TrimSpace(snippet))
	}
	marker := services.ErrTransient
	switch {
	case resp.StatusCode == http.StatusNotFound:
		marker = services.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		marker = services.ErrConfiguration
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		marker = services.ErrValidation
	}
	return services.Wrap(marker, "metadata", operation, msg, nil)
}

func decodeBody(resp *http.Response, into any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, into)
}

func manualTaskTitle(rec *gazette.Record) string {
	return fmt.Sprintf("Identify %s gazette %s", rec.Jurisdiction, rec.Source.String())
}
