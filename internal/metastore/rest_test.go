package metastore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gazettemachine/internal/config"
	"gazettemachine/internal/gazette"
	"gazettemachine/internal/services"
)

func newRESTClient(t *testing.T, handler http.HandlerFunc) *REST {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewREST(config.Metadata{
		APIURL:         server.URL,
		AuthToken:      "secret",
		TimeoutSeconds: 5,
	}, nil)
}

func TestRESTSaveCreatesRecord(t *testing.T) {
	var received gazette.Record
	client := newRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/gazettes/", r.URL.Path)
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(received)
	})

	rec := archivedRecord()
	result, err := client.Save(context.Background(), rec)
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Equal(t, rec.Key, result.Record.Key)
	assert.Equal(t, rec.Key, received.Key)
	assert.Equal(t, rec.WorkingLocation, received.WorkingLocation)
}

func TestRESTSaveConflictIsDuplicate(t *testing.T) {
	client := newRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"whatever the server says"}`, http.StatusConflict)
	})

	result, err := client.Save(context.Background(), archivedRecord())
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
}

func TestRESTSaveServerErrorIsNotDuplicate(t *testing.T) {
	calls := 0
	client := newRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "duplicate key value violates unique constraint", http.StatusInternalServerError)
	})

	result, err := client.Save(context.Background(), archivedRecord())
	require.Error(t, err)
	assert.False(t, result.Duplicate)
	assert.True(t, errors.Is(err, services.ErrTransient))
	assert.Equal(t, 1, calls, "retries are off by default")
}

func TestRESTSaveBadRequestIsValidationError(t *testing.T) {
	client := newRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"key":["invalid"]}`, http.StatusBadRequest)
	})

	_, err := client.Save(context.Background(), archivedRecord())
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrValidation))
	assert.Contains(t, err.Error(), "400")
}

func TestRESTSaveRequiresKey(t *testing.T) {
	client := newRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	rec := gazette.NewRecord("na", gazette.FileSource("/tmp/x.pdf"))
	_, err := client.Save(context.Background(), rec)
	assert.True(t, errors.Is(err, services.ErrValidation))
	assert.True(t, errors.Is(err, gazette.ErrIncomplete))
}

func TestRESTCreateManualTask(t *testing.T) {
	client := newRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks/", r.URL.Path)
		var body taskRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "na", body.Record.Jurisdiction)
		assert.NotEmpty(t, body.Title)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"url":"https://gazettes.test/tasks/42"}`))
	})

	rec := gazette.NewRecord("na", gazette.URLSource("https://example.org/na/31.pdf"))
	url, err := client.CreateManualTask(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "https://gazettes.test/tasks/42", url)
}

func TestRESTCreateManualTaskRequiresURL(t *testing.T) {
	client := newRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	_, err := client.CreateManualTask(context.Background(), gazette.NewRecord("na", gazette.FileSource("/tmp/x.pdf")))
	require.Error(t, err)
}

func TestRESTFilterSeenKeepsInputOrder(t *testing.T) {
	client := newRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/seen/filter/", r.URL.Path)
		var body seenPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.URLs, 3)
		_, _ = w.Write([]byte(`{"urls":["https://x.test/c.pdf","https://x.test/a.pdf"]}`))
	})

	unseen, err := client.FilterSeen(context.Background(), []string{
		"https://x.test/a.pdf",
		"https://x.test/b.pdf",
		"https://x.test/c.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x.test/a.pdf", "https://x.test/c.pdf"}, unseen)
}

func TestRESTFilterSeenEmptyInputSkipsRequest(t *testing.T) {
	client := newRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	unseen, err := client.FilterSeen(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, unseen)
}
