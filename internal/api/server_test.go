package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docchunk/internal/chunker"
	"github.com/dgallion1/docchunk/internal/config"
	"github.com/dgallion1/docchunk/internal/fetch"
	"github.com/dgallion1/docchunk/internal/parser"
	"github.com/dgallion1/docchunk/internal/pipeline"
	"github.com/dgallion1/docchunk/internal/tokenizer"
)

const (
	testKey  = "test-key"
	testHTML = `<html><body><p>a b</p><p>c d e</p></body></html>`
)

func newTestServer(t *testing.T, start bool, queueSize int) *Server {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	cfg := config.Config{
		APIKey:             testKey,
		MaxUploadBytes:     1 << 20,
		MaxConcurrentChunk: 2,
	}
	engine := pipeline.NewEngine(parser.NewRegistry(parser.Options{}), fetch.NewClient(5*time.Second, 1<<20),
		tokenizer.EstimateCounter{}, nil, log, chunker.DefaultConfig())
	orch := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		WorkerCount:  1,
		MaxQueueSize: queueSize,
		JobTTL:       time.Hour,
	}, engine, nil, log)
	if start {
		orch.Start(context.Background())
		t.Cleanup(orch.Stop)
	}
	return NewServer(orch, log, cfg)
}

type upload struct {
	name string
	body string
}

func multipartBody(t *testing.T, field string, files []upload, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(field, f.name)
		require.NoError(t, err)
		_, err = io.WriteString(fw, f.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, s *Server, method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func texts(chunks []pipeline.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false, 1)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuth(t *testing.T) {
	s := newTestServer(t, false, 1)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"wrong key", "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/stats/chunking", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestChunkUpload(t *testing.T) {
	s := newTestServer(t, false, 1)

	body, ct := multipartBody(t, "file", []upload{{"notes.txt", "one two three\n\nfour five"}},
		map[string]string{"max_words": "3", "batch_size": "1"})
	rec := do(t, s, http.MethodPost, "/api/chunk", ct, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[chunkResponse](t, rec)
	assert.Equal(t, "notes", resp.Title)
	assert.Equal(t, "notes.txt", resp.Filename)
	assert.Len(t, resp.DocID, 16)
	assert.Equal(t, []string{"one two three", "four five"}, texts(resp.Chunks))
	assert.Equal(t, [][]string{{"one two three"}, {"four five"}}, resp.Batches)
	assert.Equal(t, 3, resp.Chunks[0].Words)
}

func TestChunkUploadHTML(t *testing.T) {
	s := newTestServer(t, false, 1)

	body, ct := multipartBody(t, "file", []upload{{"page.html", testHTML}}, map[string]string{"max_words": "2"})
	rec := do(t, s, http.MethodPost, "/api/chunk", ct, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"a b", "c d e"}, texts(decode[chunkResponse](t, rec).Chunks))

	body, ct = multipartBody(t, "file", []upload{{"page.html", testHTML}}, nil)
	rec = do(t, s, http.MethodPost, "/api/chunk", ct, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"a b c d e"}, texts(decode[chunkResponse](t, rec).Chunks))
}

func TestChunkUploadRejectsBadInput(t *testing.T) {
	s := newTestServer(t, false, 1)

	tests := []struct {
		name   string
		file   upload
		fields map[string]string
		want   string
	}{
		{"negative max words", upload{"a.txt", "x"}, map[string]string{"max_words": "-1"}, "invalid argument"},
		{"non-integer max words", upload{"a.txt", "x"}, map[string]string{"max_words": "ten"}, "not an integer"},
		{"unknown granularity", upload{"a.txt", "x"}, map[string]string{"granularity": "chapter"}, "unsupported granularity"},
		{"negative batch size", upload{"a.txt", "x"}, map[string]string{"batch_size": "-2"}, "batch_size"},
		{"bad greedy", upload{"a.txt", "x"}, map[string]string{"greedy": "maybe"}, "greedy"},
		{"unsupported type", upload{"a.xyz", "x"}, nil, "unsupported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, "file", []upload{tt.file}, tt.fields)
			rec := do(t, s, http.MethodPost, "/api/chunk", ct, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode[map[string]string](t, rec)["error"], tt.want)
		})
	}
}

func TestChunkUploadMissingFile(t *testing.T) {
	s := newTestServer(t, false, 1)
	body, ct := multipartBody(t, "file", nil, map[string]string{"max_words": "5"})
	rec := do(t, s, http.MethodPost, "/api/chunk", ct, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChunkUploadTooLarge(t *testing.T) {
	s := newTestServer(t, false, 1)
	s.cfg.MaxUploadBytes = 8

	body, ct := multipartBody(t, "file", []upload{{"a.txt", "this body is longer than eight bytes"}}, nil)
	rec := do(t, s, http.MethodPost, "/api/chunk", ct, body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestChunkURL(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, testHTML)
	}))
	defer origin.Close()

	s := newTestServer(t, false, 1)
	payload := `{"url":"` + origin.URL + `/page","max_words":2,"batch_size":2}`
	rec := do(t, s, http.MethodPost, "/api/chunk/url", "application/json", strings.NewReader(payload))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[chunkResponse](t, rec)
	assert.Equal(t, "page", resp.Filename)
	assert.Equal(t, []string{"a b", "c d e"}, texts(resp.Chunks))
	assert.Equal(t, [][]string{{"a b", "c d e"}}, resp.Batches)
}

func TestChunkURLErrors(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer origin.Close()

	s := newTestServer(t, false, 1)

	tests := []struct {
		name    string
		payload string
		status  int
	}{
		{"malformed json", `{"url":`, http.StatusBadRequest},
		{"missing url", `{}`, http.StatusBadRequest},
		{"non-http url", `{"url":"ftp://example.com/a.txt"}`, http.StatusBadRequest},
		{"invalid max words", `{"url":"` + origin.URL + `","max_words":-3}`, http.StatusBadRequest},
		{"negative batch size", `{"url":"` + origin.URL + `","batch_size":-1}`, http.StatusBadRequest},
		{"upstream 404", `{"url":"` + origin.URL + `/missing"}`, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/chunk/url", "application/json", strings.NewReader(tt.payload))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestChunkBatchKeepsUploadOrder(t *testing.T) {
	s := newTestServer(t, false, 1)

	files := []upload{
		{"first.txt", "alpha beta"},
		{"bad.xyz", "nope"},
		{"third.html", testHTML},
		{"fourth.md", "# Title\n\nbody text"},
	}
	body, ct := multipartBody(t, "files", files, map[string]string{"max_words": "2"})
	rec := do(t, s, http.MethodPost, "/api/chunk/batch", ct, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[struct {
		Results []batchItem `json:"results"`
	}](t, rec)
	require.Len(t, resp.Results, len(files))
	for i, f := range files {
		assert.Equal(t, f.name, resp.Results[i].Filename)
	}
	assert.Equal(t, []string{"alpha beta"}, texts(resp.Results[0].Result.Chunks))
	assert.Nil(t, resp.Results[1].Result)
	assert.Contains(t, resp.Results[1].Error, "unsupported")
	assert.Equal(t, []string{"a b", "c d e"}, texts(resp.Results[2].Result.Chunks))
	assert.NotEmpty(t, resp.Results[3].Result.Chunks)
}

func TestChunkBatchRequiresFiles(t *testing.T) {
	s := newTestServer(t, false, 1)
	body, ct := multipartBody(t, "files", nil, nil)
	rec := do(t, s, http.MethodPost, "/api/chunk/batch", ct, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobLifecycle(t *testing.T) {
	s := newTestServer(t, true, 10)

	body, ct := multipartBody(t, "file", []upload{{"notes.txt", "one two three\n\nfour five"}},
		map[string]string{"max_words": "3"})
	rec := do(t, s, http.MethodPost, "/api/jobs", ct, body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	accepted := decode[map[string]string](t, rec)
	jobID := accepted["job_id"]
	require.NotEmpty(t, jobID)
	assert.Equal(t, "/api/jobs/"+jobID, accepted["poll_url"])

	require.Eventually(t, func() bool {
		rec := do(t, s, http.MethodGet, "/api/jobs/"+jobID, "", nil)
		return decode[pipeline.JobSnapshot](t, rec).Status == pipeline.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	rec = do(t, s, http.MethodGet, "/api/jobs/"+jobID+"/chunks?batch_size=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[struct {
		Chunks  []pipeline.Chunk `json:"chunks"`
		Batches [][]string       `json:"batches"`
	}](t, rec)
	assert.Equal(t, []string{"one two three", "four five"}, texts(got.Chunks))
	assert.Equal(t, [][]string{{"one two three"}, {"four five"}}, got.Batches)

	rec = do(t, s, http.MethodGet, "/api/jobs/"+jobID+"/chunks?batch_size=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobFromURL(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "remote words here")
	}))
	defer origin.Close()

	s := newTestServer(t, true, 10)
	rec := do(t, s, http.MethodPost, "/api/jobs", "application/json",
		strings.NewReader(`{"url":"`+origin.URL+`/notes.txt","granularity":"word","max_words":1}`))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	jobID := decode[map[string]string](t, rec)["job_id"]

	require.Eventually(t, func() bool {
		rec := do(t, s, http.MethodGet, "/api/jobs/"+jobID, "", nil)
		return decode[pipeline.JobSnapshot](t, rec).Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	rec = do(t, s, http.MethodGet, "/api/jobs/"+jobID+"/chunks", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[struct {
		Chunks []pipeline.Chunk `json:"chunks"`
	}](t, rec)
	assert.Equal(t, []string{"remote", "words", "here"}, texts(got.Chunks))
}

func TestJobSubmitRejections(t *testing.T) {
	s := newTestServer(t, false, 1)

	rec := do(t, s, http.MethodPost, "/api/jobs", "application/json", strings.NewReader(`{"url":"not a url"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/jobs", "application/json",
		strings.NewReader(`{"url":"https://example.com/a.html","granularity":"chapter"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct := multipartBody(t, "file", []upload{{"a.xyz", "x"}}, nil)
	rec = do(t, s, http.MethodPost, "/api/jobs", ct, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobQueueFull(t *testing.T) {
	s := newTestServer(t, false, 1)

	body, ct := multipartBody(t, "file", []upload{{"a.txt", "x"}}, nil)
	rec := do(t, s, http.MethodPost, "/api/jobs", ct, body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	pending := decode[map[string]string](t, rec)["job_id"]

	body, ct = multipartBody(t, "file", []upload{{"b.txt", "y"}}, nil)
	rec = do(t, s, http.MethodPost, "/api/jobs", ct, body)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/jobs/"+pending+"/chunks", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "queued", decode[map[string]any](t, rec)["status"])
}

func TestJobNotFound(t *testing.T) {
	s := newTestServer(t, false, 1)
	for _, path := range []string{"/api/jobs/nope", "/api/jobs/nope/chunks"} {
		rec := do(t, s, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestChunkingStats(t *testing.T) {
	s := newTestServer(t, false, 1)

	body, ct := multipartBody(t, "file", []upload{{"a.txt", "one two three"}}, map[string]string{"max_words": "1", "granularity": "word"})
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/chunk", ct, body).Code)

	rec := do(t, s, http.MethodGet, "/api/stats/chunking", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[struct {
		Stats      pipeline.StatsSnapshot `json:"stats"`
		QueueDepth int                    `json:"queue_depth"`
	}](t, rec)
	assert.Equal(t, 1, got.Stats.Count)
	assert.Equal(t, 3, got.Stats.TotalChunks)
	assert.Equal(t, 0, got.QueueDepth)
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(slog.New(slog.DiscardHandler))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"report.pdf":          "report.pdf",
		"../../etc/passwd":    "passwd",
		`C:\Users\me\doc.txt`: "doc.txt",
		"":                    "unnamed",
		"a..b.txt":            "a_b.txt",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFilename(in), in)
	}
}
