package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docchunk/internal/chunker"
	"github.com/dgallion1/docchunk/internal/fetch"
	"github.com/dgallion1/docchunk/internal/parser"
	"github.com/dgallion1/docchunk/internal/pipeline"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var errUploadTooLarge = errors.New("file exceeds max size")

type chunkResponse struct {
	Title      string           `json:"title"`
	Filename   string           `json:"filename"`
	DocID      string           `json:"doc_id"`
	Chunks     []pipeline.Chunk `json:"chunks"`
	Batches    [][]string       `json:"batches,omitempty"`
	DurationMs int64            `json:"duration_ms"`
}

func newChunkResponse(res *pipeline.Result, batchSize int) (*chunkResponse, error) {
	resp := &chunkResponse{
		Title:      res.Title,
		Filename:   res.Filename,
		DocID:      res.ContentHash[:16],
		Chunks:     res.Chunks,
		DurationMs: res.Duration.Milliseconds(),
	}
	if resp.Chunks == nil {
		resp.Chunks = []pipeline.Chunk{}
	}
	if batchSize > 0 {
		batches, err := chunker.Batch(res.Texts(), batchSize)
		if err != nil {
			return nil, err
		}
		resp.Batches = batches
	}
	return resp, nil
}

type chunkURLRequest struct {
	URL         string `json:"url" validate:"required,http_url"`
	MaxWords    int    `json:"max_words"`
	Granularity string `json:"granularity"`
	BatchSize   int    `json:"batch_size"`
	Greedy      *bool  `json:"greedy"`
}

func (r chunkURLRequest) settings() pipeline.Settings {
	return pipeline.Settings{MaxWords: r.MaxWords, Granularity: r.Granularity, Greedy: r.Greedy}
}

type batchItem struct {
	Filename string         `json:"filename"`
	Result   *chunkResponse `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	// Extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	settings, batchSize, err := formSettings(r)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	_, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := s.chunkUpload(header, settings, batchSize)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChunkURL(w http.ResponseWriter, r *http.Request) {
	var req chunkURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		jsonError(w, validationMessage(err), http.StatusBadRequest)
		return
	}
	if err := checkBatchSize(req.BatchSize); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Settings are checked before the remote fetch.
	settings := req.settings()
	if _, err := s.engine.Chunker(settings); err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	res, err := s.engine.Fetch(r.Context(), req.URL)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, fetch.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.log.Warn("fetch failed", "url", req.URL, "error", err)
		jsonError(w, "fetch failed: "+err.Error(), status)
		return
	}

	out, err := s.engine.Run(res.Body, res.Filename, res.ContentType, settings)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	resp, err := newChunkResponse(out, req.BatchSize)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChunkBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	settings, batchSize, err := formSettings(r)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	if _, err := s.engine.Chunker(settings); err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	results := make([]batchItem, len(files))
	var g errgroup.Group
	if n := s.cfg.MaxConcurrentChunk; n > 0 {
		g.SetLimit(n)
	}
	for i, fh := range files {
		g.Go(func() error {
			item := batchItem{Filename: sanitizeFilename(fh.Filename)}
			resp, err := s.chunkUpload(fh, settings, batchSize)
			if err != nil {
				item.Error = err.Error()
			} else {
				item.Result = resp
			}
			results[i] = item
			return nil
		})
	}
	_ = g.Wait()

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// chunkUpload reads one uploaded file and chunks it.
func (s *Server) chunkUpload(fh *multipart.FileHeader, settings pipeline.Settings, batchSize int) (*chunkResponse, error) {
	filename := sanitizeFilename(fh.Filename)
	data, err := s.readUpload(fh)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.Run(data, filename, fh.Header.Get("Content-Type"), settings)
	if err != nil {
		return nil, err
	}
	return newChunkResponse(res, batchSize)
}

func (s *Server) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w (%d bytes)", errUploadTooLarge, s.cfg.MaxUploadBytes)
	}
	return data, nil
}

// formSettings reads the optional chunking overrides of a multipart form.
func formSettings(r *http.Request) (pipeline.Settings, int, error) {
	var s pipeline.Settings
	var err error
	if s.MaxWords, err = formInt(r, "max_words"); err != nil {
		return s, 0, err
	}
	s.Granularity = r.FormValue("granularity")
	if v := r.FormValue("greedy"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return s, 0, fmt.Errorf("%w: greedy %q is not a boolean", chunker.ErrInvalidArgument, v)
		}
		s.Greedy = &b
	}
	batchSize, err := formInt(r, "batch_size")
	if err != nil {
		return s, 0, err
	}
	if err := checkBatchSize(batchSize); err != nil {
		return s, 0, err
	}
	return s, batchSize, nil
}

func formInt(r *http.Request, key string) (int, error) {
	v := r.FormValue(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an integer", chunker.ErrInvalidArgument, key, v)
	}
	return n, nil
}

// checkBatchSize accepts zero (no batching) or a positive size.
func checkBatchSize(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: batch_size must be positive, got %d", chunker.ErrInvalidArgument, n)
	}
	return nil
}

// statusFor maps a chunking error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, chunker.ErrInvalidArgument),
		errors.Is(err, chunker.ErrUnsupportedGranularity),
		errors.Is(err, parser.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, errUploadTooLarge), errors.Is(err, fetch.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, pipeline.ErrQueueFull):
		return http.StatusServiceUnavailable
	}
	return http.StatusUnprocessableEntity
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %q", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return "invalid request: " + strings.Join(msgs, "; ")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
