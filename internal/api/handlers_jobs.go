package api

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docchunk/internal/chunker"
	"github.com/dgallion1/docchunk/internal/pipeline"
)

type submitJobRequest struct {
	URL         string `json:"url" validate:"required,http_url"`
	MaxWords    int    `json:"max_words"`
	Granularity string `json:"granularity"`
	Greedy      *bool  `json:"greedy"`
}

// handleSubmitJob queues a multipart upload or a JSON {"url": ...} body for
// asynchronous chunking.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var job *pipeline.Job
	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll()

		settings, _, err := formSettings(r)
		if err != nil {
			jsonError(w, err.Error(), statusFor(err))
			return
		}
		_, header, err := r.FormFile("file")
		if err != nil {
			jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
			return
		}
		filename := sanitizeFilename(header.Filename)
		contentType := header.Header.Get("Content-Type")
		if err := s.engine.CanParse(filename, contentType); err != nil {
			jsonError(w, err.Error(), statusFor(err))
			return
		}
		data, err := s.readUpload(header)
		if err != nil {
			jsonError(w, err.Error(), statusFor(err))
			return
		}
		job = pipeline.NewJob(filename, "", settings)
		job.SetFileData(data, contentType)
	} else {
		var req submitJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			jsonError(w, validationMessage(err), http.StatusBadRequest)
			return
		}
		job = pipeline.NewJob("", req.URL, pipeline.Settings{
			MaxWords:    req.MaxWords,
			Granularity: req.Granularity,
			Greedy:      req.Greedy,
		})
	}

	if _, err := s.engine.Chunker(job.Settings); err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	if err := s.orchestrator.Submit(job); err != nil {
		s.log.Warn("job rejected", "job_id", job.ID, "error", err)
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	snap := job.Snapshot()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   snap.ID,
		"status":   snap.Status,
		"poll_url": fmt.Sprintf("/api/jobs/%s", snap.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleJobChunks(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}

	batchSize := 0
	if v := r.URL.Query().Get("batch_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			jsonError(w, fmt.Sprintf("%s: batch_size must be a positive integer", chunker.ErrInvalidArgument), http.StatusBadRequest)
			return
		}
		batchSize = n
	}

	snap := job.Snapshot()
	if snap.Status != pipeline.StatusCompleted {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  fmt.Sprintf("job is %s", snap.Status),
			"status": snap.Status,
			"errors": snap.Progress.Errors,
		})
		return
	}

	chunks := job.Chunks()
	if chunks == nil {
		chunks = []pipeline.Chunk{}
	}
	body := map[string]any{
		"job_id": snap.ID,
		"doc_id": snap.DocID,
		"title":  snap.Title,
		"chunks": chunks,
	}
	if batchSize > 0 {
		res := pipeline.Result{Chunks: chunks}
		batches, err := chunker.Batch(res.Texts(), batchSize)
		if err != nil {
			jsonError(w, err.Error(), statusFor(err))
			return
		}
		body["batches"] = batches
	}
	writeJSON(w, http.StatusOK, body)
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}
