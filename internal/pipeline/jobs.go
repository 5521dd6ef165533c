package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a chunking job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusFetching  JobStatus = "fetching"
	StatusParsing   JobStatus = "parsing"
	StatusChunking  JobStatus = "chunking"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions happen from s.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job tracks the state of a single asynchronous chunking run.
type Job struct {
	mu sync.Mutex

	ID    string `json:"job_id"`
	DocID string `json:"doc_id"`

	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Filename  string    `json:"filename,omitempty"`
	SourceURL string    `json:"source_url,omitempty"`
	Title     string    `json:"title"`
	Settings  Settings  `json:"settings"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData    []byte
	contentType string
	chunks      []Chunk
	errors      []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalChunks int      `json:"total_chunks"`
	DurationMs  int64    `json:"duration_ms"`
	Errors      []string `json:"errors"`
}

// NewJob creates a queued job with a fresh ID.
func NewJob(filename, sourceURL string, settings Settings) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		SourceURL: sourceURL,
		Settings:  settings,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.updatedAt()) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

func (j *Job) updatedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetFileData sets the raw file bytes and their MIME type for processing.
func (j *Job) SetFileData(data []byte, contentType string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
	j.contentType = contentType
}

// FileData returns the raw file bytes and their MIME type.
func (j *Job) FileData() ([]byte, string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData, j.contentType
}

// SetSource records the parsed document's identity.
func (j *Job) SetSource(filename, title, contentHash string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if filename != "" {
		j.Filename = filename
	}
	j.Title = title
	j.ContentHash = contentHash
	if len(contentHash) >= 16 {
		j.DocID = contentHash[:16]
	}
	j.UpdatedAt = time.Now()
}

// SetResult stores the chunks and releases the raw file bytes.
func (j *Job) SetResult(chunks []Chunk, duration time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.chunks = chunks
	j.fileData = nil
	j.Progress.TotalChunks = len(chunks)
	j.Progress.DurationMs = duration.Milliseconds()
	j.UpdatedAt = time.Now()
}

// Chunks returns the chunks of a completed job.
func (j *Job) Chunks() []Chunk {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.chunks
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	DocID     string    `json:"doc_id"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Filename  string    `json:"filename,omitempty"`
	SourceURL string    `json:"source_url,omitempty"`
	Title     string    `json:"title"`
	Settings  Settings  `json:"settings"`
	Progress  Progress  `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.Progress.Errors))
	copy(errs, j.Progress.Errors)
	return JobSnapshot{
		ID:        j.ID,
		DocID:     j.DocID,
		Status:    j.Status,
		Phase:     j.Phase,
		Filename:  j.Filename,
		SourceURL: j.SourceURL,
		Title:     j.Title,
		Settings:  j.Settings,
		Progress: Progress{
			TotalChunks: j.Progress.TotalChunks,
			DurationMs:  j.Progress.DurationMs,
			Errors:      errs,
		},
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
