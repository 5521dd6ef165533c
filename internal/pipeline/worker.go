package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docchunk/internal/events"
)

// Worker processes a single chunking job.
type Worker struct {
	engine    *Engine
	publisher events.Publisher
	log       *slog.Logger
}

func NewWorker(engine *Engine, publisher events.Publisher, log *slog.Logger) *Worker {
	if publisher == nil {
		publisher = events.NewNoOpPublisher()
	}
	return &Worker{
		engine:    engine,
		publisher: publisher,
		log:       log,
	}
}

// Process runs the full chunking pipeline for a job. Failures are recorded
// on the job rather than returned.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID)
	start := time.Now()

	fail := func(phase string, err error) {
		log.Error("job failed", "phase", phase, "error", err)
		job.AddError(fmt.Sprintf("%s: %s", phase, err))
		job.SetStatus(StatusFailed, phase)
		w.publish(ctx, log, job, time.Since(start))
	}

	// Settings are checked before any input is touched.
	c, err := w.engine.Chunker(job.Settings)
	if err != nil {
		fail("validating", err)
		return
	}

	// Phase 1: Fetch
	data, contentType := job.FileData()
	filename := job.Filename
	if job.SourceURL != "" {
		job.SetStatus(StatusFetching, "fetching")
		res, err := w.engine.Fetch(ctx, job.SourceURL)
		if err != nil {
			fail("fetching", err)
			return
		}
		data, contentType, filename = res.Body, res.ContentType, res.Filename
		log.Info("fetched document", "url", job.SourceURL, "bytes", len(data), "content_type", contentType)
	}

	// Phase 2: Parse
	job.SetStatus(StatusParsing, "parsing")
	doc, err := w.engine.Parse(data, filename, contentType)
	if err != nil {
		fail("parsing", err)
		return
	}
	job.SetSource(filename, doc.Title, ContentHashHex([]byte(documentText(doc))))

	// Phase 3: Chunk
	job.SetStatus(StatusChunking, "chunking")
	chunks, elapsed := w.engine.Chunk(c, doc)
	job.SetResult(chunks, elapsed)
	log.Info("chunked document", "chunks", len(chunks), "duration_ms", elapsed.Milliseconds())

	job.SetStatus(StatusCompleted, "done")
	w.publish(ctx, log, job, time.Since(start))
}

func (w *Worker) publish(ctx context.Context, log *slog.Logger, job *Job, elapsed time.Duration) {
	snap := job.Snapshot()
	source := snap.Filename
	if snap.SourceURL != "" {
		source = snap.SourceURL
	}
	ev := events.JobEvent{
		JobID:    snap.ID,
		DocID:    snap.DocID,
		Status:   string(snap.Status),
		Source:   source,
		Chunks:   snap.Progress.TotalChunks,
		Duration: elapsed.Milliseconds(),
	}
	if n := len(snap.Progress.Errors); n > 0 {
		ev.Error = snap.Progress.Errors[n-1]
	}
	if err := w.publisher.Publish(ctx, ev); err != nil {
		log.Warn("publish job event failed", "error", err)
	}
}
