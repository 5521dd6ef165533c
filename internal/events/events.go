package events

import (
	"context"
	"time"
)

// JobEvent describes a job reaching a terminal state.
type JobEvent struct {
	JobID    string    `json:"job_id"`
	DocID    string    `json:"doc_id,omitempty"`
	Status   string    `json:"status"`
	Source   string    `json:"source"` // Filename or URL
	Chunks   int       `json:"chunks"`
	Error    string    `json:"error,omitempty"`
	Duration int64     `json:"duration_ms"`
	Time     time.Time `json:"time"`
}

// Publisher announces job events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, ev JobEvent) error
	Close() error
}

// NoOpPublisher drops every event. Used when no broker is configured.
type NoOpPublisher struct{}

func NewNoOpPublisher() *NoOpPublisher {
	return &NoOpPublisher{}
}

func (NoOpPublisher) Publish(context.Context, JobEvent) error { return nil }

func (NoOpPublisher) Close() error { return nil }
