package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// natsConn is the part of *nats.Conn the publisher uses.
type natsConn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

type natsPublisher struct {
	log     *slog.Logger
	nc      natsConn
	subject string
}

// NewNATS connects to url and publishes events to "<subject>.<status>".
func NewNATS(log *slog.Logger, url, subject string) (Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("docchunk"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newNATSPublisher(log, nc, subject), nil
}

func newNATSPublisher(log *slog.Logger, nc natsConn, subject string) *natsPublisher {
	return &natsPublisher{log: log, nc: nc, subject: subject}
}

func (p *natsPublisher) Publish(ctx context.Context, ev JobEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.Status == "" {
		return errors.New("event status required")
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := p.subject + "." + ev.Status
	if err := p.nc.Publish(subject, body); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.log.Debug("event published", "subject", subject, "job_id", ev.JobID)
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *natsPublisher) Close() error {
	return p.nc.Drain()
}
