// Package events publishes query outcomes to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectQueryCompleted carries one QueryCompleted per answered query.
const SubjectQueryCompleted = "propertyrag.query.completed"

// QueryCompleted describes the outcome of one agentic query.
type QueryCompleted struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	Intent     string    `json:"intent"`
	Success    bool      `json:"success"`
	Confidence float64   `json:"confidence"`
	Iterations int       `json:"iterations"`
	Warnings   []string  `json:"warnings"`
	At         time.Time `json:"at"`
}

// Publisher delivers outcome events.
type Publisher interface {
	PublishQueryCompleted(ctx context.Context, ev QueryCompleted) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) PublishQueryCompleted(context.Context, QueryCompleted) error { return nil }

// Conn is the subset of *nats.Conn used for publishing.
type Conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes JSON events on a NATS connection.
type NATSPublisher struct {
	conn    Conn
	subject string
}

// NewNATSPublisher publishes on conn. An empty subject means
// SubjectQueryCompleted.
func NewNATSPublisher(conn Conn, subject string) *NATSPublisher {
	if subject == "" {
		subject = SubjectQueryCompleted
	}
	return &NATSPublisher{conn: conn, subject: subject}
}

// PublishQueryCompleted implements Publisher.
func (p *NATSPublisher) PublishQueryCompleted(ctx context.Context, ev QueryCompleted) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.Warnings == nil {
		ev.Warnings = []string{}
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	return nil
}

// Connect dials NATS with reconnects enabled.
func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}
