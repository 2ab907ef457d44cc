// Package notify publishes conversion events to NATS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is used when Config.Subject is empty.
const DefaultSubject = "kml2fgfp.route.converted"

// Config holds the NATS connection settings. An empty URL disables
// publishing.
type Config struct {
	URL     string        `yaml:"url"`
	Subject string        `yaml:"subject"`
	Timeout time.Duration `yaml:"timeout"`
}

// Enabled reports whether a server URL is configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}

// RouteConverted is the event published after a flight plan is written.
type RouteConverted struct {
	Name        string    `json:"name"`
	Input       string    `json:"input"`
	Output      string    `json:"output"`
	Departure   string    `json:"departure,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Waypoints   int       `json:"waypoints"`
	Dropped     int       `json:"dropped"`
	Truncated   bool      `json:"truncated"`
	DistanceNM  float64   `json:"distance_nm"`
	CatalogID   int64     `json:"catalog_id,omitempty"`
	ConvertedAt time.Time `json:"converted_at"`
}

// Publisher sends events on a single subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
	timeout time.Duration
}

// Connect dials the NATS server in cfg.
func Connect(cfg Config) (*Publisher, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name("kml2fgfp"),
		nats.Timeout(timeout),
		nats.MaxReconnects(2),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{nc: nc, subject: subject, timeout: timeout}, nil
}

// Subject returns the subject events are published on.
func (p *Publisher) Subject() string {
	return p.subject
}

// PublishConverted publishes ev as JSON and waits for the server to
// acknowledge the flush.
func (p *Publisher) PublishConverted(ctx context.Context, ev RouteConverted) error {
	msg, err := NewMessage(p.subject, ev)
	if err != nil {
		return err
	}
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", p.subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.nc.Drain()
}

// NewMessage encodes ev into a NATS message for subject.
func NewMessage(subject string, ev RouteConverted) (*nats.Msg, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Header.Set("Content-Type", "application/json")
	msg.Header.Set("Event", "RouteConverted")
	msg.Data = data
	return msg, nil
}
