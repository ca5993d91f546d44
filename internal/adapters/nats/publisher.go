package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/amchercashin/VeloTrek/internal/core/domain"
)

// Subjects for download progress and live position broadcasts. WebSocket
// relays subscribe with a trailing wildcard.
const (
	SubjectProgressPrefix = "velotrek.progress."
	SubjectPositionPrefix = "velotrek.position."
)

// Publisher implements ports.EventPublisher using NATS JetStream for
// durable download progress and plain publish for ephemeral positions.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      "TILE_DOWNLOADS",
		Subjects:  []string{SubjectProgressPrefix + ">"},
		Retention: nats.LimitsPolicy,
		MaxAge:    1 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishProgress broadcasts a download progress snapshot for a job.
func (p *Publisher) PublishProgress(ctx context.Context, jobID string, progress domain.DownloadProgress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectProgressPrefix+jobID, data)
	return err
}

// PublishPosition broadcasts a resolved live position. Positions are
// ephemeral so they bypass JetStream.
func (p *Publisher) PublishPosition(ctx context.Context, routeID string, np *domain.NearestPoint) error {
	data, err := json.Marshal(np)
	if err != nil {
		return err
	}
	return p.conn.Publish(SubjectPositionPrefix+routeID, data)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
