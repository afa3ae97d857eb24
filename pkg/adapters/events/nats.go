package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/ports"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// StreamName is the JetStream stream holding every event.
	StreamName = "LECTERN"
	// SubjectPrefix prefixes event subjects, e.g. "lectern.fidelity.sampled".
	SubjectPrefix = "lectern."
)

// NATS publishes events to a JetStream stream.
type NATS struct {
	nc *nats.Conn
	js jetstream.JetStream
}

var _ ports.EventPublisher = (*NATS)(nil)

// NewNATS connects to url and makes sure the stream exists.
func NewNATS(url string, logger *slog.Logger) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("lectern"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectPrefix + ">"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
	})
	if err != nil {
		// It may already exist with another config, or the server is not ready yet.
		logger.Warn("failed to ensure event stream", "stream", StreamName, "error", err)
	}

	return &NATS{nc: nc, js: js}, nil
}

// Subject returns the subject an event type is published on.
func Subject(t domain.EventType) string {
	return SubjectPrefix + string(t)
}

func (p *NATS) Publish(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := Subject(event.Type)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to subject %s: %w", subject, err)
	}
	return nil
}

// Close closes the NATS connection.
func (p *NATS) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
