// Package client holds outbound integrations with other platform services.
package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Subjects published by this service.
const (
	SubjectPatternsDetected = "intelligence.patterns.detected"
	SubjectSnapshotCreated  = "proposals.snapshot.created"
)

// EventPublisher publishes domain events to NATS.
//
// All publish operations are non-fatal: errors are logged but never
// propagated, so a broker outage never fails a snapshot or a pattern run.
// A publisher with a nil connection drops every event.
type EventPublisher struct {
	nc  *nats.Conn
	log zerolog.Logger
}

// Event is the JSON schema published to NATS.
type Event struct {
	ID           string         `json:"id"`
	EventType    string         `json:"event_type"`
	OrgID        string         `json:"org_id"`
	ActorID      string         `json:"actor_id"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// NewEventPublisher creates a publisher backed by nc, which may be nil.
func NewEventPublisher(nc *nats.Conn, log zerolog.Logger) *EventPublisher {
	return &EventPublisher{nc: nc, log: log}
}

// ConnectNATS dials the broker with reconnects enabled.
func ConnectNATS(url, name string, log zerolog.Logger) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats: disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats: reconnected")
		}),
	)
}

// Publish sends event on subject with core NATS. ID and OccurredAt are
// filled in when empty. The id is carried in the Nats-Msg-Id header, which
// de-duplicates only when a JetStream stream captures the subject.
func (p *EventPublisher) Publish(ctx context.Context, subject string, event Event) {
	if p == nil || p.nc == nil {
		return
	}
	if err := ctx.Err(); err != nil {
		p.log.Warn().Err(err).Str("subject", subject).Msg("event: context done, dropping event")
		return
	}

	msg, err := newEventMsg(subject, &event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", event.EventType).Msg("event: failed to marshal event")
		return
	}

	if err := p.nc.PublishMsg(msg); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("org_id", event.OrgID).
			Msg("event: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("org_id", event.OrgID).
		Str("resource_id", event.ResourceID).
		Msg("event: published")
}

func newEventMsg(subject string, event *Event) (*nats.Msg, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, event.ID)
	return msg, nil
}
