// Package events publishes listing and negotiation lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/m3rciful/redistbot/core/logger"
)

// Type names a lifecycle event. It is also the subject suffix.
type Type string

const (
	ListingPublished      Type = "listing.published"
	ListingArchived       Type = "listing.archived"
	ClaimRequested        Type = "claim.requested"
	ClaimApproved         Type = "claim.approved"
	ClaimRejected         Type = "claim.rejected"
	RescheduleProposed    Type = "claim.reschedule_proposed"
	RescheduleAccepted    Type = "claim.reschedule_accepted"
	RescheduleDeclined    Type = "claim.reschedule_declined"
	NegotiationTerminated Type = "claim.terminated"
)

// Event is the payload published for every transition.
type Event struct {
	Type          Type      `json:"type"`
	ListingID     int64     `json:"listing_id"`
	NegotiationID string    `json:"negotiation_id,omitempty"`
	UserID        int64     `json:"user_id,omitempty"`
	Quantity      int       `json:"qty,omitempty"`
	Remaining     int       `json:"remaining"`
	PickupTime    string    `json:"pickup_time,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	At            time.Time `json:"at"`
}

// Publisher delivers events. Implementations must not block the caller for long.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close()
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close()                               {}

// NATSPublisher publishes JSON events on <prefix>.<type>.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher connects to url.
func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("redistbot"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSPublisher{conn: conn, prefix: strings.TrimSuffix(prefix, ".")}, nil
}

// Subject returns the subject an event type is published on.
func Subject(prefix string, t Type) string {
	if prefix == "" {
		return string(t)
	}
	return prefix + "." + string(t)
}

// Publish encodes ev and hands it to the connection.
func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	subject := Subject(p.prefix, ev.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		logger.LogEvent(ctx, logger.Events, slog.LevelWarn, "events.publish",
			slog.String("status", "fail"),
			slog.String("path", subject),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
