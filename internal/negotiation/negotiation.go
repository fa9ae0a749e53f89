// Package negotiation holds claim negotiations between a claimant and a
// listing's poster until they are resolved.
package negotiation

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a negotiation id is unknown or has expired.
var ErrNotFound = errors.New("negotiation not found")

// State is the position of a negotiation in the claim flow.
type State string

const (
	StateRequested         State = "requested"
	StateReschedulePending State = "reschedule_pending"
	StateApproved          State = "approved"
	StateRejected          State = "rejected"
	StateAccepted          State = "accepted"
	StateDeclined          State = "declined"
)

// Terminal reports whether no further decision can be taken.
func (s State) Terminal() bool {
	switch s {
	case StateApproved, StateRejected, StateAccepted, StateDeclined:
		return true
	}
	return false
}

// Negotiation is one claimant's request against one listing.
type Negotiation struct {
	ID           string    `json:"id"`
	ListingID    int64     `json:"listing_id"`
	PosterID     int64     `json:"poster_id"`
	ClaimantID   int64     `json:"claimant_id"`
	ClaimantName string    `json:"claimant_name"`
	Quantity     int       `json:"qty"`
	PickupTime   string    `json:"pickup_time"`
	ProposedTime string    `json:"proposed_time,omitempty"`
	State        State     `json:"state"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AgreedTime is the pickup time that ends up in the claim record.
func (n *Negotiation) AgreedTime() string {
	if n.State == StateAccepted && n.ProposedTime != "" {
		return n.ProposedTime
	}
	return n.PickupTime
}

// Registry keeps open negotiations addressable by id.
type Registry interface {
	Put(ctx context.Context, n *Negotiation) error
	Get(ctx context.Context, id string) (*Negotiation, error)
	Delete(ctx context.Context, id string) error
}
