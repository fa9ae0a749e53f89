// Package claims drives the listing lifecycle: publishing, claim requests and
// the poster/claimant decisions that turn a negotiation into a claim.
package claims

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/redistbot/core/logger"
	"github.com/m3rciful/redistbot/internal/events"
	"github.com/m3rciful/redistbot/internal/listing"
	"github.com/m3rciful/redistbot/internal/metrics"
	"github.com/m3rciful/redistbot/internal/negotiation"
)

var (
	// ErrNotAuthorized is returned when the actor may not take the decision.
	ErrNotAuthorized = errors.New("not authorized for this negotiation")
	// ErrInvalidTransition is returned when the negotiation is in the wrong state.
	ErrInvalidTransition = errors.New("invalid negotiation transition")
	// ErrListingArchived is returned when claiming a fully claimed listing.
	ErrListingArchived = errors.New("listing fully claimed")
)

// Outcome is the result of a decision.
type Outcome struct {
	Negotiation *negotiation.Negotiation
	// Listing is the state after the decision, nil when it no longer exists.
	Listing *listing.Listing
	// Archived is set only on the decision that archived the listing.
	Archived bool
}

// RequestInput carries a finished claim dialog.
type RequestInput struct {
	ListingID    int64
	ClaimantID   int64
	ClaimantName string
	Quantity     int
	PickupTime   string
}

// Service applies lifecycle transitions to the store and negotiation registry.
type Service struct {
	store    *listing.Store
	registry negotiation.Registry
	events   events.Publisher
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithEvents publishes lifecycle events to p.
func WithEvents(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithMetrics records decision counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides negotiation id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// NewService wires the store and registry.
func NewService(store *listing.Store, registry negotiation.Registry, opts ...Option) *Service {
	s := &Service{
		store:    store,
		registry: registry,
		events:   events.Nop{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish records a listing under the id of its broadcast post.
func (s *Service) Publish(ctx context.Context, draft listing.Draft, postID int64) (*listing.Listing, error) {
	l := draft.Listing(postID)
	if _, err := s.store.Create(ctx, l); err != nil {
		s.log(ctx, slog.LevelWarn, "listing.publish", err, slog.Int64("listing_id", postID))
		return nil, err
	}
	s.metrics.Published()
	s.emit(ctx, events.Event{
		Type:      events.ListingPublished,
		ListingID: l.ID,
		UserID:    l.PosterID,
		Quantity:  l.Quantity,
		Remaining: l.Remaining,
	})
	s.log(ctx, slog.LevelInfo, "listing.publish", nil,
		slog.Int64("listing_id", l.ID),
		slog.Int("qty", l.Quantity),
	)
	return l.Clone(), nil
}

// Claimable returns the listing if it exists and still has stock.
func (s *Service) Claimable(id int64) (*listing.Listing, error) {
	l, ok := s.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", listing.ErrNotFound, id)
	}
	if l.Archived() {
		return l, ErrListingArchived
	}
	return l, nil
}

// Negotiation returns a pending negotiation by id.
func (s *Service) Negotiation(ctx context.Context, id string) (*negotiation.Negotiation, error) {
	return s.registry.Get(ctx, id)
}

// Request opens a negotiation. Stock is only soft-checked here and is
// checked again when the poster decides.
func (s *Service) Request(ctx context.Context, in RequestInput) (*negotiation.Negotiation, *listing.Listing, error) {
	l, err := s.Claimable(in.ListingID)
	if err == nil {
		switch {
		case in.Quantity < 1:
			err = fmt.Errorf("%w: %d", listing.ErrInvalidQuantity, in.Quantity)
		case in.Quantity > l.Remaining:
			err = fmt.Errorf("%w: requested %d, remaining %d", listing.ErrInsufficientStock, in.Quantity, l.Remaining)
		case strings.TrimSpace(in.PickupTime) == "":
			err = fmt.Errorf("%w: pickup time is required", ErrInvalidTransition)
		}
	}
	if err != nil {
		s.metrics.ClaimRequested(reason(err))
		s.log(ctx, slog.LevelInfo, "claim.request", err, slog.Int64("listing_id", in.ListingID), slog.Int("qty", in.Quantity))
		return nil, l, err
	}

	now := s.now().UTC()
	n := &negotiation.Negotiation{
		ID:           s.newID(),
		ListingID:    l.ID,
		PosterID:     l.PosterID,
		ClaimantID:   in.ClaimantID,
		ClaimantName: in.ClaimantName,
		Quantity:     in.Quantity,
		PickupTime:   strings.TrimSpace(in.PickupTime),
		State:        negotiation.StateRequested,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.registry.Put(ctx, n); err != nil {
		s.log(ctx, slog.LevelError, "claim.request", err, slog.Int64("listing_id", l.ID))
		return nil, l, fmt.Errorf("store negotiation: %w", err)
	}
	s.metrics.ClaimRequested("ok")
	s.emit(ctx, eventFor(events.ClaimRequested, n, l))
	s.log(ctx, slog.LevelInfo, "claim.request", nil,
		slog.Int64("listing_id", l.ID),
		slog.String("negotiation_id", n.ID),
		slog.Int("qty", n.Quantity),
	)
	return n, l, nil
}

// Approve lets the poster accept a pending request at the requested time.
func (s *Service) Approve(ctx context.Context, actorID int64, negotiationID string) (Outcome, error) {
	n, l, err := s.open(ctx, "approve", actorID, negotiationID, posterRole, negotiation.StateRequested)
	if err != nil {
		return Outcome{Negotiation: n, Listing: l}, err
	}
	return s.settle(ctx, "approve", n, negotiation.StateApproved, n.PickupTime, events.ClaimApproved)
}

// Reject ends a pending request without touching stock.
func (s *Service) Reject(ctx context.Context, actorID int64, negotiationID string) (Outcome, error) {
	n, l, err := s.open(ctx, "reject", actorID, negotiationID, posterRole, negotiation.StateRequested)
	if err != nil {
		return Outcome{Negotiation: n, Listing: l}, err
	}
	return s.finish(ctx, "reject", n, l, negotiation.StateRejected, events.ClaimRejected)
}

// ProposeReschedule moves a pending request to the claimant with a new time.
func (s *Service) ProposeReschedule(ctx context.Context, actorID int64, negotiationID, newTime string) (Outcome, error) {
	newTime = strings.TrimSpace(newTime)
	n, l, err := s.open(ctx, "reschedule", actorID, negotiationID, posterRole, negotiation.StateRequested)
	if err != nil {
		return Outcome{Negotiation: n, Listing: l}, err
	}
	if newTime == "" {
		return Outcome{Negotiation: n, Listing: l}, fmt.Errorf("%w: proposed time is required", ErrInvalidTransition)
	}
	n.State = negotiation.StateReschedulePending
	n.ProposedTime = newTime
	n.UpdatedAt = s.now().UTC()
	if err := s.registry.Put(ctx, n); err != nil {
		s.log(ctx, slog.LevelError, "claim.reschedule", err, slog.String("negotiation_id", n.ID))
		return Outcome{Negotiation: n, Listing: l}, fmt.Errorf("store negotiation: %w", err)
	}
	s.metrics.Decision("reschedule", "ok")
	ev := eventFor(events.RescheduleProposed, n, l)
	ev.PickupTime = newTime
	s.emit(ctx, ev)
	s.log(ctx, slog.LevelInfo, "claim.reschedule", nil,
		slog.String("negotiation_id", n.ID),
		slog.Int64("listing_id", n.ListingID),
		slog.String("state", string(n.State)),
	)
	return Outcome{Negotiation: n, Listing: l}, nil
}

// Accept lets the claimant take the proposed time; it then behaves like Approve.
func (s *Service) Accept(ctx context.Context, actorID int64, negotiationID string) (Outcome, error) {
	n, l, err := s.open(ctx, "accept", actorID, negotiationID, claimantRole, negotiation.StateReschedulePending)
	if err != nil {
		return Outcome{Negotiation: n, Listing: l}, err
	}
	return s.settle(ctx, "accept", n, negotiation.StateAccepted, n.ProposedTime, events.RescheduleAccepted)
}

// Decline lets the claimant refuse the proposed time, ending the negotiation.
func (s *Service) Decline(ctx context.Context, actorID int64, negotiationID string) (Outcome, error) {
	n, l, err := s.open(ctx, "decline", actorID, negotiationID, claimantRole, negotiation.StateReschedulePending)
	if err != nil {
		return Outcome{Negotiation: n, Listing: l}, err
	}
	return s.finish(ctx, "decline", n, l, negotiation.StateDeclined, events.RescheduleDeclined)
}

type role int

const (
	posterRole role = iota
	claimantRole
)

// open loads a negotiation and checks actor, state and listing presence.
// A missing listing terminates the negotiation.
func (s *Service) open(ctx context.Context, decision string, actorID int64, id string, who role, want negotiation.State) (*negotiation.Negotiation, *listing.Listing, error) {
	n, err := s.registry.Get(ctx, id)
	if err != nil {
		s.metrics.Decision(decision, reason(err))
		s.log(ctx, slog.LevelInfo, "claim."+decision, err, slog.String("negotiation_id", id))
		return nil, nil, err
	}

	allowed := n.PosterID
	if who == claimantRole {
		allowed = n.ClaimantID
	}
	if actorID != allowed {
		err = fmt.Errorf("%w: user %d", ErrNotAuthorized, actorID)
		s.metrics.Decision(decision, reason(err))
		s.log(ctx, slog.LevelWarn, "claim."+decision, err, slog.String("negotiation_id", id))
		return n, nil, err
	}
	if n.State != want {
		err = fmt.Errorf("%w: %s from %s", ErrInvalidTransition, decision, n.State)
		s.metrics.Decision(decision, reason(err))
		s.log(ctx, slog.LevelInfo, "claim."+decision, err, slog.String("negotiation_id", id))
		return n, nil, err
	}

	l, ok := s.store.Get(n.ListingID)
	if !ok {
		err = fmt.Errorf("%w: id %d", listing.ErrNotFound, n.ListingID)
		s.terminate(ctx, decision, n, err)
		return n, nil, err
	}
	return n, l, nil
}

// settle applies the claim to the store. Any failure ends the negotiation
// without changing stock.
func (s *Service) settle(ctx context.Context, decision string, n *negotiation.Negotiation, final negotiation.State, pickup string, evType events.Type) (Outcome, error) {
	res, err := s.store.ApplyClaim(ctx, n.ListingID, listing.Claim{
		UserID:   n.ClaimantID,
		Quantity: n.Quantity,
		Time:     pickup,
	})
	if err != nil {
		current, _ := s.store.Get(n.ListingID)
		s.terminate(ctx, decision, n, err)
		return Outcome{Negotiation: n, Listing: current}, err
	}

	n.State = final
	n.UpdatedAt = s.now().UTC()
	s.drop(ctx, n)
	s.metrics.Decision(decision, "ok")

	ev := eventFor(evType, n, res.Listing)
	ev.PickupTime = pickup
	s.emit(ctx, ev)
	if res.Archived {
		s.metrics.Archived()
		s.emit(ctx, events.Event{
			Type:      events.ListingArchived,
			ListingID: res.Listing.ID,
			UserID:    res.Listing.PosterID,
			Quantity:  res.Listing.Quantity,
			Remaining: 0,
		})
	}
	s.log(ctx, slog.LevelInfo, "claim."+decision, nil,
		slog.String("negotiation_id", n.ID),
		slog.Int64("listing_id", n.ListingID),
		slog.Int("qty", n.Quantity),
		slog.Int("remaining", res.Listing.Remaining),
		slog.Bool("archived", res.Archived),
	)
	return Outcome{Negotiation: n, Listing: res.Listing, Archived: res.Archived}, nil
}

// finish ends a negotiation without a claim.
func (s *Service) finish(ctx context.Context, decision string, n *negotiation.Negotiation, l *listing.Listing, final negotiation.State, evType events.Type) (Outcome, error) {
	n.State = final
	n.UpdatedAt = s.now().UTC()
	s.drop(ctx, n)
	s.metrics.Decision(decision, "ok")
	s.emit(ctx, eventFor(evType, n, l))
	s.log(ctx, slog.LevelInfo, "claim."+decision, nil,
		slog.String("negotiation_id", n.ID),
		slog.Int64("listing_id", n.ListingID),
		slog.String("state", string(final)),
	)
	return Outcome{Negotiation: n, Listing: l}, nil
}

func (s *Service) terminate(ctx context.Context, decision string, n *negotiation.Negotiation, cause error) {
	s.drop(ctx, n)
	s.metrics.Decision(decision, reason(cause))
	ev := eventFor(events.NegotiationTerminated, n, nil)
	ev.Reason = reason(cause)
	s.emit(ctx, ev)
	s.log(ctx, slog.LevelInfo, "claim."+decision, cause,
		slog.String("negotiation_id", n.ID),
		slog.Int64("listing_id", n.ListingID),
		slog.String("outcome", "terminated"),
	)
}

func (s *Service) drop(ctx context.Context, n *negotiation.Negotiation) {
	if err := s.registry.Delete(ctx, n.ID); err != nil {
		s.log(ctx, slog.LevelWarn, "negotiation.delete", err, slog.String("negotiation_id", n.ID))
	}
}

func (s *Service) emit(ctx context.Context, ev events.Event) {
	if ev.At.IsZero() {
		ev.At = s.now().UTC()
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		logger.LogEvent(ctx, logger.Events, slog.LevelWarn, "events.publish",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
			slog.Int64("listing_id", ev.ListingID),
		)
	}
}

func (s *Service) log(ctx context.Context, level slog.Level, event string, err error, attrs ...slog.Attr) {
	head := []slog.Attr{slog.String("status", logger.Status(err))}
	if err != nil {
		head = append(head, slog.String("err", err.Error()), slog.String("err_code", reason(err)))
	}
	logger.LogEvent(ctx, logger.Claims, level, event, append(head, attrs...)...)
}

func eventFor(t events.Type, n *negotiation.Negotiation, l *listing.Listing) events.Event {
	ev := events.Event{
		Type:          t,
		ListingID:     n.ListingID,
		NegotiationID: n.ID,
		UserID:        n.ClaimantID,
		Quantity:      n.Quantity,
		PickupTime:    n.PickupTime,
	}
	if l != nil {
		ev.Remaining = l.Remaining
	}
	return ev
}

// reason maps sentinel errors to stable label values.
func reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, listing.ErrNotFound):
		return "listing_not_found"
	case errors.Is(err, listing.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, listing.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ErrListingArchived):
		return "archived"
	case errors.Is(err, negotiation.ErrNotFound):
		return "negotiation_not_found"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	default:
		return "error"
	}
}
