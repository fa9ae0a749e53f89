package claims

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/redistbot/internal/events"
	"github.com/m3rciful/redistbot/internal/listing"
	"github.com/m3rciful/redistbot/internal/negotiation"
)

const (
	poster   int64 = 100
	claimerA int64 = 201
	claimerB int64 = 202
)

type nopBackend struct{}

func (nopBackend) Load(context.Context) (map[int64]*listing.Listing, error) {
	return map[int64]*listing.Listing{}, nil
}
func (nopBackend) Save(context.Context, map[int64]*listing.Listing) error { return nil }

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *recorder) Close() {}

func (r *recorder) count(t events.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

type fixture struct {
	svc      *Service
	store    *listing.Store
	registry *negotiation.MemoryRegistry
	events   *recorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := listing.NewStore(nopBackend{})
	registry := negotiation.NewMemoryRegistry()
	rec := &recorder{}
	seq := 0
	svc := NewService(store, registry,
		WithEvents(rec),
		WithClock(func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }),
		WithIDGenerator(func() string { seq++; return fmt.Sprintf("n%d", seq) }),
	)
	return fixture{svc: svc, store: store, registry: registry, events: rec}
}

func (f fixture) publish(t *testing.T, id int64, qty int) {
	t.Helper()
	_, err := f.svc.Publish(context.Background(), listing.Draft{
		PosterID: poster, PosterName: "Donor", Item: "Rice", Quantity: qty,
		Size: "5kg", Expiry: "30/11/26", Location: "Dock 2",
	}, id)
	require.NoError(t, err)
}

func (f fixture) request(t *testing.T, id, who int64, qty int) *negotiation.Negotiation {
	t.Helper()
	n, _, err := f.svc.Request(context.Background(), RequestInput{
		ListingID: id, ClaimantID: who, ClaimantName: "c", Quantity: qty, PickupTime: "Mon 10:00",
	})
	require.NoError(t, err)
	return n
}

func TestClaimScenarioArchivesExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.publish(t, 1, 10)

	a := f.request(t, 1, claimerA, 6)
	b := f.request(t, 1, claimerB, 5)
	pending, err := f.svc.Negotiation(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, negotiation.StateRequested, pending.State)

	out, err := f.svc.Approve(ctx, poster, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, out.Listing.Remaining)
	assert.False(t, out.Archived)
	assert.Equal(t, negotiation.StateApproved, out.Negotiation.State)
	assert.Equal(t, []listing.Claim{{UserID: claimerA, Quantity: 6, Time: "Mon 10:00"}}, out.Listing.Claims)

	out, err = f.svc.Approve(ctx, poster, b.ID)
	require.ErrorIs(t, err, listing.ErrInsufficientStock)
	require.NotNil(t, out.Listing)
	assert.Equal(t, 4, out.Listing.Remaining)
	assert.Len(t, out.Listing.Claims, 1)
	_, err = f.registry.Get(ctx, b.ID)
	assert.ErrorIs(t, err, negotiation.ErrNotFound, "refused negotiation must end")

	b2 := f.request(t, 1, claimerB, 4)
	out, err = f.svc.Approve(ctx, poster, b2.ID)
	require.NoError(t, err)
	assert.True(t, out.Archived)
	assert.Equal(t, 0, out.Listing.Remaining)
	assert.Equal(t, listing.StatusArchived, out.Listing.Status())
	assert.Equal(t, 1, f.events.count(events.ListingArchived))

	_, _, err = f.svc.Request(ctx, RequestInput{ListingID: 1, ClaimantID: claimerA, Quantity: 1, PickupTime: "x"})
	assert.ErrorIs(t, err, ErrListingArchived)
	assert.Equal(t, 1, f.events.count(events.ListingArchived))
	assert.Equal(t, 0, f.registry.Len())
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.publish(t, 2, 3)

	_, _, err := f.svc.Request(ctx, RequestInput{ListingID: 99, ClaimantID: claimerA, Quantity: 1, PickupTime: "x"})
	assert.ErrorIs(t, err, listing.ErrNotFound)

	_, _, err = f.svc.Request(ctx, RequestInput{ListingID: 2, ClaimantID: claimerA, Quantity: 0, PickupTime: "x"})
	assert.ErrorIs(t, err, listing.ErrInvalidQuantity)

	_, l, err := f.svc.Request(ctx, RequestInput{ListingID: 2, ClaimantID: claimerA, Quantity: 4, PickupTime: "x"})
	assert.ErrorIs(t, err, listing.ErrInsufficientStock)
	require.NotNil(t, l)
	assert.Equal(t, 3, l.Remaining)

	_, _, err = f.svc.Request(ctx, RequestInput{ListingID: 2, ClaimantID: claimerA, Quantity: 1, PickupTime: "  "})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Equal(t, 0, f.registry.Len())
}

func TestDecisionAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.publish(t, 3, 5)
	n := f.request(t, 3, claimerA, 2)

	_, err := f.svc.Approve(ctx, claimerA, n.ID)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	_, err = f.svc.Reject(ctx, claimerB, n.ID)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	_, err = f.svc.ProposeReschedule(ctx, claimerA, n.ID, "Tue")
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = f.svc.Accept(ctx, claimerA, n.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition, "accept needs a pending reschedule")

	_, err = f.svc.ProposeReschedule(ctx, poster, n.ID, "Tue 12:00")
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, poster, n.ID)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	_, err = f.svc.Approve(ctx, poster, n.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.Approve(ctx, poster, "unknown")
	assert.ErrorIs(t, err, negotiation.ErrNotFound)
}

func TestRejectEndsWithoutStockChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.publish(t, 4, 5)
	n := f.request(t, 4, claimerA, 2)

	out, err := f.svc.Reject(ctx, poster, n.ID)
	require.NoError(t, err)
	assert.Equal(t, negotiation.StateRejected, out.Negotiation.State)
	l, _ := f.store.Get(4)
	assert.Equal(t, 5, l.Remaining)
	assert.Empty(t, l.Claims)

	_, err = f.svc.Reject(ctx, poster, n.ID)
	assert.ErrorIs(t, err, negotiation.ErrNotFound)
	_, err = f.svc.Negotiation(ctx, n.ID)
	assert.ErrorIs(t, err, negotiation.ErrNotFound)
}

func TestRescheduleDecline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.publish(t, 5, 5)
	n := f.request(t, 5, claimerA, 2)

	out, err := f.svc.ProposeReschedule(ctx, poster, n.ID, "12 Oct 2026, 14:30")
	require.NoError(t, err)
	assert.Equal(t, negotiation.StateReschedulePending, out.Negotiation.State)

	out, err = f.svc.Decline(ctx, claimerA, n.ID)
	require.NoError(t, err)
	assert.Equal(t, negotiation.StateDeclined, out.Negotiation.State)
	l, _ := f.store.Get(5)
	assert.Equal(t, 5, l.Remaining)
	assert.Equal(t, 1, f.events.count(events.RescheduleDeclined))
	assert.Equal(t, 0, f.registry.Len())
}

func TestRescheduleAcceptRecordsNewTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.publish(t, 6, 5)
	n := f.request(t, 6, claimerA, 2)

	_, err := f.svc.ProposeReschedule(ctx, poster, n.ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.ProposeReschedule(ctx, poster, n.ID, "12 Oct 2026, 14:30")
	require.NoError(t, err)

	out, err := f.svc.Accept(ctx, claimerA, n.ID)
	require.NoError(t, err)
	assert.Equal(t, negotiation.StateAccepted, out.Negotiation.State)
	assert.Equal(t, 3, out.Listing.Remaining)
	assert.Equal(t, []listing.Claim{{UserID: claimerA, Quantity: 2, Time: "12 Oct 2026, 14:30"}}, out.Listing.Claims)
	assert.Equal(t, "12 Oct 2026, 14:30", out.Negotiation.AgreedTime())
}

func TestRescheduleAcceptRechecksStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.publish(t, 7, 3)
	slow := f.request(t, 7, claimerA, 2)
	fast := f.request(t, 7, claimerB, 2)

	_, err := f.svc.ProposeReschedule(ctx, poster, slow.ID, "later")
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, poster, fast.ID)
	require.NoError(t, err)

	out, err := f.svc.Accept(ctx, claimerA, slow.ID)
	require.ErrorIs(t, err, listing.ErrInsufficientStock)
	assert.Equal(t, 1, out.Listing.Remaining)
}

func TestDecisionOnMissingListingTerminates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := &negotiation.Negotiation{
		ID: "orphan", ListingID: 404, PosterID: poster, ClaimantID: claimerA,
		Quantity: 1, PickupTime: "now", State: negotiation.StateRequested,
	}
	require.NoError(t, f.registry.Put(ctx, n))

	out, err := f.svc.Approve(ctx, poster, "orphan")
	require.ErrorIs(t, err, listing.ErrNotFound)
	assert.Nil(t, out.Listing)
	_, err = f.registry.Get(ctx, "orphan")
	assert.ErrorIs(t, err, negotiation.ErrNotFound)
	assert.Equal(t, 1, f.events.count(events.NegotiationTerminated))
}

func TestPublishDuplicate(t *testing.T) {
	f := newFixture(t)
	f.publish(t, 8, 1)
	_, err := f.svc.Publish(context.Background(), listing.Draft{PosterID: poster, Item: "x", Quantity: 1}, 8)
	assert.ErrorIs(t, err, listing.ErrDuplicate)
	assert.Equal(t, 1, f.events.count(events.ListingPublished))
}

func TestClaimable(t *testing.T) {
	f := newFixture(t)
	f.publish(t, 9, 1)

	l, err := f.svc.Claimable(9)
	require.NoError(t, err)
	assert.Equal(t, "Rice", l.Item)

	_, err = f.svc.Claimable(10)
	assert.ErrorIs(t, err, listing.ErrNotFound)

	n := f.request(t, 9, claimerA, 1)
	_, err = f.svc.Approve(context.Background(), poster, n.ID)
	require.NoError(t, err)
	_, err = f.svc.Claimable(9)
	assert.ErrorIs(t, err, ErrListingArchived)
}
