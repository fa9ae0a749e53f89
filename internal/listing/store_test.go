package listing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBackend struct {
	data    map[int64]*Listing
	loadErr error
	saveErr error
	saves   int
}

func (b *memBackend) Load(context.Context) (map[int64]*Listing, error) {
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	out := make(map[int64]*Listing, len(b.data))
	for id, l := range b.data {
		out[id] = l.Clone()
	}
	return out, nil
}

func (b *memBackend) Save(_ context.Context, listings map[int64]*Listing) error {
	b.saves++
	if b.saveErr != nil {
		return b.saveErr
	}
	b.data = make(map[int64]*Listing, len(listings))
	for id, l := range listings {
		b.data[id] = l.Clone()
	}
	return nil
}

func sampleListing(id int64, qty int) Listing {
	return Draft{
		PosterID:   100,
		PosterName: "Donor",
		Item:       "Bread",
		Quantity:   qty,
		Size:       "NA",
		Expiry:     "01/11/26",
		Location:   "Hall B",
	}.Listing(id)
}

func TestStoreCreateAndGet(t *testing.T) {
	backend := &memBackend{}
	store := NewStore(backend)
	ctx := context.Background()

	id, err := store.Create(ctx, sampleListing(7, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, 1, backend.saves)

	got, ok := store.Get(7)
	require.True(t, ok)
	assert.Equal(t, 10, got.Remaining)
	assert.Equal(t, StatusOpen, got.Status())

	got.Remaining = 0
	again, _ := store.Get(7)
	assert.Equal(t, 10, again.Remaining, "Get must return a copy")

	_, err = store.Create(ctx, sampleListing(7, 3))
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = store.Create(ctx, sampleListing(8, 0))
	assert.ErrorIs(t, err, ErrInvalid)

	_, ok = store.Get(99)
	assert.False(t, ok)
}

func TestStoreApplyClaimScenario(t *testing.T) {
	store := NewStore(&memBackend{})
	ctx := context.Background()
	_, err := store.Create(ctx, sampleListing(1, 10))
	require.NoError(t, err)

	res, err := store.ApplyClaim(ctx, 1, Claim{UserID: 1, Quantity: 6, Time: "Mon 3pm"})
	require.NoError(t, err)
	assert.False(t, res.Archived)
	assert.Equal(t, 4, res.Listing.Remaining)
	assert.Equal(t, []Claim{{UserID: 1, Quantity: 6, Time: "Mon 3pm"}}, res.Listing.Claims)

	_, err = store.ApplyClaim(ctx, 1, Claim{UserID: 2, Quantity: 5})
	require.ErrorIs(t, err, ErrInsufficientStock)
	unchanged, _ := store.Get(1)
	assert.Equal(t, 4, unchanged.Remaining)
	assert.Len(t, unchanged.Claims, 1)

	res, err = store.ApplyClaim(ctx, 1, Claim{UserID: 2, Quantity: 4, Time: "Tue"})
	require.NoError(t, err)
	assert.True(t, res.Archived)
	assert.Equal(t, 0, res.Listing.Remaining)
	assert.Equal(t, StatusArchived, res.Listing.Status())
	require.NoError(t, res.Listing.Validate())

	_, err = store.ApplyClaim(ctx, 1, Claim{UserID: 3, Quantity: 1})
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestStoreApplyClaimErrors(t *testing.T) {
	store := NewStore(&memBackend{})
	ctx := context.Background()

	_, err := store.ApplyClaim(ctx, 5, Claim{UserID: 1, Quantity: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.ApplyClaim(ctx, 5, Claim{UserID: 1, Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestStoreWriteFailureKeepsMemoryState(t *testing.T) {
	backend := &memBackend{saveErr: errors.New("disk full")}
	store := NewStore(backend)
	var observed []error
	store.OnWrite(func(err error) { observed = append(observed, err) })
	ctx := context.Background()

	_, err := store.Create(ctx, sampleListing(3, 2))
	require.NoError(t, err)
	res, err := store.ApplyClaim(ctx, 3, Claim{UserID: 9, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Listing.Remaining)

	require.Len(t, observed, 2)
	assert.ErrorIs(t, observed[0], ErrStorageWrite)
	assert.ErrorIs(t, store.Save(ctx), ErrStorageWrite)
}

func TestStoreLoadSkipsInconsistentListings(t *testing.T) {
	good := sampleListing(1, 5)
	good.Remaining = 3
	good.Claims = []Claim{{UserID: 2, Quantity: 2}}

	drifted := sampleListing(2, 5)
	drifted.Remaining = 4

	overdrawn := sampleListing(3, 5)
	overdrawn.Remaining = 6

	backend := &memBackend{data: map[int64]*Listing{1: &good, 2: &drifted, 3: &overdrawn, 4: nil}}
	store := NewStore(backend)

	assert.Equal(t, 1, store.Load(context.Background()))
	_, ok := store.Get(1)
	assert.True(t, ok)
	_, ok = store.Get(2)
	assert.False(t, ok)
}

func TestStoreLoadFailureStartsEmpty(t *testing.T) {
	store := NewStore(&memBackend{loadErr: errors.New("corrupt")})
	assert.Equal(t, 0, store.Load(context.Background()))
	assert.Empty(t, store.List())
}

func TestStoreListOrdered(t *testing.T) {
	store := NewStore(&memBackend{})
	ctx := context.Background()
	for _, id := range []int64{30, 10, 20} {
		_, err := store.Create(ctx, sampleListing(id, 1))
		require.NoError(t, err)
	}
	var ids []int64
	for _, l := range store.List() {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []int64{10, 20, 30}, ids)
}

func TestListingValidate(t *testing.T) {
	l := sampleListing(1, 3)
	require.NoError(t, l.Validate())

	l.Claims = []Claim{{UserID: 1, Quantity: 0}}
	assert.ErrorIs(t, l.Validate(), ErrInvalid)

	l = sampleListing(0, 3)
	assert.ErrorIs(t, l.Validate(), ErrInvalid)

	l = sampleListing(1, 3)
	l.Item = "  "
	assert.ErrorIs(t, l.Validate(), ErrInvalid)
}
