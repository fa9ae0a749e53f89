package listing

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackendRoundTripThroughStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.json")
	ctx := context.Background()

	store := NewStore(NewFileBackend(path))
	_, err := store.Create(ctx, sampleListing(42, 3))
	require.NoError(t, err)
	_, err = store.ApplyClaim(ctx, 42, Claim{UserID: 5, Quantity: 2, Time: "Fri 10:00"})
	require.NoError(t, err)

	reloaded := NewStore(NewFileBackend(path))
	require.Equal(t, 1, reloaded.Load(ctx))
	got, ok := reloaded.Get(42)
	require.True(t, ok)
	assert.Equal(t, 1, got.Remaining)
	assert.Equal(t, []Claim{{UserID: 5, Quantity: 2, Time: "Fri 10:00"}}, got.Claims)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileBackendLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.json")
	backend := NewFileBackend(path)
	l := sampleListing(9, 2)
	require.NoError(t, backend.Save(context.Background(), map[int64]*Listing{9: &l}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	entry, ok := raw["9"]
	require.True(t, ok)
	for _, key := range []string{"poster_id", "poster_name", "item", "qty", "remaining", "size", "expiry", "location", "claims"} {
		assert.Contains(t, entry, key)
	}
	assert.NotContains(t, entry, "photo")
	assert.NotContains(t, entry, "ID")
}

func TestFileBackendLoadEdgeCases(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	got, err := NewFileBackend(filepath.Join(dir, "missing.json")).Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	malformed := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(malformed, []byte("{not json"), 0o644))
	_, err = NewFileBackend(malformed).Load(ctx)
	assert.Error(t, err)

	store := NewStore(NewFileBackend(malformed))
	assert.Equal(t, 0, store.Load(ctx))
}

func TestFileBackendSkipsInvalidKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.json")
	ctx := context.Background()
	l := sampleListing(7, 2)
	require.NoError(t, NewFileBackend(path).Save(ctx, map[int64]*Listing{7: &l}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	raw["abc"] = raw["7"]
	raw["-3"] = raw["7"]
	raw["0"] = raw["7"]
	data, err = json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := NewFileBackend(path).Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(7), got[7].ID)

	store := NewStore(NewFileBackend(path))
	assert.Equal(t, 1, store.Load(ctx))
}

func TestFileBackendSaveIntoMissingDir(t *testing.T) {
	backend := NewFileBackend(filepath.Join(t.TempDir(), "nope", "listings.json"))
	err := backend.Save(context.Background(), map[int64]*Listing{})
	assert.ErrorIs(t, err, ErrStorageWrite)
}
