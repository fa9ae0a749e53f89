package listing

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimListScan(t *testing.T) {
	var c claimList
	require.NoError(t, c.Scan([]byte(`[{"user_id":1,"qty":2,"time":"now"}]`)))
	assert.Equal(t, claimList{{UserID: 1, Quantity: 2, Time: "now"}}, c)

	require.NoError(t, c.Scan(nil))
	assert.Empty(t, c)

	assert.Error(t, c.Scan(42))

	v, err := claimList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), v)
}

// TestPostgresBackendIntegration runs against REDISTBOT_TEST_PG_DSN when set.
func TestPostgresBackendIntegration(t *testing.T) {
	dsn := os.Getenv("REDISTBOT_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("REDISTBOT_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	schema, err := os.ReadFile("../../migrations/0001_listings.up.sql")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS listings")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, string(schema))
	require.NoError(t, err)

	store := NewStore(NewPostgresBackend(db))
	_, err = store.Create(ctx, sampleListing(11, 4))
	require.NoError(t, err)
	_, err = store.ApplyClaim(ctx, 11, Claim{UserID: 3, Quantity: 4, Time: "noon"})
	require.NoError(t, err)

	reloaded := NewStore(NewPostgresBackend(db))
	require.Equal(t, 1, reloaded.Load(ctx))
	got, ok := reloaded.Get(11)
	require.True(t, ok)
	assert.True(t, got.Archived())
	assert.Len(t, got.Claims, 1)
}
