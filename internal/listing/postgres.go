package listing

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// claimList stores the claims slice in a JSONB column.
type claimList []Claim

// Value implements driver.Valuer.
func (c claimList) Value() (driver.Value, error) {
	if c == nil {
		c = claimList{}
	}
	return json.Marshal([]Claim(c))
}

// Scan implements sql.Scanner.
func (c *claimList) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*c = claimList{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("claims: unsupported type %T", src)
	}
	var out []Claim
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*c = out
	return nil
}

type listingRow struct {
	ID         int64     `db:"id"`
	PosterID   int64     `db:"poster_id"`
	PosterName string    `db:"poster_name"`
	Item       string    `db:"item"`
	Quantity   int       `db:"qty"`
	Remaining  int       `db:"remaining"`
	Size       string    `db:"size"`
	Expiry     string    `db:"expiry"`
	Location   string    `db:"location"`
	PhotoID    string    `db:"photo"`
	Claims     claimList `db:"claims"`
}

func rowFrom(l *Listing) listingRow {
	return listingRow{
		ID:         l.ID,
		PosterID:   l.PosterID,
		PosterName: l.PosterName,
		Item:       l.Item,
		Quantity:   l.Quantity,
		Remaining:  l.Remaining,
		Size:       l.Size,
		Expiry:     l.Expiry,
		Location:   l.Location,
		PhotoID:    l.PhotoID,
		Claims:     claimList(l.Claims),
	}
}

func (r listingRow) listing() *Listing {
	return &Listing{
		ID:         r.ID,
		PosterID:   r.PosterID,
		PosterName: r.PosterName,
		Item:       r.Item,
		Quantity:   r.Quantity,
		Remaining:  r.Remaining,
		Size:       r.Size,
		Expiry:     r.Expiry,
		Location:   r.Location,
		PhotoID:    r.PhotoID,
		Claims:     []Claim(r.Claims),
	}
}

const (
	selectListingsSQL = `SELECT id, poster_id, poster_name, item, qty, remaining, size, expiry, location, photo, claims FROM listings`

	upsertListingSQL = `
INSERT INTO listings (id, poster_id, poster_name, item, qty, remaining, size, expiry, location, photo, claims, updated_at)
VALUES (:id, :poster_id, :poster_name, :item, :qty, :remaining, :size, :expiry, :location, :photo, :claims, now())
ON CONFLICT (id) DO UPDATE SET
    remaining  = EXCLUDED.remaining,
    claims     = EXCLUDED.claims,
    updated_at = now()
WHERE listings.remaining IS DISTINCT FROM EXCLUDED.remaining
   OR listings.claims IS DISTINCT FROM EXCLUDED.claims`
)

// PostgresBackend keeps listings in the listings table. Descriptive fields
// are written once; later saves only move remaining stock and claims.
type PostgresBackend struct {
	db *sqlx.DB
}

// NewPostgresBackend wraps an open connection pool.
func NewPostgresBackend(db *sqlx.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

// Load reads every listing row.
func (b *PostgresBackend) Load(ctx context.Context) (map[int64]*Listing, error) {
	var rows []listingRow
	if err := b.db.SelectContext(ctx, &rows, selectListingsSQL); err != nil {
		return nil, fmt.Errorf("select listings: %w", err)
	}
	out := make(map[int64]*Listing, len(rows))
	for _, r := range rows {
		out[r.ID] = r.listing()
	}
	return out, nil
}

// Save upserts the whole snapshot in one transaction.
func (b *PostgresBackend) Save(ctx context.Context, listings map[int64]*Listing) (err error) {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrStorageWrite, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, rbErr)
			}
		}
	}()

	stmt, err := tx.PrepareNamedContext(ctx, upsertListingSQL)
	if err != nil {
		return fmt.Errorf("%w: prepare: %w", ErrStorageWrite, err)
	}
	defer stmt.Close()

	for _, l := range listings {
		if _, err = stmt.ExecContext(ctx, rowFrom(l)); err != nil {
			return fmt.Errorf("%w: upsert %d: %w", ErrStorageWrite, l.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrStorageWrite, err)
	}
	return nil
}
