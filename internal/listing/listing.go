// Package listing owns donated listings: the model, the in-memory store and
// its durable backends.
package listing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a listing id is absent from the store.
	ErrNotFound = errors.New("listing not found")
	// ErrInsufficientStock is returned when a claim exceeds the remaining quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidQuantity is returned for non-positive claim or listing quantities.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrDuplicate is returned when creating a listing under an id already in use.
	ErrDuplicate = errors.New("listing already exists")
	// ErrInvalid marks a listing whose fields break the model invariants.
	ErrInvalid = errors.New("invalid listing")
	// ErrStorageWrite wraps failures to persist a snapshot.
	ErrStorageWrite = errors.New("listing storage write failed")
)

// Status is the lifecycle state of a listing.
type Status string

const (
	StatusOpen     Status = "open"
	StatusArchived Status = "archived"
)

// Claim is an approved allocation of stock to a claimant.
type Claim struct {
	UserID   int64  `json:"user_id"`
	Quantity int    `json:"qty"`
	Time     string `json:"time"`
}

// Listing is a published donation offer. ID is the broadcast post id.
type Listing struct {
	ID         int64   `json:"-"`
	PosterID   int64   `json:"poster_id"`
	PosterName string  `json:"poster_name"`
	Item       string  `json:"item"`
	Quantity   int     `json:"qty"`
	Remaining  int     `json:"remaining"`
	Size       string  `json:"size"`
	Expiry     string  `json:"expiry"`
	Location   string  `json:"location"`
	PhotoID    string  `json:"photo,omitempty"`
	Claims     []Claim `json:"claims"`
}

// Status reports Archived once no stock is left.
func (l *Listing) Status() Status {
	if l.Remaining == 0 {
		return StatusArchived
	}
	return StatusOpen
}

// Archived is shorthand for Status() == StatusArchived.
func (l *Listing) Archived() bool {
	return l.Status() == StatusArchived
}

// Claimed sums the quantities of all recorded claims.
func (l *Listing) Claimed() int {
	total := 0
	for _, c := range l.Claims {
		total += c.Quantity
	}
	return total
}

// Validate checks the id, the quantity bounds and that remaining stock
// matches the claims history.
func (l *Listing) Validate() error {
	switch {
	case l.ID <= 0:
		return fmt.Errorf("%w: id %d must be positive", ErrInvalid, l.ID)
	case l.PosterID == 0:
		return fmt.Errorf("%w: poster is required", ErrInvalid)
	case strings.TrimSpace(l.Item) == "":
		return fmt.Errorf("%w: item is required", ErrInvalid)
	case l.Quantity < 1:
		return fmt.Errorf("%w: qty %d must be at least 1", ErrInvalid, l.Quantity)
	case l.Remaining < 0 || l.Remaining > l.Quantity:
		return fmt.Errorf("%w: remaining %d outside [0, %d]", ErrInvalid, l.Remaining, l.Quantity)
	}
	for i, c := range l.Claims {
		if c.Quantity < 1 {
			return fmt.Errorf("%w: claim %d has qty %d", ErrInvalid, i, c.Quantity)
		}
	}
	if claimed := l.Claimed(); l.Quantity-claimed != l.Remaining {
		return fmt.Errorf("%w: remaining %d does not match qty %d minus claimed %d",
			ErrInvalid, l.Remaining, l.Quantity, claimed)
	}
	return nil
}

// Clone returns a deep copy so callers never share the claims slice with the store.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	out := *l
	if l.Claims != nil {
		out.Claims = append([]Claim(nil), l.Claims...)
	}
	return &out
}

// Draft collects submission fields before a listing is published.
type Draft struct {
	PosterID   int64
	PosterName string
	Item       string
	Quantity   int
	Size       string
	Expiry     string
	Location   string
	PhotoID    string
}

// Listing turns the draft into a fresh open listing under the given post id.
func (d Draft) Listing(id int64) Listing {
	return Listing{
		ID:         id,
		PosterID:   d.PosterID,
		PosterName: d.PosterName,
		Item:       d.Item,
		Quantity:   d.Quantity,
		Remaining:  d.Quantity,
		Size:       d.Size,
		Expiry:     d.Expiry,
		Location:   d.Location,
		PhotoID:    d.PhotoID,
		Claims:     []Claim{},
	}
}
