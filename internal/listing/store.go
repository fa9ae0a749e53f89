package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/m3rciful/redistbot/core/logger"
)

// Backend persists full snapshots of the listing map.
type Backend interface {
	Load(ctx context.Context) (map[int64]*Listing, error)
	Save(ctx context.Context, listings map[int64]*Listing) error
}

// WriteObserver is notified after every persistence attempt.
type WriteObserver func(err error)

// Result describes the listing after a claim was applied.
type Result struct {
	Listing *Listing
	// Archived is true only for the claim that drove remaining stock to zero.
	Archived bool
}

// Store is the single owner of the listing map. Every mutation is flushed
// to the backend; a failed flush is logged and the in-memory state stays
// authoritative.
type Store struct {
	mu       sync.Mutex
	backend  Backend
	listings map[int64]*Listing
	onWrite  WriteObserver
}

// NewStore creates an empty store over backend. Call Load to read prior state.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend, listings: make(map[int64]*Listing)}
}

// OnWrite registers an observer for persistence outcomes.
func (s *Store) OnWrite(fn WriteObserver) {
	s.mu.Lock()
	s.onWrite = fn
	s.mu.Unlock()
}

// Load replaces the in-memory map with the backend snapshot. Unreadable
// storage yields an empty store and inconsistent listings are skipped.
// It returns the number of listings kept.
func (s *Store) Load(ctx context.Context) int {
	start := time.Now()
	loaded, err := s.backend.Load(ctx)
	if err != nil {
		logger.LogEvent(ctx, logger.Store, slog.LevelWarn, "store.load",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
			slog.String("outcome", "empty"),
		)
		loaded = nil
	}

	kept := make(map[int64]*Listing, len(loaded))
	for id, l := range loaded {
		if l == nil {
			continue
		}
		l.ID = id
		if vErr := l.Validate(); vErr != nil {
			logger.LogEvent(ctx, logger.Store, slog.LevelWarn, "store.load.skip",
				slog.Int64("listing_id", id),
				slog.String("err", vErr.Error()),
			)
			continue
		}
		if l.Claims == nil {
			l.Claims = []Claim{}
		}
		kept[id] = l
	}

	s.mu.Lock()
	s.listings = kept
	s.mu.Unlock()

	logger.LogEvent(ctx, logger.Store, slog.LevelInfo, "store.load",
		slog.String("status", "ok"),
		slog.Int("count", len(kept)),
		slog.Int("skipped", len(loaded)-len(kept)),
		slog.Duration("duration", time.Since(start)),
	)
	return len(kept)
}

// Save flushes the current map to the backend.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

// Create inserts a new listing under its externally supplied id and persists.
func (s *Store) Create(ctx context.Context, l Listing) (int64, error) {
	if l.Claims == nil {
		l.Claims = []Claim{}
	}
	if err := l.Validate(); err != nil {
		return 0, err
	}
	if len(l.Claims) != 0 {
		return 0, fmt.Errorf("%w: new listing must not carry claims", ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.listings[l.ID]; exists {
		return 0, fmt.Errorf("%w: id %d", ErrDuplicate, l.ID)
	}
	s.listings[l.ID] = l.Clone()
	s.persistLocked(ctx, "store.create", l.ID)
	return l.ID, nil
}

// Get returns a copy of the listing, or false when absent.
func (s *Store) Get(id int64) (*Listing, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, false
	}
	return l.Clone(), true
}

// List returns copies of all listings ordered by id.
func (s *Store) List() []*Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Listing, 0, len(s.listings))
	for _, l := range s.listings {
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ApplyClaim decrements remaining stock by claim.Quantity and appends the
// claim. It fails without side effects when the listing is missing or the
// stock is insufficient.
func (s *Store) ApplyClaim(ctx context.Context, id int64, claim Claim) (Result, error) {
	if claim.Quantity < 1 {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidQuantity, claim.Quantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok {
		return Result{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if claim.Quantity > l.Remaining {
		return Result{}, fmt.Errorf("%w: requested %d, remaining %d", ErrInsufficientStock, claim.Quantity, l.Remaining)
	}

	wasOpen := !l.Archived()
	l.Remaining -= claim.Quantity
	l.Claims = append(l.Claims, claim)
	s.persistLocked(ctx, "store.apply_claim", id)

	return Result{Listing: l.Clone(), Archived: wasOpen && l.Archived()}, nil
}

// persistLocked flushes the map, logging failures instead of returning them.
func (s *Store) persistLocked(ctx context.Context, event string, id int64) {
	if err := s.saveLocked(ctx); err != nil {
		logger.LogEvent(ctx, logger.Store, slog.LevelError, event,
			slog.String("status", "fail"),
			slog.Int64("listing_id", id),
			slog.String("err", err.Error()),
			slog.String("outcome", "memory_only"),
		)
		return
	}
	logger.LogEvent(ctx, logger.Store, slog.LevelDebug, event,
		slog.String("status", "ok"),
		slog.Int64("listing_id", id),
	)
}

func (s *Store) saveLocked(ctx context.Context) error {
	err := s.backend.Save(ctx, s.listings)
	if err != nil && !errors.Is(err, ErrStorageWrite) {
		err = fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	if s.onWrite != nil {
		s.onWrite(err)
	}
	return err
}
