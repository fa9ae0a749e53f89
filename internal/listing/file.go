package listing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/m3rciful/redistbot/core/logger"
)

// FileBackend stores the listing map as one JSON document keyed by the
// string form of each id.
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend rooted at path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Load reads the snapshot. A missing file is an empty store and malformed
// content is an error. Entries whose key is not a positive id are skipped.
func (b *FileBackend) Load(ctx context.Context) (map[int64]*Listing, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[int64]*Listing{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}
	if len(data) == 0 {
		return map[int64]*Listing{}, nil
	}

	var raw map[string]*Listing
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", b.path, err)
	}
	out := make(map[int64]*Listing, len(raw))
	for key, l := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || id <= 0 {
			logger.LogEvent(ctx, logger.Store, slog.LevelWarn, "store.load.skip",
				slog.String("key", logger.SanitizeLimit(key, 64)),
				slog.String("err", "invalid listing key"),
			)
			continue
		}
		if l != nil {
			l.ID = id
		}
		out[id] = l
	}
	return out, nil
}

// Save writes the snapshot to a temp file in the same directory, syncs it
// and renames it over the previous one.
func (b *FileBackend) Save(_ context.Context, listings map[int64]*Listing) error {
	raw := make(map[string]*Listing, len(listings))
	for id, l := range listings {
		raw[strconv.FormatInt(id, 10)] = l
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrStorageWrite, err)
	}

	dir := filepath.Dir(b.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(b.path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		cleanup()
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	return nil
}
