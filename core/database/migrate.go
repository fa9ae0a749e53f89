package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	coreconfig "github.com/m3rciful/redistbot/core/config"
	"github.com/m3rciful/redistbot/core/logger"
)

const (
	// previewLimit caps how many migration file names one log line carries.
	previewLimit = 6
	readyTimeout = 30 * time.Second
)

// RunMigrations brings the listings schema up to the newest migration in
// cfg.MigrationsDir. A dirty schema is reported, not repaired.
func RunMigrations(ctx context.Context, cfg coreconfig.DatabaseConfig) error {
	fail := func(stage string, err error) error {
		logger.LogEvent(ctx, logger.MIG, slog.LevelError, "db.migrate",
			slog.String("status", "fail"),
			slog.String("stage", stage),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("migrate %s: %w", stage, err)
	}

	if err := WaitForPostgres(ctx, DSN(cfg), readyTimeout); err != nil {
		return fail("wait", err)
	}
	dir, err := resolveMigrationsDir(cfg.MigrationsDir)
	if err != nil {
		return fail("resolve", err)
	}
	files := listMigrationFiles(dir)
	logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "resolve", append([]slog.Attr{
		slog.String("path", dir),
	}, logger.PreviewAttrs("files", files, previewLimit)...)...)

	m, err := migrate.New("file://"+dir, URL(cfg))
	if err != nil {
		return fail("init", err)
	}
	defer m.Close()

	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		from = 0
	case err != nil:
		return fail("version", err)
	case dirty:
		return fail("version", fmt.Errorf("schema version %d is dirty; fix it and force the version", from))
	}

	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fail("apply", err)
	}
	took := logger.RoundMS(time.Since(start))

	to := from
	if v, _, err := m.Version(); err == nil {
		to = v
	}
	applied := selectApplied(files, uint64(from), uint64(to))
	if len(applied) > 0 {
		logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "apply",
			logger.PreviewAttrs("files", applied, previewLimit)...)
	}
	logger.LogEvent(ctx, logger.MIG, slog.LevelInfo, "summary",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

func resolveMigrationsDir(dir string) (string, error) {
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return filepath.Join(cwd, dir), nil
}

func listMigrationFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name := e.Name(); strings.HasSuffix(name, ".up.sql") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func parseVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

// selectApplied returns the up files whose version lies in (from, to].
func selectApplied(files []string, from, to uint64) []string {
	if to <= from {
		return nil
	}
	var out []string
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
