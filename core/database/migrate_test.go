package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/redistbot/core/config"
)

func TestSelectApplied(t *testing.T) {
	files := []string{"0001_listings.up.sql", "0002_index.up.sql", "0003_more.up.sql"}

	assert.Equal(t, []string{"0002_index.up.sql", "0003_more.up.sql"}, selectApplied(files, 1, 3))
	assert.Nil(t, selectApplied(files, 3, 3))
	assert.Nil(t, selectApplied(files, 2, 1))
}

func TestListMigrationFilesOnlyUp(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_b.up.sql", "0001_a.up.sql", "0001_a.down.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "0003_dir.up.sql"), 0o755))

	assert.Equal(t, []string{"0001_a.up.sql", "0002_b.up.sql"}, listMigrationFiles(dir))
	assert.Nil(t, listMigrationFiles(filepath.Join(dir, "missing")))
}

func TestConnectionStrings(t *testing.T) {
	cfg := coreconfig.DatabaseConfig{
		Host: "db", Port: "5433", User: "bot", Password: "pw", Name: "listings", SSLMode: "disable",
	}
	assert.Equal(t, "user=bot password=pw host=db port=5433 dbname=listings sslmode=disable", DSN(cfg))
	assert.Equal(t, "postgres://bot:pw@db:5433/listings?sslmode=disable", URL(cfg))

	cfg.Password = "p@ss word's"
	assert.Equal(t, `user=bot password='p@ss word\'s' host=db port=5433 dbname=listings sslmode=disable`, DSN(cfg))
	assert.Equal(t, "postgres://bot:p%40ss%20word%27s@db:5433/listings?sslmode=disable", URL(cfg))
}

func TestResolveMigrationsDir(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "m")
	got, err := resolveMigrationsDir(abs)
	require.NoError(t, err)
	assert.Equal(t, abs, got)

	got, err = resolveMigrationsDir("migrations")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
	assert.Equal(t, "migrations", filepath.Base(got))
}
