package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/redistbot/core/bootstrap"
	coreconfig "github.com/m3rciful/redistbot/core/config"
	coretelegram "github.com/m3rciful/redistbot/core/telegram"
)

func TestResolveConfigPathPrecedence(t *testing.T) {
	t.Setenv("REDIST_CONFIG", "")
	_, err := ResolveConfigPath(Options{ConfigEnvVar: "REDIST_CONFIG"})
	require.Error(t, err)

	p, err := ResolveConfigPath(Options{ConfigEnvVar: "REDIST_CONFIG", DefaultConfigPath: "config.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", p)

	t.Setenv("REDIST_CONFIG", "/etc/redist.yaml")
	p, _ = ResolveConfigPath(Options{ConfigEnvVar: "REDIST_CONFIG", DefaultConfigPath: "config.yaml"})
	assert.Equal(t, "/etc/redist.yaml", p)

	p, _ = ResolveConfigPath(Options{ConfigPath: "flag.yaml", ConfigEnvVar: "REDIST_CONFIG"})
	assert.Equal(t, "flag.yaml", p)
}

func testOptions(t *testing.T, run func(context.Context, coretelegram.RunOptions) error) Options {
	t.Helper()
	dir := t.TempDir()
	return Options{
		ConfigPath: "unused.yaml",
		LoadConfig: func(string) (*coreconfig.Config, error) {
			cfg := &coreconfig.Config{}
			cfg.Telegram.Token = "123:abc"
			cfg.Telegram.Channel = "@surplus"
			cfg.Storage.Path = filepath.Join(dir, "listings.json")
			return cfg, coreconfig.Normalize(cfg)
		},
		Bootstrap: func(ctx context.Context, cfg *coreconfig.Config) (*bootstrap.Result, error) {
			return bootstrap.Run(ctx, bootstrap.Options{
				Config:     cfg,
				LoggerInit: func(*coreconfig.Config) error { return nil },
			})
		},
		ShutdownLogger: func() error { return nil },
		RunTelegram:    run,
	}
}

func TestRunWrapsLifecycleHooks(t *testing.T) {
	var got coretelegram.RunOptions
	err := Run(context.Background(), testOptions(t, func(_ context.Context, opts coretelegram.RunOptions) error {
		got = opts
		return nil
	}))
	require.NoError(t, err)
	require.NotNil(t, got.Config)
	assert.Equal(t, "@surplus", got.Config.Telegram.Channel)
	assert.NotNil(t, got.OnStart)
	assert.NotNil(t, got.OnStop)
	assert.NotEmpty(t, got.Routes)
}

func TestRunReturnsBotError(t *testing.T) {
	err := Run(context.Background(), testOptions(t, func(context.Context, coretelegram.RunOptions) error {
		return errors.New("unauthorized")
	}))
	assert.EqualError(t, err, "unauthorized")

	opts := testOptions(t, nil)
	opts.LoadConfig = func(string) (*coreconfig.Config, error) { return nil, errors.New("bad yaml") }
	assert.ErrorContains(t, Run(context.Background(), opts), "failed to load config")
}

func TestMigrateRequiresPostgres(t *testing.T) {
	err := Migrate(context.Background(), testOptions(t, nil))
	assert.ErrorContains(t, err, "migrate requires storage.driver")
}
