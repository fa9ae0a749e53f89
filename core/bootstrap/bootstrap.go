// Package bootstrap builds the bot's object graph from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	coreconfig "github.com/m3rciful/redistbot/core/config"
	coredatabase "github.com/m3rciful/redistbot/core/database"
	"github.com/m3rciful/redistbot/core/logger"
	"github.com/m3rciful/redistbot/internal/bot"
	"github.com/m3rciful/redistbot/internal/claims"
	"github.com/m3rciful/redistbot/internal/events"
	"github.com/m3rciful/redistbot/internal/listing"
	"github.com/m3rciful/redistbot/internal/metrics"
	"github.com/m3rciful/redistbot/internal/negotiation"
)

// Options control the bootstrap pipeline. Nil hooks fall back to the real
// implementations; tests replace them.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coreconfig.DatabaseConfig) (*sqlx.DB, error)
	Migrate    func(context.Context, coreconfig.DatabaseConfig) error
	Redis      func(coreconfig.RedisConfig) redis.UniversalClient
	Events     func(coreconfig.NATSConfig) (events.Publisher, error)
}

// Result exposes what the bootstrap pipeline built.
type Result struct {
	App     *bot.App
	Service *claims.Service
	Store   *listing.Store
	Metrics *metrics.Metrics

	closers []func() error
}

// Close releases connections opened by Run in reverse order.
func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// Run initializes the logger, storage, negotiation registry, event publisher
// and metrics, then assembles the claims service and the bot.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}
	cfg := opts.Config

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result{Metrics: metrics.New()}

	backend, err := openBackend(ctx, opts, res)
	if err != nil {
		_ = res.Close()
		return nil, err
	}
	store := listing.NewStore(backend)
	store.OnWrite(res.Metrics.StoreWrite)
	kept := store.Load(ctx)
	res.Store = store

	registry, err := openRegistry(ctx, opts, res)
	if err != nil {
		_ = res.Close()
		return nil, err
	}

	publisher, err := openEvents(opts)
	if err != nil {
		_ = res.Close()
		return nil, err
	}
	res.closers = append(res.closers, func() error { publisher.Close(); return nil })

	res.Service = claims.NewService(store, registry,
		claims.WithEvents(publisher),
		claims.WithMetrics(res.Metrics),
	)
	res.App = bot.New(bot.Deps{
		Config:  cfg,
		Service: res.Service,
		Store:   store,
		Metrics: res.Metrics,
	})

	logger.LogEvent(ctx, logger.L, slog.LevelInfo, "bootstrap",
		slog.String("status", "ok"),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("negotiations", cfg.Negotiations.Driver),
		slog.Bool("events", cfg.NATS.URL != ""),
		slog.Int("listings", kept),
	)
	return res, nil
}

func openBackend(ctx context.Context, opts Options, res *Result) (listing.Backend, error) {
	cfg := opts.Config
	if cfg.Storage.Driver != coreconfig.StoragePostgres {
		return listing.NewFileBackend(cfg.Storage.Path), nil
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	res.closers = append(res.closers, db.Close)

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(ctx, cfg.Database); err != nil {
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}
	return listing.NewPostgresBackend(db), nil
}

func openRegistry(ctx context.Context, opts Options, res *Result) (negotiation.Registry, error) {
	cfg := opts.Config
	if cfg.Negotiations.Driver != coreconfig.NegotiationsRedis {
		return negotiation.NewMemoryRegistry(), nil
	}

	newClient := opts.Redis
	if newClient == nil {
		newClient = defaultRedis
	}
	client := newClient(cfg.Redis)
	res.closers = append(res.closers, client.Close)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("bootstrap: redis ping %s: %w", cfg.Redis.Addr, err)
	}
	ttl := time.Duration(cfg.Negotiations.TTLHours) * time.Hour
	return negotiation.NewRedisRegistry(client, ttl), nil
}

func openEvents(opts Options) (events.Publisher, error) {
	cfg := opts.Config.NATS
	if cfg.URL == "" {
		return events.Nop{}, nil
	}
	open := opts.Events
	if open == nil {
		open = defaultEvents
	}
	p, err := open(cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: events: %w", err)
	}
	return p, nil
}

func defaultRedis(cfg coreconfig.RedisConfig) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func defaultEvents(cfg coreconfig.NATSConfig) (events.Publisher, error) {
	return events.NewNATSPublisher(cfg.URL, cfg.SubjectPrefix)
}
