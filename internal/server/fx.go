// Package server provides the core application server and dependency injection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/revere-police-logs/internal/api"
	"github.com/JakeFAU/revere-police-logs/internal/clock/system"
	"github.com/JakeFAU/revere-police-logs/internal/config"
	"github.com/JakeFAU/revere-police-logs/internal/discovery"
	collyfetcher "github.com/JakeFAU/revere-police-logs/internal/fetcher/colly"
	"github.com/JakeFAU/revere-police-logs/internal/hash/sha256"
	"github.com/JakeFAU/revere-police-logs/internal/id/uuid"
	"github.com/JakeFAU/revere-police-logs/internal/logging"
	"github.com/JakeFAU/revere-police-logs/internal/metrics"
	"github.com/JakeFAU/revere-police-logs/internal/policelog"
	"github.com/JakeFAU/revere-police-logs/internal/policy/ratelimit"
	gcppublisher "github.com/JakeFAU/revere-police-logs/internal/publisher/pubsub"
	"github.com/JakeFAU/revere-police-logs/internal/schedule"
	gcsstorage "github.com/JakeFAU/revere-police-logs/internal/storage/gcs"
	localstorage "github.com/JakeFAU/revere-police-logs/internal/storage/local"
	memorystorage "github.com/JakeFAU/revere-police-logs/internal/storage/memory"
	pgstore "github.com/JakeFAU/revere-police-logs/internal/storage/postgres"
	sqlitestore "github.com/JakeFAU/revere-police-logs/internal/storage/sqlite"
	"github.com/JakeFAU/revere-police-logs/internal/syncer"
	"github.com/JakeFAU/revere-police-logs/internal/telemetry"
)

// App contains the application's dependencies.
type App struct {
	cfg          *config.Config
	logger       *zap.Logger
	clock        *system.Clock
	store        policelog.Store
	archive      policelog.Archive
	gcsArchive   *gcsstorage.BlobStore
	publisher    *gcppublisher.Publisher
	tracer       *sdktrace.TracerProvider
	fetcher      *collyfetcher.Fetcher
	scraper      *discovery.Scraper
	orchestrator *syncer.Orchestrator
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the loaded configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Clock returns the source-timezone clock.
func (a *App) Clock() *system.Clock { return a.clock }

// Store returns the entry/status store.
func (a *App) Store() policelog.Store { return a.store }

// Scraper returns the discovery scraper.
func (a *App) Scraper() *discovery.Scraper { return a.scraper }

// Orchestrator returns the sync orchestrator.
func (a *App) Orchestrator() *syncer.Orchestrator { return a.orchestrator }

// Build creates the application's dependencies. A nil logger is built from cfg.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		var err error
		logger, err = logging.New(cfg.Logging.Development, cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("logger init failed: %w", err)
		}
	}
	metrics.Init()

	app := &App{
		cfg:    cfg,
		logger: logger,
		clock:  system.New(cfg.Location()),
	}
	logger.Info("building application dependencies",
		zap.String("store", cfg.Store.Provider),
		zap.String("archive", cfg.Archive.Provider),
		zap.Bool("pubsub", cfg.PubSub.TopicName != ""),
	)

	var err error
	if app.store, err = setupStore(ctx, app); err != nil {
		return nil, err
	}
	if app.archive, err = setupArchive(ctx, app); err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	if err = setupPublisher(ctx, app); err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	if cfg.Tracing.Enabled {
		app.tracer, err = telemetry.InitTracerProvider(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Version, logger.Named("trace"))
		if err != nil {
			app.closeInfrastructure()
			return nil, fmt.Errorf("init tracing: %w", err)
		}
	}

	app.fetcher = setupFetcher(app)
	app.scraper = discovery.New(discovery.Config{
		IndexURL: cfg.Source.IndexURL,
		BaseURL:  cfg.Source.BaseURL,
		CacheTTL: cfg.DiscoveryCacheTTL(),
	}, app.fetcher, app.store, logger.Named("discovery"))

	opts := []syncer.Option{
		syncer.WithClock(app.clock),
		syncer.WithIDGenerator(uuid.New()),
	}
	if app.archive != nil {
		opts = append(opts, syncer.WithArchive(app.archive, sha256.New()))
	}
	if app.publisher != nil {
		opts = append(opts, syncer.WithPublisher(app.publisher))
	}
	if app.tracer != nil {
		opts = append(opts, syncer.WithTracerProvider(app.tracer))
	}
	app.orchestrator = syncer.New(
		syncer.Config{Delay: cfg.SyncDelay(), ArchivePrefix: cfg.Archive.Prefix},
		policelog.NewResolver(cfg.Source.BaseURL),
		app.scraper,
		app.fetcher,
		app.store,
		logger.Named("syncer"),
		opts...,
	)
	return app, nil
}

// Run serves the HTTP API (and the cron schedule when enabled) until ctx is canceled
// or the process receives SIGINT/SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiServer := api.NewServer(api.Deps{
		Store:       a.store,
		Syncer:      a.orchestrator,
		Catalog:     a.scraper,
		IDs:         uuid.New(),
		Clock:       a.clock,
		Auth:        a.cfg.Auth,
		Logger:      a.logger.Named("api"),
		BaseContext: ctx,
	})

	var sched *schedule.Scheduler
	if a.cfg.Schedule.Enabled {
		var err error
		sched, err = schedule.New(a.cfg.Schedule.Cron, a.cfg.Location(), a.orchestrator, a.logger.Named("schedule"))
		if err != nil {
			return fmt.Errorf("schedule init failed: %w", err)
		}
		sched.Start(ctx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	if sched != nil {
		sched.Stop()
	}
	apiServer.Wait()
	return nil
}

// Close gracefully shuts down the application.
func (a *App) Close() {
	a.closeInfrastructure()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
}

func (a *App) closeInfrastructure() {
	if a.tracer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("tracer provider shutdown failed", zap.Error(err))
		}
		cancel()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("pubsub publisher close failed", zap.Error(err))
		}
	}
	if a.gcsArchive != nil {
		if err := a.gcsArchive.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("store close failed", zap.Error(err))
		}
	}
}

func setupStore(ctx context.Context, app *App) (policelog.Store, error) {
	cfg := app.cfg.Store
	switch cfg.Provider {
	case config.StorePostgres:
		store, err := pgstore.New(ctx, pgstore.Config{
			DSN:             cfg.Postgres.DSN,
			EntriesTable:    cfg.Postgres.EntriesTable,
			StatusTable:     cfg.Postgres.StatusTable,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: time.Duration(cfg.Postgres.MaxConnLifetimeMinutes) * time.Minute,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres store init failed: %w", err)
		}
		if cfg.Postgres.EnsureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("postgres schema init failed: %w", err)
			}
		}
		app.logger.Info("using postgres store", zap.String("entries_table", cfg.Postgres.EntriesTable))
		return store, nil
	case config.StoreSQLite:
		store, err := sqlitestore.New(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite store init failed: %w", err)
		}
		app.logger.Info("using sqlite store", zap.String("path", cfg.SQLite.Path))
		return store, nil
	case config.StoreMemory:
		app.logger.Warn("using in-memory store; data is lost on exit")
		return memorystorage.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown store provider %q", cfg.Provider)
	}
}

func setupArchive(ctx context.Context, app *App) (policelog.Archive, error) {
	cfg := app.cfg.Archive
	switch cfg.Provider {
	case config.ArchiveGCS:
		blobs, err := gcsstorage.New(ctx, gcsstorage.Config{
			Bucket:       cfg.GCS.Bucket,
			VerifyBucket: cfg.GCS.VerifyBucket,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs archive init failed: %w", err)
		}
		app.gcsArchive = blobs
		app.logger.Info("archiving documents to gcs", zap.String("bucket", cfg.GCS.Bucket))
		return blobs, nil
	case config.ArchiveLocal:
		blobs, err := localstorage.New(localstorage.Config{BaseDir: cfg.Local.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local archive init failed: %w", err)
		}
		app.logger.Info("archiving documents locally", zap.String("path", cfg.Local.BaseDir))
		return blobs, nil
	default:
		app.logger.Debug("document archive disabled")
		return nil, nil
	}
}

func setupPublisher(ctx context.Context, app *App) error {
	cfg := app.cfg.PubSub
	if cfg.TopicName == "" || cfg.ProjectID == "" {
		app.logger.Debug("no Pub/Sub topic configured; sync events are not published")
		return nil
	}
	pub, err := gcppublisher.New(ctx, gcppublisher.Config{ProjectID: cfg.ProjectID, TopicID: cfg.TopicName})
	if err != nil {
		return fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	app.publisher = pub
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", cfg.ProjectID),
		zap.String("topic", cfg.TopicName),
	)
	return nil
}

func setupFetcher(app *App) *collyfetcher.Fetcher {
	cfg := app.cfg.HTTP
	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	})
	app.logger.Info("proxy fetcher configured",
		zap.String("proxy", cfg.ProxyURL),
		zap.String("user_agent", cfg.UserAgent),
		zap.Float64("requests_per_second", cfg.RequestsPerSecond),
		zap.Int("max_retries", cfg.MaxRetries),
	)
	return collyfetcher.New(collyfetcher.Config{
		ProxyURL:     cfg.ProxyURL,
		APIKey:       cfg.APIKey,
		UserAgent:    cfg.UserAgent,
		Timeout:      app.cfg.FetchTimeout(),
		MaxBodyBytes: cfg.MaxBodyBytes,
	}, app.logger.Named("fetcher"),
		collyfetcher.WithPacer(limiter),
		collyfetcher.WithRetryPolicy(collyfetcher.NewExponentialRetryPolicy(
			cfg.MaxRetries,
			time.Duration(cfg.BackoffInitialMs)*time.Millisecond,
			time.Duration(cfg.BackoffMaxMs)*time.Millisecond,
		)),
	)
}
