// Package app builds and owns the long-lived services shared by the CLI
// commands: the catalog repository, upstream client, rate limiter, blob store
// and run-summary publisher.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/release-calendar/internal/api"
	"github.com/JakeFAU/release-calendar/internal/catalog"
	"github.com/JakeFAU/release-calendar/internal/config"
	"github.com/JakeFAU/release-calendar/internal/export"
	"github.com/JakeFAU/release-calendar/internal/ingest"
	"github.com/JakeFAU/release-calendar/internal/metrics"
	memorypublisher "github.com/JakeFAU/release-calendar/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/release-calendar/internal/publisher/pubsub"
	"github.com/JakeFAU/release-calendar/internal/ratelimit"
	gcsstorage "github.com/JakeFAU/release-calendar/internal/storage/gcs"
	localstorage "github.com/JakeFAU/release-calendar/internal/storage/local"
	memorystorage "github.com/JakeFAU/release-calendar/internal/storage/memory"
	pgstore "github.com/JakeFAU/release-calendar/internal/storage/postgres"
	"github.com/JakeFAU/release-calendar/internal/tmdb"
)

const shutdownTimeout = 10 * time.Second

// App holds the shared services. Build it once per process and Close it on exit.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	repo      catalog.Repository
	pgStore   *pgstore.Store
	upstream  *tmdb.Client
	limiter   *ratelimit.Limiter
	blobs     export.BlobStore
	publisher ingest.Publisher

	gcsClient    *storage.Client
	pubsubClient *pubsub.Client
	gcpPublisher *gcppublisher.Publisher
}

// Build creates the application's dependencies from cfg.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	a := &App{cfg: cfg, logger: logger}

	if err := a.setupRepository(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.setupBlobStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.setupPublisher(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.upstream = tmdb.NewClient(tmdb.Config{
		APIKey:   cfg.TMDB.APIKey,
		BaseURL:  cfg.TMDB.BaseURL,
		Language: cfg.TMDB.Language,
		Timeout:  cfg.TMDB.Timeout,
	}, nil)
	a.limiter = ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		PauseEvery:        cfg.RateLimit.PauseEvery,
		PauseDuration:     cfg.RateLimit.PauseDuration,
	}, logger.Named("ratelimit"))

	logger.Info("application services initialized",
		zap.String("db_driver", cfg.DB.Driver),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("publish_summaries", a.publisher != nil),
	)
	return a, nil
}

func (a *App) setupRepository(ctx context.Context) error {
	switch a.cfg.DB.Driver {
	case config.BackendMemory:
		a.logger.Warn("using in-memory catalog; data is lost on exit")
		a.repo = memorystorage.NewCatalogStore()
	case config.BackendPostgres:
		if a.cfg.DB.DSN == "" {
			return errors.New("db.dsn is required for the postgres driver")
		}
		store, err := pgstore.NewStore(ctx, pgstore.Config{
			DSN:             a.cfg.DB.DSN,
			MaxConns:        a.cfg.DB.MaxConns,
			MinConns:        a.cfg.DB.MinConns,
			MaxConnLifetime: a.cfg.DB.MaxConnLifetime,
		})
		if err != nil {
			return fmt.Errorf("init catalog store: %w", err)
		}
		a.pgStore = store
		a.repo = store
	default:
		return fmt.Errorf("unknown db driver %q", a.cfg.DB.Driver)
	}
	return nil
}

func (a *App) setupBlobStore(ctx context.Context) error {
	switch a.cfg.Storage.Backend {
	case config.BackendMemory:
		a.blobs = memorystorage.NewBlobStore()
	case config.BackendLocal:
		store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return fmt.Errorf("init local blob store: %w", err)
		}
		a.blobs = store
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		a.gcsClient = client
		store, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket:       a.cfg.Storage.GCSBucket,
			CacheControl: a.cfg.Storage.CacheControl,
		})
		if err != nil {
			return fmt.Errorf("init gcs blob store: %w", err)
		}
		a.blobs = store
	default:
		return fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}
	return nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	if a.cfg.PubSub.TopicName == "" {
		return nil
	}
	if a.cfg.PubSub.ProjectID == "" {
		a.logger.Warn("pubsub.project_id not set; recording run summaries in memory")
		a.publisher = memorypublisher.New()
		return nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("init pubsub client: %w", err)
	}
	a.pubsubClient = client
	a.gcpPublisher = gcppublisher.New(client, map[string]string{"source": "release-calendar"})
	a.publisher = a.gcpPublisher
	return nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Repository returns the catalog repository.
func (a *App) Repository() catalog.Repository {
	return a.repo
}

// Migrate applies the catalog schema. It is a no-op for the memory driver.
func (a *App) Migrate(ctx context.Context) error {
	if a.pgStore == nil {
		a.logger.Info("memory catalog needs no migration")
		return nil
	}
	if err := a.pgStore.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate catalog: %w", err)
	}
	return nil
}

// Orchestrator builds an ingestion orchestrator over the shared services.
func (a *App) Orchestrator(batchSize int) *ingest.Orchestrator {
	var opts []ingest.Option
	if a.publisher != nil {
		opts = append(opts, ingest.WithPublisher(a.publisher))
	}
	return ingest.New(a.upstream, a.limiter, a.repo, ingest.Config{
		BatchSize: batchSize,
		Topic:     a.cfg.PubSub.TopicName,
	}, a.logger.Named("ingest"), opts...)
}

// Exporter builds a calendar exporter writing to the configured blob store.
func (a *App) Exporter(prefix string) *export.Exporter {
	return export.New(a.repo, a.blobs, export.Config{Prefix: prefix}, a.logger.Named("export"))
}

// APIServer builds the HTTP API over the repository.
func (a *App) APIServer() *api.Server {
	apiKey := ""
	if a.cfg.Auth.Enabled {
		apiKey = a.cfg.Auth.APIKey
	}
	return api.NewServer(a.repo, api.Config{
		RequestTimeout: a.cfg.Server.RequestTimeout,
		APIKey:         apiKey,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
	}, a.logger.Named("api"))
}

// Serve runs the HTTP API until ctx is canceled, then shuts down gracefully.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.APIServer().Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// Close releases every service. It is safe to call on a partially built App.
func (a *App) Close() {
	if a.gcpPublisher != nil {
		a.gcpPublisher.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.repo != nil {
		a.repo.Close()
	}
	a.logger.Info("shutdown complete")
}
