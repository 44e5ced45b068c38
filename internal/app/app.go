// Package app initializes and holds long-lived application services,
// acting as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"
	"time"

	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/bohanco/hpimage/internal/api"
	"github.com/bohanco/hpimage/internal/config"
	"github.com/bohanco/hpimage/internal/logging"
	"github.com/bohanco/hpimage/internal/metrics"
	"github.com/bohanco/hpimage/internal/publisher"
	pubsubpub "github.com/bohanco/hpimage/internal/publisher/pubsub"
	"github.com/bohanco/hpimage/internal/repository"
	"github.com/bohanco/hpimage/internal/storage"
	"github.com/bohanco/hpimage/internal/storage/gcs"
	"github.com/bohanco/hpimage/internal/storage/local"
	"github.com/bohanco/hpimage/internal/storage/memory"
)

// App holds the shared, long-lived services: logger, record store, blob
// storage and publisher. It is initialized once at startup and handed to
// the commands.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Store     repository.Store
	BlobStore storage.BlobStore
	Publisher publisher.Publisher

	ops       *api.Server
	gcsClient *gstorage.Client
}

// New builds every service the configuration asks for, failing fast when
// a critical one cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	metrics.Init()

	a := &App{Config: cfg, Logger: logger}

	if err := a.initStore(ctx, cfg); err != nil {
		return nil, err
	}
	if err := a.initBlobStore(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initPublisher(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Ops.Enabled {
		a.ops = api.NewServer(cfg.Ops.Port, logger)
		a.ops.Start()
	}

	return a, nil
}

func (a *App) initStore(ctx context.Context, cfg config.Config) error {
	switch cfg.DB.Provider {
	case "postgres":
		a.Logger.Info("connecting to postgres")
		var lifetime time.Duration
		if cfg.DB.MaxConnLifetime != "" {
			var err error
			if lifetime, err = time.ParseDuration(cfg.DB.MaxConnLifetime); err != nil {
				return fmt.Errorf("parse db.max_conn_lifetime: %w", err)
			}
		}
		store, err := repository.NewPostgresStore(ctx, repository.PostgresConfig{
			DSN:             cfg.DB.DSN,
			MaxConns:        cfg.DB.MaxConns,
			MinConns:        cfg.DB.MinConns,
			MaxConnLifetime: lifetime,
		})
		if err != nil {
			return fmt.Errorf("initialize record store: %w", err)
		}
		a.Store = store
	case "noop":
		a.Logger.Info("using no-op record store; records will be discarded")
		a.Store = repository.NoopStore{}
	default:
		return fmt.Errorf("unknown db provider %q", cfg.DB.Provider)
	}
	return nil
}

func (a *App) initBlobStore(ctx context.Context, cfg config.Config) error {
	newLocal := func() (storage.BlobStore, error) {
		return local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
	}
	newGCS := func() (storage.BlobStore, error) {
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.gcsClient = client
		return gcs.New(client, gcs.Config{
			Bucket: cfg.Storage.GCSBucket,
			Prefix: cfg.Storage.GCSPrefix,
		})
	}

	var err error
	switch cfg.Storage.Provider {
	case "local":
		a.Logger.Info("using local blob storage", zap.String("dir", cfg.Storage.LocalDir))
		a.BlobStore, err = newLocal()
	case "gcs":
		a.Logger.Info("using gcs blob storage", zap.String("bucket", cfg.Storage.GCSBucket))
		a.BlobStore, err = newGCS()
	case "replicate":
		a.Logger.Info("replicating blobs to local and gcs storage",
			zap.String("dir", cfg.Storage.LocalDir),
			zap.String("bucket", cfg.Storage.GCSBucket))
		var localStore, gcsStore storage.BlobStore
		if localStore, err = newLocal(); err != nil {
			break
		}
		if gcsStore, err = newGCS(); err != nil {
			break
		}
		a.BlobStore, err = storage.NewReplicator(localStore, gcsStore)
	case "noop":
		a.Logger.Info("using in-memory blob storage; downloads will be discarded")
		a.BlobStore = memory.NewBlobStore()
	default:
		return fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
	if err != nil {
		return fmt.Errorf("initialize blob storage: %w", err)
	}
	return nil
}

func (a *App) initPublisher(ctx context.Context, cfg config.Config) error {
	switch cfg.PubSub.Provider {
	case "pubsub":
		a.Logger.Info("connecting to pub/sub", zap.String("topic", cfg.PubSub.TopicID))
		pub, err := pubsubpub.New(ctx, pubsubpub.Config{
			ProjectID: cfg.PubSub.ProjectID,
			TopicID:   cfg.PubSub.TopicID,
		})
		if err != nil {
			return fmt.Errorf("initialize publisher: %w", err)
		}
		a.Publisher = pub
	case "noop":
		a.Publisher = publisher.Noop{}
	default:
		return fmt.Errorf("unknown pubsub provider %q", cfg.PubSub.Provider)
	}
	return nil
}

// Close shuts every service down, logging rather than failing on errors.
func (a *App) Close() {
	if a.ops != nil {
		if err := a.ops.Shutdown(context.Background()); err != nil {
			a.Logger.Warn("ops server shutdown failed", zap.Error(err))
		}
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.Logger.Warn("publisher close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.Logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.Store != nil {
		a.Store.Close()
	}
	_ = a.Logger.Sync()
}
