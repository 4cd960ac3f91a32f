package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sagarc03/pagehaven"
	"github.com/sagarc03/pagehaven/cache"
	"github.com/sagarc03/pagehaven/config"
	"github.com/sagarc03/pagehaven/database"
	"github.com/sagarc03/pagehaven/filesystem"
	"github.com/sagarc03/pagehaven/s3store"
	"github.com/sagarc03/pagehaven/stowryremote"
)

// openDatabase connects to the configured database and checks that its
// schema matches, migrating first when migrate is set.
func openDatabase(ctx context.Context, cfg *config.Config, migrate bool) (database.Database, error) {
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err = db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if migrate {
		if err = db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		slog.Info("database migration complete")
	}

	if err = db.Validate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("validate database schema: %w (run 'pagehaven migrate' first)", err)
	}

	slog.Debug("connected to database", "type", cfg.Database.Type)
	return db, nil
}

// openStorage builds the configured blob backend. The returned close
// function releases it and is never nil.
func openStorage(ctx context.Context, cfg config.StorageConfig) (pagehaven.FileStorage, func(), error) {
	switch cfg.Backend {
	case config.StorageFilesystem:
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, nil, fmt.Errorf("create storage directory: %w", err)
		}

		root, err := os.OpenRoot(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open storage root: %w", err)
		}

		slog.Debug("using filesystem storage", "path", cfg.Path)
		return filesystem.NewFileStorage(root), func() { _ = root.Close() }, nil

	case config.StorageS3:
		client, err := s3store.NewClient(ctx, cfg.S3)
		if err != nil {
			return nil, nil, fmt.Errorf("create s3 client: %w", err)
		}

		slog.Debug("using s3 storage", "bucket", cfg.S3.Bucket, "prefix", cfg.S3.Prefix)
		return s3store.New(client, cfg.S3.Bucket, cfg.S3.Prefix), func() {}, nil

	case config.StorageStowry:
		store, err := stowryremote.New(cfg.Stowry)
		if err != nil {
			return nil, nil, fmt.Errorf("create stowry client: %w", err)
		}

		slog.Debug("using stowry storage", "endpoint", cfg.Stowry.Endpoint)
		return store, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

// openSiteCache connects the Redis site cache when it is enabled. Both
// results are nil when it is disabled.
func openSiteCache(ctx context.Context, cfg cache.Config, next pagehaven.SiteResolver) (*cache.SiteCache, func(), error) {
	if !cfg.Enabled {
		return nil, func() {}, nil
	}

	client, err := cache.NewClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	slog.Debug("site cache enabled", "addr", cfg.Addr, "ttl", cfg.TTL)
	return cache.NewSiteCache(next, client, cfg.TTL), func() { _ = client.Close() }, nil
}

// app bundles the services shared by the operator commands.
type app struct {
	cfg     *config.Config
	db      database.Database
	sites   *pagehaven.SiteService
	objects *pagehaven.ObjectService
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// openApp wires database, storage and the optional cache into the site and
// object services.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	db, err := openDatabase(ctx, cfg, false)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: db, closers: []func(){func() { _ = db.Close() }}}

	storage, closeStorage, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeStorage)

	a.objects, err = pagehaven.NewObjectService(db.ObjectRepo(), storage, pagehaven.ServiceConfig{
		CleanupTimeout: cfg.Service.CleanupTimeoutDuration(),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create object service: %w", err)
	}

	siteCache, closeCache, err := openSiteCache(ctx, cfg.Cache, db.SiteRepo())
	if err != nil {
		slog.Warn("site cache unavailable, cached records expire on their own", "err", err)
		siteCache, closeCache = nil, func() {}
	}
	a.closers = append(a.closers, closeCache)

	var invalidator pagehaven.SiteInvalidator
	if siteCache != nil {
		invalidator = siteCache
	}

	a.sites, err = pagehaven.NewSiteService(db.SiteRepo(), invalidator)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create site service: %w", err)
	}

	return a, nil
}
