package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/saasrank/internal/config"
	"github.com/dshills/saasrank/internal/embedder"
	"github.com/dshills/saasrank/internal/logging"
	"github.com/dshills/saasrank/internal/mcp"
	"github.com/dshills/saasrank/internal/ranker"
	"github.com/dshills/saasrank/internal/storage"
	"github.com/dshills/saasrank/internal/storage/postgres"
)

// errImportNeedsSQLite is returned when import targets a read-only backend
var errImportNeedsSQLite = errors.New("import requires the sqlite storage driver")

// app holds the wired dependencies of one command invocation
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	catalog  mcp.Catalog
	store    storage.Storage // Nil for read-only backends
	embedder embedder.Embedder
	server   *mcp.Server
	closers  []io.Closer
}

// newApp loads configuration and opens the catalog, embedder, ranker and
// MCP server. Embedder failures are logged and leave the vector channel
// degraded instead of failing startup.
func newApp(ctx context.Context, cmd *cobra.Command, flags *globalFlags) (*app, error) {
	cfg, err := config.Load(config.LoadOptions{
		ConfigPath:    flags.configPath,
		FlagOverrides: flags.overrides(cmd),
	})
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	if err := a.openCatalog(ctx); err != nil {
		a.Close()
		return nil, err
	}

	emb, err := embedder.New(cfg.Embedding.EmbedderConfig())
	if err != nil {
		logger.Warn("embedder unavailable, vector retrieval disabled", zap.Error(err))
	} else {
		a.embedder = emb
		a.closers = append(a.closers, emb)
	}

	opts := append(cfg.Ranking.RankerOptions(), ranker.WithLogger(logger.Named("ranker")))
	rk, err := ranker.New(a.catalog, a.catalog, a.embedder, opts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create ranker: %w", err)
	}

	a.server, err = mcp.NewServer(a.catalog, rk, a.embedder, logger.Named("mcp"))
	if err != nil {
		a.Close()
		return nil, err
	}

	logger.Debug("application initialized",
		zap.String("driver", cfg.Storage.Driver),
		zap.String("build_mode", storage.BuildMode),
		zap.Bool("vector_extension", storage.VectorExtensionAvailable))

	return a, nil
}

// openCatalog connects the configured storage backend
func (a *app) openCatalog(ctx context.Context) error {
	switch a.cfg.Storage.Driver {
	case config.DriverPostgres:
		client, err := postgres.Open(ctx, a.cfg.Storage.DSN)
		if err != nil {
			return err
		}
		store := postgres.NewStore(client, postgres.WithTextSearchConfig(a.cfg.Storage.TextSearchConfig))
		a.catalog = store
		a.closers = append(a.closers, store)
	default:
		path := a.cfg.Storage.Path
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
		store, err := storage.NewSQLiteStorage(path)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		a.catalog = store
		a.store = store
		a.closers = append(a.closers, store)
	}
	return nil
}

// Close releases everything newApp opened, newest first
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
}
