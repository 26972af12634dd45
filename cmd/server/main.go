// Package main is the entry point for the listing API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/listing-api/internal/auth"
	"github.com/vyrodovalexey/listing-api/internal/blob"
	"github.com/vyrodovalexey/listing-api/internal/config"
	"github.com/vyrodovalexey/listing-api/internal/server"
	"github.com/vyrodovalexey/listing-api/internal/store"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "listing",
		Short:         "Marketplace listing API",
		Long:          "Accepts item submissions with images and serves listings, search and images.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrate(cmd.Context())
		},
	})

	return root
}

// bootstrap loads .env and the configuration, then builds the logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Error("failed to load configuration", zap.Error(err))
		return nil, nil, err
	}

	logger, err := initLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Error("failed to initialize logger", zap.Error(err))
		return nil, nil, err
	}

	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		logger.Warn("could not load .env file", zap.Error(envErr))
	}

	return cfg, logger, nil
}

func serve(ctx context.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("configuration loaded",
		zap.Int("server_port", cfg.ServerPort),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("shutdown_timeout", cfg.ShutdownTimeout),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled),
		zap.String("store_driver", cfg.StoreDriver),
		zap.String("images_dir", cfg.ImagesDir),
		zap.Bool("image_required", cfg.ImageRequired),
		zap.String("auth_mode", cfg.AuthMode),
	)

	itemStore, closeStore, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", zap.Error(err))
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}()

	blobs, err := blob.NewFileStore(cfg.ImagesDir)
	if err != nil {
		logger.Error("failed to open image directory", zap.Error(err))
		return err
	}

	authenticator, err := auth.New(cfg.AuthMode, cfg.APIKeys, cfg.BasicAuthUsers)
	if err != nil {
		logger.Error("failed to create authenticator", zap.Error(err))
		return err
	}

	srv := server.New(cfg, logger, server.Deps{
		Store:         itemStore,
		Blobs:         blobs,
		Authenticator: authenticator,
	})

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		logger.Error("server error", zap.Error(err))
		return err
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			return err
		}
	}

	logger.Info("server stopped")
	return nil
}

func migrate(ctx context.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	if cfg.StoreDriver != config.StoreDriverSQLite {
		logger.Info("store driver has no schema, nothing to migrate", zap.String("store_driver", cfg.StoreDriver))
		return nil
	}

	_, closeStore, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("migration failed", zap.Error(err))
		return err
	}

	logger.Info("schema is up to date", zap.String("db_path", cfg.DBPath))
	return closeStore()
}

// newStore opens the configured item store. The sqlite schema is ensured
// before the store is returned.
func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, func() error, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Info("using in-memory store")
		return store.NewMemoryStore(), func() error { return nil }, nil
	case config.StoreDriverSQLite:
		db, err := store.Open(ctx, store.Options{
			Path:        cfg.DBPath,
			BusyTimeout: cfg.DBBusyTimeout,
		}, logger)
		if err != nil {
			return nil, nil, err
		}

		sqlStore := store.NewSQLStore(db)
		if err := sqlStore.Migrate(ctx, cfg.SchemaPath); err != nil {
			_ = sqlStore.Close()
			return nil, nil, err
		}

		logger.Info("sqlite store ready",
			zap.String("db_path", cfg.DBPath),
			zap.String("schema_path", cfg.SchemaPath),
		)
		return sqlStore, sqlStore.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", config.ErrInvalidStoreDriver, cfg.StoreDriver)
	}
}
