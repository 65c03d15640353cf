package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/epd-normalizer/pkg/config"
	"github.com/ekaya-inc/epd-normalizer/pkg/database"
	"github.com/ekaya-inc/epd-normalizer/pkg/logging"
	"github.com/ekaya-inc/epd-normalizer/pkg/retry"
)

// app carries what every subcommand needs: configuration, a logger and the
// database pool.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *database.DB
}

// newApp loads configuration, builds the logger and connects to PostgreSQL.
// The caller must call close.
func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath, Version)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.URL())),
		zap.String("data_dir", cfg.Ingest.DataDir),
		zap.Int("workers", cfg.Ingest.Workers))

	dbCfg := &database.Config{
		URL:              cfg.Database.URL(),
		MaxConnections:   cfg.Database.MaxConnections,
		StatementTimeout: cfg.Database.StatementTimeout,
	}
	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*database.DB, error) {
		db, err := database.NewConnection(ctx, dbCfg)
		if err != nil {
			logger.Warn("Database connection attempt failed", zap.String("error", logging.SanitizeError(err)))
		}
		return db, err
	})
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to connect to database: %s", logging.SanitizeError(err))
	}

	return &app{cfg: cfg, logger: logger, db: db}, nil
}

func (a *app) migrate() error {
	sqlDB := a.db.SQLDB()
	defer sqlDB.Close()
	return database.RunMigrations(sqlDB, a.logger)
}

func (a *app) close() {
	a.db.Close()
	_ = a.logger.Sync()
}
