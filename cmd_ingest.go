package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/epd-normalizer/pkg/epd"
	"github.com/ekaya-inc/epd-normalizer/pkg/indicators"
	"github.com/ekaya-inc/epd-normalizer/pkg/metrics"
	"github.com/ekaya-inc/epd-normalizer/pkg/repositories"
	"github.com/ekaya-inc/epd-normalizer/pkg/services"
	"github.com/ekaya-inc/epd-normalizer/pkg/translation"
)

type ingestOptions struct {
	dataDir        string
	workers        int
	maxFiles       int
	skipMigrations bool
}

func newIngestCmd(configPath *string) *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load every datastock folder of the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, *configPath, opts)
		},
	}

	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "", "Directory holding data_stock_* folders (overrides ingest.data_dir)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Documents stored concurrently (overrides ingest.workers)")
	cmd.Flags().IntVar(&opts.maxFiles, "max-files", -1, "Documents read per folder, 0 for all (overrides ingest.max_files)")
	cmd.Flags().BoolVar(&opts.skipMigrations, "skip-migrations", false, "Do not apply pending migrations first")

	return cmd
}

func runIngest(cmd *cobra.Command, configPath string, opts ingestOptions) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close()

	cfg := a.cfg.Ingest
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = opts.dataDir
	}
	if cmd.Flags().Changed("workers") {
		if opts.workers < 1 {
			return fmt.Errorf("--workers must be at least 1, got %d", opts.workers)
		}
		cfg.Workers = opts.workers
	}
	if cmd.Flags().Changed("max-files") {
		if opts.maxFiles < 0 {
			return fmt.Errorf("--max-files must not be negative, got %d", opts.maxFiles)
		}
		cfg.MaxFiles = opts.maxFiles
	}

	if maxConns := int(a.db.Config().MaxConns); cfg.Workers > maxConns {
		a.logger.Warn("More workers than pooled connections; workers will wait for connections",
			zap.Int("workers", cfg.Workers),
			zap.Int("max_connections", maxConns))
	}

	if !opts.skipMigrations {
		if err := a.migrate(); err != nil {
			return err
		}
	}

	dict, err := translation.Load(cfg.TranslationsFile, cfg.TranslationsEncoding, a.logger)
	if err != nil {
		return err
	}

	m := metrics.New()
	parser := epd.NewParser(dict, indicators.NewDefaultResolver(), a.logger)
	svc := services.NewIngestionService(
		repositories.NewDataStockRepository(),
		repositories.NewProductRepository(),
		parser,
		services.NewScopeFunc(a.db),
		m,
		services.IngestOptions{Workers: cfg.Workers, MaxFiles: cfg.MaxFiles},
		a.logger,
	)

	report, runErr := svc.Run(ctx, os.DirFS(cfg.DataDir))

	if err := report.WriteUntranslated(cfg.UntranslatedFile); err != nil {
		a.logger.Error("Failed to write untranslated terms", zap.Error(err))
	} else {
		a.logger.Info("Untranslated terms written",
			zap.String("path", cfg.UntranslatedFile),
			zap.Int("count", report.Untranslated.Len()))
	}

	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := m.WriteTextfile(path); err != nil {
			a.logger.Error("Failed to write metrics", zap.String("path", path), zap.Error(err))
		}
	}

	for _, folder := range report.Folders {
		a.logger.Info("Folder summary",
			zap.String("folder", folder.Folder),
			zap.String("status", string(folder.Status)),
			zap.String("summary", folder.Summary()))
	}
	counts := report.StatusCounts()
	a.logger.Info("Ingestion summary",
		zap.String("run_id", report.RunID),
		zap.String("summary", report.Summary()),
		zap.Int("stored", counts[services.FileStored]),
		zap.Int("skipped", counts[services.FileSkipped]),
		zap.Int("read_failed", counts[services.FileReadFailed]),
		zap.Int("parse_failed", counts[services.FileParseFailed]),
		zap.Int("store_failed", counts[services.FileStoreFailed]))

	if runErr != nil {
		if services.IsContextDone(runErr) {
			return errors.New("ingestion interrupted; re-run to resume")
		}
		return runErr
	}
	return nil
}
