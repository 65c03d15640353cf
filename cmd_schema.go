package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/epd-normalizer/pkg/database"
	"github.com/ekaya-inc/epd-normalizer/pkg/indicators"
	"github.com/ekaya-inc/epd-normalizer/pkg/repositories"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			return a.migrate()
		},
	}
}

func newSeedVocabularyCmd(configPath *string) *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "seed-vocabulary",
		Short: "Insert the indicator and lifecycle module reference data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if !skipMigrations {
				if err := a.migrate(); err != nil {
					return err
				}
			}

			vocab, err := indicators.LoadVocabulary()
			if err != nil {
				return err
			}

			scopeCtx, cleanup, err := database.NewScopeProvider(a.db).WithScope(ctx)
			if err != nil {
				return fmt.Errorf("failed to acquire database connection: %w", err)
			}
			defer cleanup()

			ind, mod, err := repositories.NewVocabularyRepository().Seed(scopeCtx, vocab.Indicators, vocab.Modules)
			if err != nil {
				return err
			}

			a.logger.Info("Vocabulary seeded",
				zap.Int("indicators_inserted", ind),
				zap.Int("modules_inserted", mod),
				zap.Int("indicators_total", len(vocab.Indicators)),
				zap.Int("modules_total", len(vocab.Modules)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "Do not apply pending migrations first")

	return cmd
}
