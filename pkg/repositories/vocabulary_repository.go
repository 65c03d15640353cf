package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/epd-normalizer/pkg/database"
	"github.com/ekaya-inc/epd-normalizer/pkg/models"
)

// VocabularyRepository seeds and reads the indicator and lifecycle module
// reference tables.
type VocabularyRepository interface {
	// Seed inserts the missing entries and leaves existing ones untouched.
	// It returns the number of indicators and modules inserted.
	Seed(ctx context.Context, indicators []models.Indicator, modules []models.Module) (int, int, error)
	ListIndicators(ctx context.Context) ([]models.Indicator, error)
	ListModules(ctx context.Context) ([]models.Module, error)
}

type vocabularyRepository struct{}

// NewVocabularyRepository creates a new VocabularyRepository.
func NewVocabularyRepository() VocabularyRepository {
	return &vocabularyRepository{}
}

var _ VocabularyRepository = (*vocabularyRepository)(nil)

func (r *vocabularyRepository) Seed(ctx context.Context, indicators []models.Indicator, modules []models.Module) (int, int, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, 0, fmt.Errorf("no database scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	var insertedIndicators, insertedModules int
	for _, ind := range indicators {
		tag, err := tx.Exec(ctx, `
			INSERT INTO indicators (indicator_key, name, short_description, long_description)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (indicator_key) DO NOTHING`,
			ind.Key, ind.Name, nullString(ind.ShortDescription), nullString(ind.LongDescription),
		)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to insert indicator %s: %w", ind.Key, err)
		}
		insertedIndicators += int(tag.RowsAffected())
	}
	for _, mod := range modules {
		tag, err := tx.Exec(ctx, `
			INSERT INTO modules (module_code, name, short_description, long_description)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (module_code) DO NOTHING`,
			mod.Code, mod.Name, nullString(mod.ShortDescription), nullString(mod.LongDescription),
		)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to insert module %s: %w", mod.Code, err)
		}
		insertedModules += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return insertedIndicators, insertedModules, nil
}

func (r *vocabularyRepository) ListIndicators(ctx context.Context) ([]models.Indicator, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT indicator_key, name, COALESCE(short_description, ''), COALESCE(long_description, '')
		FROM indicators
		ORDER BY indicator_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query indicators: %w", err)
	}

	indicators, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Indicator, error) {
		var ind models.Indicator
		err := row.Scan(&ind.Key, &ind.Name, &ind.ShortDescription, &ind.LongDescription)
		return ind, err
	})
	if err != nil {
		return nil, fmt.Errorf("error iterating indicators: %w", err)
	}
	return indicators, nil
}

func (r *vocabularyRepository) ListModules(ctx context.Context) ([]models.Module, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT module_code, name, COALESCE(short_description, ''), COALESCE(long_description, '')
		FROM modules
		ORDER BY module_code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query modules: %w", err)
	}

	modules, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Module, error) {
		var mod models.Module
		err := row.Scan(&mod.Code, &mod.Name, &mod.ShortDescription, &mod.LongDescription)
		return mod, err
	})
	if err != nil {
		return nil, fmt.Errorf("error iterating modules: %w", err)
	}
	return modules, nil
}
