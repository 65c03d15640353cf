package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/epd-normalizer/pkg/apperrors"
	"github.com/ekaya-inc/epd-normalizer/pkg/database"
	"github.com/ekaya-inc/epd-normalizer/pkg/models"
)

// DataStockRepository provides data access for datastocks.
type DataStockRepository interface {
	// GetOrCreate returns the id of the datastock with uuid, creating it with
	// name when absent. Concurrent callers converge on the same row.
	GetOrCreate(ctx context.Context, name, uuid string) (int64, error)
	GetByUUID(ctx context.Context, uuid string) (*models.DataStock, error)
}

type dataStockRepository struct{}

// NewDataStockRepository creates a new DataStockRepository.
func NewDataStockRepository() DataStockRepository {
	return &dataStockRepository{}
}

var _ DataStockRepository = (*dataStockRepository)(nil)

func (r *dataStockRepository) GetOrCreate(ctx context.Context, name, uuid string) (int64, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no database scope in context")
	}

	existing, err := r.GetByUUID(ctx, uuid)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return 0, err
	}

	var id int64
	err = scope.Conn.QueryRow(ctx,
		"INSERT INTO datastocks (name, uuid) VALUES ($1, $2) RETURNING datastock_id",
		name, uuid,
	).Scan(&id)
	if err != nil {
		// Another worker created the row between our SELECT and INSERT.
		if isUniqueViolation(err) {
			existing, getErr := r.GetByUUID(ctx, uuid)
			if getErr != nil {
				return 0, conflictError("datastock", uuid, getErr)
			}
			return existing.ID, nil
		}
		return 0, fmt.Errorf("failed to create datastock: %w", err)
	}

	return id, nil
}

func (r *dataStockRepository) GetByUUID(ctx context.Context, uuid string) (*models.DataStock, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var ds models.DataStock
	err := scope.Conn.QueryRow(ctx,
		"SELECT datastock_id, name, uuid FROM datastocks WHERE uuid = $1",
		uuid,
	).Scan(&ds.ID, &ds.Name, &ds.UUID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get datastock: %w", err)
	}

	return &ds, nil
}
