package services

import (
	"context"

	"github.com/ekaya-inc/epd-normalizer/pkg/database"
)

// ScopeFunc returns a context carrying its own database connection and a
// cleanup function that releases it.
type ScopeFunc func(ctx context.Context) (context.Context, func(), error)

// NewScopeFunc creates a ScopeFunc that acquires connections from db.
func NewScopeFunc(db *database.DB) ScopeFunc {
	return database.NewScopeProvider(db).WithScope
}
