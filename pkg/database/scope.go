package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Scope holds one acquired pool connection. Repositories run every statement
// of a unit of work on it, so a transaction never spans two connections.
type Scope struct {
	Conn *pgxpool.Conn
}

// Close releases the connection back to the pool.
// This MUST be called, typically with defer scope.Close().
func (s *Scope) Close() {
	if s.Conn == nil {
		return
	}
	s.Conn.Release()
	s.Conn = nil
}
