// Package postgres persists league data behind the import and
// reconciliation store interfaces. Soft deletes everywhere: retired rows
// keep their surrogate IDs and drop out of the partial unique indexes.
package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/league-import/internal/platform/logging"
)

type Store struct {
	db     *sqlx.DB
	logger *logging.Logger
}

func NewStore(db *sqlx.DB, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{db: db, logger: logger}
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}
