package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/angohost/portal/internal/app/storage"
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Store implements storage.Store backed by PostgreSQL.
type Store struct {
	db *sqlx.DB // nil when the store is bound to a transaction
	q  queryer
}

var _ storage.Store = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	x := sqlx.NewDb(db, "postgres")
	return &Store{db: x, q: x}
}

// WithTx implements storage.Transactor. Nested calls reuse the outer
// transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&Store{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// inTx runs fn inside the current transaction or a new one.
func (s *Store) inTx(ctx context.Context, fn func(q queryer) error) error {
	return s.WithTx(ctx, func(tx storage.Store) error {
		return fn(tx.(*Store).q)
	})
}

func mapErr(kind, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, key, storage.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%s %s: %w", kind, key, storage.ErrConflict)
		case invalidTextRepresentation:
			// A malformed uuid cannot name an existing row.
			return fmt.Errorf("%s %s: %w", kind, key, storage.ErrNotFound)
		}
	}
	return fmt.Errorf("%s %s: %w", kind, key, err)
}

func expectRows(kind, key string, result sql.Result) error {
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("%s %s: %w", kind, key, storage.ErrNotFound)
	}
	return nil
}
