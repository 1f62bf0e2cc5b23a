// Package postgres реализует store.Store поверх database/sql и lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kobonz/internal/database"
	"kobonz/internal/store"

	"github.com/lib/pq"
)

// Коды ошибок PostgreSQL, которые транслируются в ошибки store.
const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type queries struct {
	q querier
}

// Store хранилище на PostgreSQL.
type Store struct {
	*queries
	db *database.DB
}

var _ store.Store = (*Store)(nil)

// New создаёт хранилище поверх пула соединений.
func New(db *database.DB) *Store {
	return &Store{
		queries: &queries{q: db},
		db:      db,
	}
}

// WithinTx выполняет fn в транзакции READ COMMITTED; изоляцию погашения дают
// блокировки SELECT ... FOR UPDATE.
func (s *Store) WithinTx(ctx context.Context, fn func(q store.Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapError(err))
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&queries{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapError(err))
	}
	return nil
}

// mapError переводит ошибки драйвера в ошибки store, сохраняя исходную.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
		case pqSerializationFailure, pqDeadlockDetected:
			return fmt.Errorf("%w: %v", store.ErrConflict, err)
		}
	}
	return err
}

// expectOneRow возвращает ErrNotFound, если UPDATE не затронул строк.
func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}
