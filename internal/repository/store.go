package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// Dialect identifies the SQL flavour behind a SQLStore
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DBTX is the subset of *sql.DB and *sql.Tx the repositories need
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// SQLStore implements Store for PostgreSQL/SQLite
type SQLStore struct {
	db      *sql.DB
	q       DBTX
	dialect Dialect
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore creates a store on top of an initialized database
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, q: db, dialect: dialect}
}

// Projects returns the project repository bound to this store
func (s *SQLStore) Projects() ProjectRepo {
	return NewProjectRepository(s.q, s.dialect)
}

// Photos returns the photo repository bound to this store
func (s *SQLStore) Photos() PhotoRepo {
	return NewPhotoRepository(s.q)
}

// InTx runs fn inside a database transaction
func (s *SQLStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&SQLStore{db: s.db, q: tx, dialect: s.dialect}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Dialect reports which SQL flavour the store talks to
func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

// Close closes the underlying database
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}
