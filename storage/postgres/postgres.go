// Package postgres implements storage.Repository backed by PostgreSQL.
//
// The records table uses a composite primary key (scope, record_type,
// record_id) that mirrors the key space used by the bbolt and in-memory
// backends; values are opaque BYTEA.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmcleod/keyrelay/storage"
)

// Store implements storage.Repository backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given pgx connection pool.
func NewRepository(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewRepositoryFromDSN creates a connection pool from a DSN string, ensures
// the schema exists, and returns a new Repository.
func NewRepositoryFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return NewRepository(pool), nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Put(scope, recordType, recordID string, value []byte) error {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO records (scope, record_type, record_id, value)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (scope, record_type, record_id)
		 DO UPDATE SET value = $4`,
		scope, recordType, recordID, value)
	return err
}

func (s *Store) Get(scope, recordType, recordID string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(context.Background(),
		`SELECT value FROM records
		 WHERE scope = $1 AND record_type = $2 AND record_id = $3`,
		scope, recordType, recordID).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", storage.RecordKey(recordType, recordID), storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Store) Delete(scope, recordType, recordID string) error {
	tag, err := s.pool.Exec(context.Background(),
		`DELETE FROM records
		 WHERE scope = $1 AND record_type = $2 AND record_id = $3`,
		scope, recordType, recordID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", storage.RecordKey(recordType, recordID), storage.ErrNotFound)
	}
	return nil
}

func (s *Store) List(scope, recordType string) ([]string, error) {
	rows, err := s.pool.Query(context.Background(),
		`SELECT record_id FROM records
		 WHERE scope = $1 AND record_type = $2 ORDER BY record_id`,
		scope, recordType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
