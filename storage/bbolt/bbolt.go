// Package bbolt provides a BBolt-backed storage repository.
package bbolt

import (
	"bytes"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/keyrelay/storage"
)

// Store implements storage.Repository backed by a BBolt database, one bucket
// per scope.
type Store struct {
	db *bbolt.DB
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given BBolt database.
func NewRepository(db *bbolt.DB) *Store {
	return &Store{db: db}
}

// NewRepositoryFromFile opens a BBolt database at the given path and returns a new Repository.
func NewRepositoryFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewRepository(db), nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Put(scope, recordType, recordID string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(scope))
		if err != nil {
			return err
		}
		return b.Put([]byte(storage.RecordKey(recordType, recordID)), value)
	})
}

func (s *Store) Get(scope, recordType, recordID string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(scope))
		if b == nil {
			return fmt.Errorf("%s: %w", scope, storage.ErrScopeNotFound)
		}
		data := b.Get([]byte(storage.RecordKey(recordType, recordID)))
		if data == nil {
			return fmt.Errorf("%s/%s: %w", recordType, recordID, storage.ErrNotFound)
		}
		value = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Store) Delete(scope, recordType, recordID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(scope))
		if b == nil {
			return fmt.Errorf("%s: %w", scope, storage.ErrScopeNotFound)
		}
		key := []byte(storage.RecordKey(recordType, recordID))
		if b.Get(key) == nil {
			return fmt.Errorf("%s/%s: %w", recordType, recordID, storage.ErrNotFound)
		}
		return b.Delete(key)
	})
}

func (s *Store) List(scope, recordType string) ([]string, error) {
	var ids []string
	prefix := []byte(recordType + "-")
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(scope))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			ids = append(ids, string(k[len(prefix):]))
		}
		return nil
	})
	return ids, err
}
