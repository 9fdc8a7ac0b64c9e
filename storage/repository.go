// Package storage provides the local record storage abstraction used for
// persisted sessions and fork state.
package storage

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrScopeNotFound is returned when the containing scope does not exist.
	ErrScopeNotFound = errors.New("scope not found")
)

// Repository defines the interface for local record storage. Records are
// opaque byte values grouped by scope and keyed as "<recordType>-<recordID>"
// within it, so the same (recordType, recordID) pair always maps to the same
// storage key. Writes replace the whole record.
type Repository interface {
	Put(scope string, recordType string, recordID string, value []byte) error
	Get(scope string, recordType string, recordID string) ([]byte, error)
	Delete(scope string, recordType string, recordID string) error
	List(scope string, recordType string) ([]string, error)
}

// IsNotFound reports whether err means the record is absent, whether because
// the record or its whole scope is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrScopeNotFound)
}

// RecordKey derives the storage key for a record within its scope.
func RecordKey(recordType, recordID string) string {
	return recordType + "-" + recordID
}
