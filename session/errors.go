package session

import "errors"

var (
	// ErrInvalidPersistentSession indicates a locally stored session is
	// structurally absent, unparseable, or was rejected by the backend with
	// an auth error. It is always accompanied by removal of the bad record.
	ErrInvalidPersistentSession = errors.New("invalid persistent session")

	// ErrCorruptRecord distinguishes an unparseable stored record from a
	// missing one. Both are treated as absent by callers that don't care.
	ErrCorruptRecord = errors.New("corrupt session record")
)
