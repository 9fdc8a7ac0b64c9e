// Package session manages locally persisted sessions: the durable per-device
// records that let an application resume an authenticated backend session
// without re-entering credentials.
package session

import (
	"time"

	"github.com/jmcleod/keyrelay/blob"
)

// Source records how a session was originally established.
type Source int

const (
	// SourcePassword is the primary provider: password authentication.
	SourcePassword Source = iota
	SourceSAML
	SourceOAuth
)

func (s Source) valid() bool {
	switch s {
	case SourcePassword, SourceSAML, SourceOAuth:
		return true
	}
	return false
}

// PersistedSession is a durable session record keyed by its device-local ID.
// There is exactly one record per LocalID; writes replace the whole record.
type PersistedSession struct {
	// LocalID identifies one of potentially several concurrently signed-in
	// accounts in the same profile. Non-negative, recovered from the storage
	// key rather than the stored value.
	LocalID int

	UID    string
	UserID string

	// Blob is the base64 ciphertext of the session's secret material, empty
	// when the account has no password-derived secret to cache.
	Blob string

	// IsSelf is false for sub-user impersonation sessions.
	IsSelf bool

	// Persistent sessions survive browser restarts; others are memory-only.
	Persistent bool

	// Trusted marks the device as trusted, affecting 2FA prompting downstream.
	Trusted bool

	PayloadVersion int
	PayloadType    blob.PayloadType

	// OfflineKeySalt travels in the clear; the matching offline key password
	// lives inside the encrypted Blob. Only set for offline payloads.
	OfflineKeySalt string

	Source Source

	// PersistedAt is stamped by the store at persistence time and is not
	// client-adjustable afterwards.
	PersistedAt time.Time
}

// User is the backend user object attached to a session.
type User struct {
	ID    string `json:"ID"`
	Name  string `json:"Name"`
	Email string `json:"Email"`
}

// RemoteSession is one entry of the backend's list of live local sessions
// for a user.
type RemoteSession struct {
	UID     string `json:"UID"`
	LocalID int    `json:"LocalID"`
	UserID  string `json:"UserID"`
}
