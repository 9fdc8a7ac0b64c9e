package api

import (
	"encoding/json"
	"fmt"

	"github.com/jmcleod/keyrelay/storage"
)

// Server-side record layout. Everything lives under one scope so a single
// bbolt bucket holds the backend's whole state.
const (
	scopeBackend      = "backend"
	recordTypeSession = "sess"
	recordTypeUser    = "user"
	recordTypeFork    = "fork"
	recordTypeCounter = "seq"
)

// serverSession is a backend session record. UID is the record ID.
type serverSession struct {
	UID          string `json:"uid"`
	UserID       string `json:"userId"`
	LocalID      int    `json:"localId"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Revoked      bool   `json:"revoked,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
}

// serverUser is a backend user record. ID is the record ID.
type serverUser struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// forkRecord is a pushed, not-yet-pulled fork. Selector is the record ID;
// the record is deleted on first pull.
type forkRecord struct {
	Selector      string `json:"selector"`
	Payload       string `json:"payload,omitempty"`
	ParentUID     string `json:"parentUid"`
	ChildUID      string `json:"childUid"`
	ChildClientID string `json:"childClientId"`
	Independent   bool   `json:"independent,omitempty"`
	CreatedAt     int64  `json:"createdAt"`
}

func putRecord(repo storage.Repository, recordType, recordID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s record: %w", recordType, err)
	}
	return repo.Put(scopeBackend, recordType, recordID, data)
}

func getRecord(repo storage.Repository, recordType, recordID string, v any) error {
	data, err := repo.Get(scopeBackend, recordType, recordID)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s record %q: %w", recordType, recordID, err)
	}
	return nil
}

func (a *API) getSession(uid string) (serverSession, bool) {
	var sess serverSession
	if err := getRecord(a.repo, recordTypeSession, uid, &sess); err != nil {
		return serverSession{}, false
	}
	return sess, true
}

// nextLocalID hands out per-user local session slots, starting at 0.
func (a *API) nextLocalID(userID string) (int, error) {
	var counter struct {
		Next int `json:"next"`
	}
	err := getRecord(a.repo, recordTypeCounter, userID, &counter)
	if err != nil && !storage.IsNotFound(err) {
		return 0, err
	}
	id := counter.Next
	counter.Next++
	if err := putRecord(a.repo, recordTypeCounter, userID, counter); err != nil {
		return 0, err
	}
	return id, nil
}
