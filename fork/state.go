package fork

import (
	"encoding/json"
	"time"

	"github.com/jmcleod/keyrelay/storage"
)

const (
	scopeForks      = "forks"
	recordTypeState = "fs"

	// stateMaxAge bounds how long a stored fork state stays consumable.
	// The round trip through the authorization endpoint takes seconds, not
	// hours; anything older is abandoned.
	stateMaxAge = 30 * time.Minute
)

// State is the record a requesting application stores under its state token
// before navigating away, so the original location can be restored when the
// browser comes back.
type State struct {
	URL            string `json:"url"`
	ReturnURL      string `json:"returnUrl,omitempty"`
	ReloadDocument bool   `json:"reloadDocument,omitempty"`
}

type stateWire struct {
	State
	CreatedAt int64 `json:"createdAt"`
}

// StateStore holds fork states for the duration of the round trip. Entries
// are read-once: Take removes what it returns.
type StateStore struct {
	repo storage.Repository
	now  func() time.Time
}

// NewStateStore creates a fork state store over the given repository.
func NewStateStore(repo storage.Repository) *StateStore {
	return &StateStore{repo: repo, now: time.Now}
}

// Put stores st under the state token.
func (s *StateStore) Put(token string, st State) error {
	data, err := json.Marshal(stateWire{State: st, CreatedAt: s.now().Unix()})
	if err != nil {
		return err
	}
	return s.repo.Put(scopeForks, recordTypeState, token, data)
}

// Take returns the state stored under token and removes it. A missing,
// corrupt, or expired entry returns ok=false: the caller degrades to a fork
// without location restoration rather than failing.
func (s *StateStore) Take(token string) (State, bool) {
	if token == "" {
		return State{}, false
	}
	data, err := s.repo.Get(scopeForks, recordTypeState, token)
	if err != nil {
		return State{}, false
	}
	_ = s.repo.Delete(scopeForks, recordTypeState, token)

	var wire stateWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return State{}, false
	}
	if s.now().Sub(time.Unix(wire.CreatedAt, 0)) > stateMaxAge {
		return State{}, false
	}
	return wire.State, true
}
