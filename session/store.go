package session

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jmcleod/keyrelay/storage"
)

const (
	scopeSessions     = "sessions"
	recordTypeSession = "ps"
	recordTypeRefresh = "refresh"
)

// Listener observes session creation or removal. A failing listener never
// blocks persistence; errors are collected and logged, not propagated.
type Listener func(PersistedSession) error

// Store is the persisted session store: one record per LocalID on top of a
// storage.Repository, with listener fan-out on create and remove. It makes
// no network calls.
type Store struct {
	repo   storage.Repository
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	onCreate []Listener
	onRemove []Listener
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for listener failure reporting.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// withClock overrides the persistence timestamp source, for tests.
func withClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates a session store over the given repository.
func NewStore(repo storage.Repository, opts ...StoreOption) *Store {
	s := &Store{
		repo: repo,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// OnCreate registers a listener notified after every successful Set.
func (s *Store) OnCreate(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCreate = append(s.onCreate, l)
}

// OnRemove registers a listener notified after every successful Remove.
func (s *Store) OnRemove(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRemove = append(s.onRemove, l)
}

// Get returns the session stored under localID, or nil when the record is
// absent or corrupt. Use GetParsed to tell those apart.
func (s *Store) Get(localID int) *PersistedSession {
	rec, err := s.GetParsed(localID)
	if err != nil {
		return nil
	}
	return rec
}

// GetParsed returns the stored record, storage.ErrNotFound when absent, or
// ErrCorruptRecord when present but unparseable.
func (s *Store) GetParsed(localID int) (*PersistedSession, error) {
	data, err := s.repo.Get(scopeSessions, recordTypeSession, strconv.Itoa(localID))
	if err != nil {
		return nil, err
	}
	return ParseRecord(localID, data)
}

// GetAll enumerates every stored session in ascending LocalID order,
// skipping records that fail to parse.
func (s *Store) GetAll() []PersistedSession {
	ids, err := s.repo.List(scopeSessions, recordTypeSession)
	if err != nil {
		return nil
	}
	localIDs := make([]int, 0, len(ids))
	for _, id := range ids {
		localID, err := strconv.Atoi(id)
		if err != nil || localID < 0 {
			continue
		}
		localIDs = append(localIDs, localID)
	}
	sort.Ints(localIDs)

	sessions := make([]PersistedSession, 0, len(localIDs))
	for _, localID := range localIDs {
		rec, err := s.GetParsed(localID)
		if err != nil {
			continue
		}
		sessions = append(sessions, *rec)
	}
	return sessions
}

// Set persists the session, replacing any existing record for its LocalID.
// PersistedAt is stamped here; a caller-supplied value is ignored.
func (s *Store) Set(rec PersistedSession) error {
	if rec.LocalID < 0 {
		return fmt.Errorf("negative local ID %d", rec.LocalID)
	}
	if rec.UID == "" {
		return fmt.Errorf("session record requires a UID")
	}
	rec.PersistedAt = s.now().UTC()

	data, err := marshalRecord(rec)
	if err != nil {
		return fmt.Errorf("serializing session record: %w", err)
	}
	if err := s.repo.Put(scopeSessions, recordTypeSession, strconv.Itoa(rec.LocalID), data); err != nil {
		return fmt.Errorf("persisting session record: %w", err)
	}

	s.notify(s.createListeners(), rec, "create")
	return nil
}

// Remove deletes the record and the cached refresh timestamp for its UID,
// then notifies removal listeners. Removing an absent record is not an error.
func (s *Store) Remove(rec PersistedSession) error {
	if err := s.removeRaw(rec.LocalID); err != nil {
		return err
	}
	s.clearRefresh(rec.UID)
	s.notify(s.removeListeners(), rec, "remove")
	return nil
}

// removeRaw deletes a record by LocalID without listener fan-out, used for
// stale or corrupt records where no parsed session is available.
func (s *Store) removeRaw(localID int) error {
	err := s.repo.Delete(scopeSessions, recordTypeSession, strconv.Itoa(localID))
	if err != nil && !storage.IsNotFound(err) {
		return fmt.Errorf("removing session record: %w", err)
	}
	return nil
}

func (s *Store) createListeners() []Listener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Listener(nil), s.onCreate...)
}

func (s *Store) removeListeners() []Listener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Listener(nil), s.onRemove...)
}

// notify fans out to listeners, collecting errors. Failures are logged and
// never propagate: a buggy listener must not block persistence.
func (s *Store) notify(listeners []Listener, rec PersistedSession, event string) {
	for _, l := range listeners {
		if err := l(rec); err != nil {
			s.logger.Debug("session listener failed",
				slog.String("event", event),
				slog.Int("local_id", rec.LocalID),
				slog.String("error", err.Error()))
		}
	}
}

// RecordRefresh caches the time the session for uid last refreshed its
// tokens. The cache is cleared when the session is removed.
func (s *Store) RecordRefresh(uid string) {
	ts := strconv.FormatInt(s.now().UTC().Unix(), 10)
	if err := s.repo.Put(scopeSessions, recordTypeRefresh, uid, []byte(ts)); err != nil {
		s.logger.Debug("recording refresh timestamp", slog.String("error", err.Error()))
	}
}

// LastRefresh returns the cached refresh timestamp for uid, if any.
func (s *Store) LastRefresh(uid string) (time.Time, bool) {
	data, err := s.repo.Get(scopeSessions, recordTypeRefresh, uid)
	if err != nil {
		return time.Time{}, false
	}
	unix, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(unix, 0).UTC(), true
}

func (s *Store) clearRefresh(uid string) {
	if uid == "" {
		return
	}
	_ = s.repo.Delete(scopeSessions, recordTypeRefresh, uid)
}
