package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/jmcleod/keyrelay/blob"
)

// API is the authenticated backend surface the resumption service needs.
// Implementations must scope each call's auth headers to the supplied UID,
// not to any ambient session.
type API interface {
	// GetLocalKey fetches the device-local blob decryption key for uid.
	GetLocalKey(ctx context.Context, uid string) ([]byte, error)
	// GetUser fetches the user object, authenticated as uid.
	GetUser(ctx context.Context, uid string) (User, error)
	// GetLocalSessions lists the backend's currently-live local sessions
	// for the user owning uid.
	GetLocalSessions(ctx context.Context, uid string) ([]RemoteSession, error)
}

// statusCoder is implemented by transport errors carrying an HTTP status.
type statusCoder interface {
	StatusCode() int
}

func isAuthError(err error) bool {
	var sc statusCoder
	return errors.As(err, &sc) && sc.StatusCode() == http.StatusUnauthorized
}

// ResumedSession is a live session recovered from local storage and
// revalidated against the backend.
type ResumedSession struct {
	UID     string
	LocalID int
	User    User

	// KeyPassword is empty for sessions persisted without a blob.
	KeyPassword        string
	OfflineKeyPassword string
	OfflineKeySalt     string

	Persistent     bool
	Trusted        bool
	PayloadVersion int
	PayloadType    blob.PayloadType
	Source         Source
}

// Resume validates the session stored under localID against the backend and
// returns it live. It is the single point deciding whether a locally cached
// session is still good; callers must not guess validity from blob presence.
//
// A missing or corrupt record, a 401 from the backend, or a blob that fails
// to decrypt all remove the record and return ErrInvalidPersistentSession.
// Other errors (network, 5xx) propagate unwrapped and leave the record in
// place: a transient outage must not destroy a potentially valid session.
func Resume(ctx context.Context, api API, store *Store, localID int) (*ResumedSession, error) {
	rec, err := store.GetParsed(localID)
	if err != nil || rec.UID == "" {
		// Remove whatever is there; a UID-less record is unusable.
		_ = store.removeRaw(localID)
		return nil, fmt.Errorf("%w: no usable record for local ID %d", ErrInvalidPersistentSession, localID)
	}

	if rec.Blob == "" {
		user, err := api.GetUser(ctx, rec.UID)
		if err != nil {
			return nil, invalidateOnAuthError(store, rec, err)
		}
		return resumed(rec, user, nil), nil
	}

	// Password-bearing session: fetch the local key and the user in
	// parallel; both are read-only and independent.
	var (
		wg       sync.WaitGroup
		localKey []byte
		keyErr   error
		user     User
		userErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		localKey, keyErr = api.GetLocalKey(ctx, rec.UID)
	}()
	go func() {
		defer wg.Done()
		user, userErr = api.GetUser(ctx, rec.UID)
	}()
	wg.Wait()

	if keyErr != nil {
		return nil, invalidateOnAuthError(store, rec, keyErr)
	}
	if userErr != nil {
		return nil, invalidateOnAuthError(store, rec, userErr)
	}

	payload, err := blob.Decrypt(localKey, rec.Blob, rec.PayloadVersion, blob.ContextSession)
	if err != nil {
		// Undecryptable secret material means the record is dead.
		_ = store.Remove(*rec)
		return nil, fmt.Errorf("%w: decrypting session blob for local ID %d: %v", ErrInvalidPersistentSession, localID, err)
	}
	return resumed(rec, user, payload), nil
}

// invalidateOnAuthError maps a 401-class backend response to removal plus
// ErrInvalidPersistentSession; any other error is returned untouched.
func invalidateOnAuthError(store *Store, rec *PersistedSession, err error) error {
	if !isAuthError(err) {
		return err
	}
	_ = store.Remove(*rec)
	return fmt.Errorf("%w: backend rejected session for local ID %d: %v", ErrInvalidPersistentSession, rec.LocalID, err)
}

func resumed(rec *PersistedSession, user User, payload blob.Payload) *ResumedSession {
	r := &ResumedSession{
		UID:            rec.UID,
		LocalID:        rec.LocalID,
		User:           user,
		OfflineKeySalt: rec.OfflineKeySalt,
		Persistent:     rec.Persistent,
		Trusted:        rec.Trusted,
		PayloadVersion: rec.PayloadVersion,
		PayloadType:    rec.PayloadType,
		Source:         rec.Source,
	}
	switch p := payload.(type) {
	case blob.DefaultPayload:
		r.KeyPassword = p.KeyPassword
	case blob.OfflinePayload:
		r.KeyPassword = p.KeyPassword
		r.OfflineKeyPassword = p.OfflineKeyPassword
		if p.OfflineKeySalt != "" {
			r.OfflineKeySalt = p.OfflineKeySalt
		}
	case nil:
		// Blobless session; no cached secret.
	}
	return r
}

// ActiveSessions is the result of scanning local storage for live sessions.
type ActiveSessions struct {
	// Session is the first locally stored session that resumed successfully,
	// nil when none did.
	Session *ResumedSession
	// Sessions lists the locally stored sessions the backend also considers
	// live. A session revoked server-side but still present locally is
	// excluded. Empty when Session is nil.
	Sessions []PersistedSession
}

// GetActiveSessions scans persisted sessions in storage order, resuming the
// first that validates, then intersects local storage with the backend's
// live-session list so both sides agree on what exists. Sessions failing
// with ErrInvalidPersistentSession are skipped; any other error aborts the
// scan, since the device may simply be offline and guessing would be unsafe.
func GetActiveSessions(ctx context.Context, api API, store *Store) (ActiveSessions, error) {
	for _, rec := range store.GetAll() {
		res, err := Resume(ctx, api, store, rec.LocalID)
		if err != nil {
			if errors.Is(err, ErrInvalidPersistentSession) {
				continue
			}
			return ActiveSessions{}, err
		}

		remote, err := api.GetLocalSessions(ctx, res.UID)
		if err != nil {
			return ActiveSessions{}, err
		}
		live := make(map[string]struct{}, len(remote))
		for _, rs := range remote {
			live[rs.UID] = struct{}{}
		}

		var agreed []PersistedSession
		for _, local := range store.GetAll() {
			if _, ok := live[local.UID]; ok {
				agreed = append(agreed, local)
			}
		}
		return ActiveSessions{Session: res, Sessions: agreed}, nil
	}
	return ActiveSessions{}, nil
}
