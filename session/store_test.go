package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/keyrelay/blob"
	"github.com/jmcleod/keyrelay/storage"
	"github.com/jmcleod/keyrelay/storage/memory"
)

func newTestStore(opts ...StoreOption) *Store {
	return NewStore(memory.NewRepository(), opts...)
}

func testSession(localID int) PersistedSession {
	return PersistedSession{
		LocalID:        localID,
		UID:            "uid-1",
		UserID:         "user-1",
		Blob:           "Y2lwaGVydGV4dA==",
		IsSelf:         true,
		Persistent:     true,
		Trusted:        false,
		PayloadVersion: blob.Version2,
		PayloadType:    blob.PayloadDefault,
		Source:         SourcePassword,
	}
}

func TestStoreSetGet(t *testing.T) {
	store := newTestStore()
	rec := testSession(0)
	require.NoError(t, store.Set(rec))

	got := store.Get(0)
	require.NotNil(t, got)
	assert.Equal(t, rec.UID, got.UID)
	assert.Equal(t, rec.UserID, got.UserID)
	assert.Equal(t, rec.Blob, got.Blob)
	assert.Equal(t, rec.IsSelf, got.IsSelf)
	assert.Equal(t, rec.Persistent, got.Persistent)
	assert.Equal(t, rec.PayloadVersion, got.PayloadVersion)
	assert.Equal(t, rec.PayloadType, got.PayloadType)
	assert.Equal(t, rec.Source, got.Source)
	assert.False(t, got.PersistedAt.IsZero())
}

func TestStoreGetMissing(t *testing.T) {
	store := newTestStore()
	assert.Nil(t, store.Get(42))

	_, err := store.GetParsed(42)
	assert.True(t, storage.IsNotFound(err))
}

func TestStoreCorruptRecord(t *testing.T) {
	repo := memory.NewRepository()
	store := NewStore(repo)
	require.NoError(t, repo.Put("sessions", "ps", "5", []byte("{not json")))

	// Get collapses corruption to absence.
	assert.Nil(t, store.Get(5))

	// GetParsed keeps the distinction.
	_, err := store.GetParsed(5)
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestStoreGetAllSkipsInvalid(t *testing.T) {
	repo := memory.NewRepository()
	store := NewStore(repo)
	require.NoError(t, store.Set(testSession(2)))
	require.NoError(t, store.Set(testSession(0)))
	require.NoError(t, repo.Put("sessions", "ps", "1", []byte("garbage")))
	require.NoError(t, repo.Put("sessions", "ps", "notanumber", []byte("{}")))

	all := store.GetAll()
	require.Len(t, all, 2)
	assert.Equal(t, 0, all[0].LocalID)
	assert.Equal(t, 2, all[1].LocalID)
}

func TestStoreRemove(t *testing.T) {
	store := newTestStore()
	rec := testSession(3)
	require.NoError(t, store.Set(rec))
	store.RecordRefresh(rec.UID)

	_, ok := store.LastRefresh(rec.UID)
	require.True(t, ok)

	require.NoError(t, store.Remove(rec))
	assert.Nil(t, store.Get(3))

	// The dependent refresh-timestamp cache is cleared with the record.
	_, ok = store.LastRefresh(rec.UID)
	assert.False(t, ok)

	// Removing again is not an error.
	assert.NoError(t, store.Remove(rec))
}

func TestStoreSetValidation(t *testing.T) {
	store := newTestStore()

	rec := testSession(0)
	rec.LocalID = -1
	assert.Error(t, store.Set(rec))

	rec = testSession(0)
	rec.UID = ""
	assert.Error(t, store.Set(rec))
}

func TestStorePersistedAtNotClientAdjustable(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	store := newTestStore(withClock(func() time.Time { return fixed }))

	rec := testSession(0)
	rec.PersistedAt = time.Unix(1, 0) // must be ignored
	require.NoError(t, store.Set(rec))

	got := store.Get(0)
	require.NotNil(t, got)
	assert.Equal(t, fixed.UTC(), got.PersistedAt)
}

func TestStoreMissingPersistentDefaultsTrue(t *testing.T) {
	repo := memory.NewRepository()
	store := NewStore(repo)
	require.NoError(t, repo.Put("sessions", "ps", "9", []byte(`{"UID":"u","UserID":"x"}`)))

	got := store.Get(9)
	require.NotNil(t, got)
	assert.True(t, got.Persistent)
	assert.Equal(t, blob.PayloadDefault, got.PayloadType)
	assert.Equal(t, SourcePassword, got.Source)
}

func TestStoreListeners(t *testing.T) {
	store := newTestStore()

	var created, removed []int
	store.OnCreate(func(rec PersistedSession) error {
		created = append(created, rec.LocalID)
		return nil
	})
	// A failing listener must not block persistence or later listeners.
	store.OnCreate(func(PersistedSession) error {
		return errors.New("listener exploded")
	})
	store.OnRemove(func(rec PersistedSession) error {
		removed = append(removed, rec.LocalID)
		return nil
	})

	rec := testSession(7)
	require.NoError(t, store.Set(rec))
	require.NoError(t, store.Remove(rec))

	assert.Equal(t, []int{7}, created)
	assert.Equal(t, []int{7}, removed)
}

func TestStoreOverwriteReplacesWholeRecord(t *testing.T) {
	store := newTestStore()
	rec := testSession(1)
	rec.OfflineKeySalt = "c2FsdA=="
	rec.PayloadType = blob.PayloadOffline
	require.NoError(t, store.Set(rec))

	replacement := testSession(1)
	replacement.Blob = ""
	replacement.PayloadVersion = 0
	require.NoError(t, store.Set(replacement))

	got := store.Get(1)
	require.NotNil(t, got)
	assert.Empty(t, got.Blob)
	assert.Empty(t, got.OfflineKeySalt, "no partial update: old fields must not survive")
	assert.Equal(t, blob.PayloadDefault, got.PayloadType)
}
