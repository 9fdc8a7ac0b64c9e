package fork

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/keyrelay/storage/memory"
)

func TestStateStoreTakeIsReadOnce(t *testing.T) {
	s := NewStateStore(memory.NewRepository())
	require.NoError(t, s.Put("tok", State{URL: "https://app.example/doc/7", ReloadDocument: true}))

	st, ok := s.Take("tok")
	require.True(t, ok)
	assert.Equal(t, "https://app.example/doc/7", st.URL)
	assert.True(t, st.ReloadDocument)

	_, ok = s.Take("tok")
	assert.False(t, ok, "a taken state must be gone")
}

func TestStateStoreTakeMissingAndEmpty(t *testing.T) {
	s := NewStateStore(memory.NewRepository())
	_, ok := s.Take("never-stored")
	assert.False(t, ok)
	_, ok = s.Take("")
	assert.False(t, ok)
}

func TestStateStoreExpiry(t *testing.T) {
	s := NewStateStore(memory.NewRepository())
	now := time.Now()
	s.now = func() time.Time { return now }
	require.NoError(t, s.Put("tok", State{URL: "https://app.example"}))

	s.now = func() time.Time { return now.Add(stateMaxAge + time.Minute) }
	_, ok := s.Take("tok")
	assert.False(t, ok, "an abandoned round trip must not restore")
}

func TestRequestStoresStateAndBuildsURL(t *testing.T) {
	states := NewStateStore(memory.NewRepository())
	localID := 2

	raw, err := Request("https://auth.example/authorize", states, RequestOptions{
		App:        "mail",
		LocalID:    &localID,
		Pathname:   "/switch",
		CurrentURL: "https://mail.example/inbox/42",
		ReturnURL:  "/inbox/42",
		Email:      "user@example.com",
		Prompt:     "login",
	})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "mail", q.Get(keyApp))
	assert.Equal(t, "2", q.Get(keyLocalID))
	assert.Equal(t, "1", q.Get(keyType), "switch pathname derives the switch type")
	assert.Equal(t, "/inbox/42", q.Get(keyReturnURL))
	assert.Equal(t, "user@example.com", q.Get(keyEmail))
	assert.Equal(t, "login", q.Get(keyPrompt))

	state := q.Get(keyState)
	require.NotEmpty(t, state)
	st, ok := states.Take(state)
	require.True(t, ok, "the round trip must find the stored state under the token in the URL")
	assert.Equal(t, "https://mail.example/inbox/42", st.URL)
	assert.Equal(t, "/inbox/42", st.ReturnURL)
}

func TestRequestDropsUnsafeHints(t *testing.T) {
	states := NewStateStore(memory.NewRepository())
	raw, err := Request("https://auth.example/authorize", states, RequestOptions{
		App:       "mail",
		ReturnURL: "https://evil.example/phish",
		Email:     "not-an-address",
	})
	require.NoError(t, err)
	q, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Empty(t, q.Query().Get(keyReturnURL))
	assert.Empty(t, q.Query().Get(keyEmail))
}

func TestRequestDerivesSignupType(t *testing.T) {
	states := NewStateStore(memory.NewRepository())
	raw, err := Request("https://auth.example/authorize", states, RequestOptions{
		App:      "mail",
		Pathname: "/signup/step-2",
	})
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "2", u.Query().Get(keyType))
}

func TestRequestRequiresApp(t *testing.T) {
	states := NewStateStore(memory.NewRepository())
	_, err := Request("https://auth.example", states, RequestOptions{})
	assert.ErrorIs(t, err, ErrInvalidProduce)
}
