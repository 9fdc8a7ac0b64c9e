package blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/keyrelay/internal/util"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := util.NewAESKey()
	require.NoError(t, err)
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testKey(t)

	for _, version := range []int{Version1, Version2} {
		for _, payload := range []Payload{
			DefaultPayload{KeyPassword: "pw123"},
			OfflinePayload{KeyPassword: "pw123", OfflineKeyPassword: "offline-pw"},
		} {
			enc, err := Encrypt(key, payload, version, ContextSession)
			require.NoError(t, err, "version %d %T", version, payload)

			got, err := Decrypt(key, enc, version, ContextSession)
			require.NoError(t, err, "version %d %T", version, payload)
			assert.Equal(t, payload, got)
		}
	}
}

func TestDecryptVersion2WithVersion1Path(t *testing.T) {
	key := testKey(t)
	enc, err := Encrypt(key, DefaultPayload{KeyPassword: "pw"}, Version2, ContextFork)
	require.NoError(t, err)

	// A v2 blob opened without domain separation must fail, not yield plaintext.
	_, err = Decrypt(key, enc, Version1, ContextFork)
	assert.Error(t, err)
}

func TestDecryptContextMismatch(t *testing.T) {
	key := testKey(t)
	enc, err := Encrypt(key, DefaultPayload{KeyPassword: "pw"}, Version2, ContextFork)
	require.NoError(t, err)

	_, err = Decrypt(key, enc, Version2, ContextSession)
	assert.Error(t, err, "fork blob must not open as a session blob")
}

func TestDecryptWrongKey(t *testing.T) {
	enc, err := Encrypt(testKey(t), DefaultPayload{KeyPassword: "pw"}, Version2, ContextFork)
	require.NoError(t, err)

	_, err = Decrypt(testKey(t), enc, Version2, ContextFork)
	assert.Error(t, err)
}

func TestDecryptMalformedBase64(t *testing.T) {
	_, err := Decrypt(testKey(t), "%%%not-base64%%%", Version1, ContextSession)
	assert.Error(t, err)
}

func TestUnsupportedVersionFailsClosed(t *testing.T) {
	key := testKey(t)

	_, err := Encrypt(key, DefaultPayload{KeyPassword: "pw"}, 3, ContextSession)
	assert.Error(t, err)

	enc, err := Encrypt(key, DefaultPayload{KeyPassword: "pw"}, Version1, ContextSession)
	require.NoError(t, err)
	_, err = Decrypt(key, enc, 99, ContextSession)
	assert.Error(t, err)
	_, err = Decrypt(key, enc, 0, ContextSession)
	assert.Error(t, err)
}

func TestUnknownContextFailsClosed(t *testing.T) {
	key := testKey(t)
	_, err := Encrypt(key, DefaultPayload{KeyPassword: "pw"}, Version2, "no-such-context")
	assert.Error(t, err)
}

func TestLegacyUntaggedPayload(t *testing.T) {
	// v1 blobs issued before the type tag existed decode as default payloads.
	got, err := unmarshalPayload([]byte(`{"keyPassword":"legacy"}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultPayload{KeyPassword: "legacy"}, got)
}

func TestUnknownPayloadType(t *testing.T) {
	_, err := unmarshalPayload([]byte(`{"type":"future","keyPassword":"x"}`))
	assert.Error(t, err)
}
