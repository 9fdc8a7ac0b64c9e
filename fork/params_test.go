package fork

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/keyrelay/blob"
	"github.com/jmcleod/keyrelay/internal/util"
	"github.com/jmcleod/keyrelay/session"
)

func TestConsumptionURLRoundTrip(t *testing.T) {
	key, err := util.NewAESKey()
	require.NoError(t, err)

	payload := ProduceForkPayload{
		Selector:       "sel-1",
		State:          "st-1",
		Key:            key,
		Persistent:     true,
		Trusted:        true,
		Type:           TypeSwitch,
		Version:        ProtocolVersion,
		PayloadType:    blob.PayloadOffline,
		PayloadVersion: blob.Version2,
		Source:         session.SourceSAML,
	}
	raw := payload.ConsumptionURL("https://child.example/login", url.Values{"lang": {"de"}})

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "de", parsed.Query().Get("lang"))
	assert.NotContains(t, parsed.RawQuery, "sk=", "the key must ride in the fragment only")

	params := ParseConsumeFragment(parsed.Fragment)
	require.NotNil(t, params)
	assert.Equal(t, "sel-1", params.Selector)
	assert.Equal(t, "st-1", params.State)
	assert.Equal(t, key, params.Key)
	assert.True(t, params.Persistent)
	assert.True(t, params.Trusted)
	assert.Equal(t, TypeSwitch, params.Type)
	assert.Equal(t, ProtocolVersion, params.Version)
	assert.Equal(t, blob.PayloadOffline, params.PayloadType)
	assert.Equal(t, blob.Version2, params.PayloadVersion)
	assert.Equal(t, session.SourceSAML, params.Source)
}

func TestConsumptionURLOmitsUnsetFields(t *testing.T) {
	payload := ProduceForkPayload{Selector: "s", Key: []byte{1}}
	raw := payload.ConsumptionURL("https://child.example", nil)
	fragment := raw[strings.Index(raw, "#")+1:]
	for _, absent := range []string{keyType, keyPersistent, keyTrusted, keyPayloadType, keySource} {
		assert.NotContains(t, fragment, absent+"=", "unset %q must be omitted", absent)
	}
}

func TestParseConsumeParametersNotAFork(t *testing.T) {
	key := util.B64URLEncode(make([]byte, util.AESKeySize))

	cases := map[string]url.Values{
		"empty":            {},
		"missing selector": {keyKey: {key}},
		"missing key":      {keySelector: {"s"}},
		"short key":        {keySelector: {"s"}, keyKey: {util.B64URLEncode(make([]byte, 16))}},
		"garbage key":      {keySelector: {"s"}, keyKey: {"%%%not-base64%%%"}},
	}
	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, ParseConsumeParameters(values))
		})
	}
}

func TestParseConsumeParametersDefaults(t *testing.T) {
	params := ParseConsumeParameters(url.Values{
		keySelector: {"s"},
		keyKey:      {util.B64URLEncode(make([]byte, util.AESKeySize))},
	})
	require.NotNil(t, params)
	assert.Equal(t, 1, params.Version)
	assert.Equal(t, -1, params.LocalID)
	assert.False(t, params.Persistent)
	assert.Equal(t, blob.PayloadDefault, params.PayloadType)
	assert.Equal(t, blob.Version1, params.PayloadVersion)
	assert.Equal(t, session.SourcePassword, params.Source)
}

func TestParseConsumeParametersMalformedDegrade(t *testing.T) {
	params := ParseConsumeParameters(url.Values{
		keySelector:       {"s"},
		keyKey:            {util.B64URLEncode(make([]byte, util.AESKeySize))},
		keyState:          {strings.Repeat("x", 500)},
		keyLocalID:        {"-7"},
		keyType:           {"99"},
		keyPayloadVersion: {"9"},
		keySource:         {"nope"},
	})
	require.NotNil(t, params)
	assert.Len(t, params.State, maxStateLength)
	assert.Equal(t, -1, params.LocalID)
	assert.Equal(t, Type(0), params.Type)
	assert.Equal(t, blob.Version1, params.PayloadVersion)
	assert.Equal(t, session.SourcePassword, params.Source)
}

func TestParseConsumeFragmentLeadingHash(t *testing.T) {
	key := util.B64URLEncode(make([]byte, util.AESKeySize))
	params := ParseConsumeFragment("#" + keySelector + "=s&" + keyKey + "=" + key)
	require.NotNil(t, params)
	assert.Equal(t, "s", params.Selector)
}
