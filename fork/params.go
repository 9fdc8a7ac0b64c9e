package fork

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/jmcleod/keyrelay/blob"
	"github.com/jmcleod/keyrelay/internal/util"
	"github.com/jmcleod/keyrelay/session"
)

// Handoff parameter keys, shared between the consumption fragment and the
// authorization request.
const (
	keySelector       = "selector"
	keyState          = "state"
	keyKey            = "sk"
	keyVersion        = "v"
	keyLocalID        = "u"
	keyType           = "t"
	keyPersistent     = "p"
	keyTrusted        = "tr"
	keyPayloadType    = "pt"
	keyPayloadVersion = "pv"
	keySource         = "sr"
)

// maxStateLength bounds the state token accepted from a URL.
const maxStateLength = 100

// ProduceForkPayload is everything the parent side needs to hand to the
// child: the backend selector plus the raw symmetric key that never touches
// the backend. Wipe the key once the consumption URL is built.
type ProduceForkPayload struct {
	Selector       string
	State          string
	Key            []byte
	Persistent     bool
	Trusted        bool
	Type           Type
	Version        int
	PayloadType    blob.PayloadType
	PayloadVersion int
	Source         session.Source
}

// ConsumptionURL serializes the payload into "?search#fragment" against the
// child application's base URL. The key and selector ride exclusively in the
// fragment, which browsers do not send to servers. Optional fields are
// omitted when unset rather than emitted as empty markers.
func (p ProduceForkPayload) ConsumptionURL(baseURL string, search url.Values) string {
	fragment := url.Values{}
	fragment.Set(keySelector, p.Selector)
	fragment.Set(keyState, p.State)
	fragment.Set(keyKey, util.B64URLEncode(p.Key))
	fragment.Set(keyVersion, strconv.Itoa(p.Version))
	if p.Type.valid() {
		fragment.Set(keyType, strconv.Itoa(int(p.Type)))
	}
	if p.Persistent {
		fragment.Set(keyPersistent, "1")
	}
	if p.Trusted {
		fragment.Set(keyTrusted, "1")
	}
	if p.PayloadType == blob.PayloadOffline {
		fragment.Set(keyPayloadType, string(blob.PayloadOffline))
	}
	if p.PayloadVersion != 0 {
		fragment.Set(keyPayloadVersion, strconv.Itoa(p.PayloadVersion))
	}
	if p.Source != session.SourcePassword {
		fragment.Set(keySource, strconv.Itoa(int(p.Source)))
	}

	u := baseURL
	if encoded := search.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u + "#" + fragment.Encode()
}

// ConsumeForkParameters is the parsed handoff fragment on the child side.
type ConsumeForkParameters struct {
	Selector       string
	State          string
	Key            []byte
	Version        int
	LocalID        int // -1 when absent
	Type           Type
	Persistent     bool
	Trusted        bool
	PayloadType    blob.PayloadType
	PayloadVersion int
	Source         session.Source
}

// ParseConsumeParameters parses and validates handoff parameters. It returns
// nil when the selector or key is missing or invalid — the caller treats nil
// as "not a fork attempt" and falls through to its normal flow. All other
// values degrade to safe defaults instead of failing.
func ParseConsumeParameters(values url.Values) *ConsumeForkParameters {
	selector := values.Get(keySelector)
	if selector == "" {
		return nil
	}
	key, err := util.B64URLDecode(values.Get(keyKey))
	if err != nil || len(key) != util.AESKeySize {
		return nil
	}

	state := values.Get(keyState)
	if len(state) > maxStateLength {
		state = state[:maxStateLength]
	}

	p := &ConsumeForkParameters{
		Selector:       selector,
		State:          state,
		Key:            key,
		Version:        1,
		LocalID:        -1,
		PayloadType:    blob.PayloadDefault,
		PayloadVersion: blob.Version1,
		Source:         session.SourcePassword,
	}

	if v, err := strconv.Atoi(values.Get(keyVersion)); err == nil && v > 0 {
		p.Version = v
	}
	if u, err := strconv.Atoi(values.Get(keyLocalID)); err == nil && u >= 0 {
		p.LocalID = u
	}
	if t, err := strconv.Atoi(values.Get(keyType)); err == nil && Type(t).valid() {
		p.Type = Type(t)
	}
	p.Persistent = values.Get(keyPersistent) == "1"
	p.Trusted = values.Get(keyTrusted) == "1"
	if values.Get(keyPayloadType) == string(blob.PayloadOffline) {
		p.PayloadType = blob.PayloadOffline
	}
	if pv, err := strconv.Atoi(values.Get(keyPayloadVersion)); err == nil && pv == blob.Version2 {
		p.PayloadVersion = blob.Version2
	}
	if sr, err := strconv.Atoi(values.Get(keySource)); err == nil {
		switch s := session.Source(sr); s {
		case session.SourcePassword, session.SourceSAML, session.SourceOAuth:
			p.Source = s
		}
	}
	return p
}

// ParseConsumeFragment is a convenience for parsing a raw "#a=b&c=d"
// fragment string.
func ParseConsumeFragment(fragment string) *ConsumeForkParameters {
	values, err := url.ParseQuery(strings.TrimPrefix(fragment, "#"))
	if err != nil {
		return nil
	}
	return ParseConsumeParameters(values)
}
