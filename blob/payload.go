package blob

import (
	"encoding/json"
	"fmt"
)

// PayloadType discriminates the payload variants carried inside a blob.
type PayloadType string

const (
	PayloadDefault PayloadType = "default"
	PayloadOffline PayloadType = "offline"
)

// Payload is the decrypted content of a session blob. It is a closed sum:
// DefaultPayload or OfflinePayload.
type Payload interface {
	Type() PayloadType
}

// DefaultPayload carries the password-derived key of an online session.
type DefaultPayload struct {
	KeyPassword string
}

func (DefaultPayload) Type() PayloadType { return PayloadDefault }

// OfflinePayload additionally carries the offline key password, derived from
// the user's offline passphrase, plus the salt needed to re-derive it. The
// salt is not secret; it rides along so the consuming side can persist it in
// the clear next to the session record.
type OfflinePayload struct {
	KeyPassword        string
	OfflineKeyPassword string
	OfflineKeySalt     string
}

func (OfflinePayload) Type() PayloadType { return PayloadOffline }

type payloadWire struct {
	Type               PayloadType `json:"type"`
	KeyPassword        string      `json:"keyPassword"`
	OfflineKeyPassword string      `json:"offlineKeyPassword,omitempty"`
	OfflineKeySalt     string      `json:"offlineKeySalt,omitempty"`
}

func marshalPayload(p Payload) ([]byte, error) {
	var wire payloadWire
	switch v := p.(type) {
	case DefaultPayload:
		wire = payloadWire{Type: PayloadDefault, KeyPassword: v.KeyPassword}
	case OfflinePayload:
		wire = payloadWire{
			Type:               PayloadOffline,
			KeyPassword:        v.KeyPassword,
			OfflineKeyPassword: v.OfflineKeyPassword,
			OfflineKeySalt:     v.OfflineKeySalt,
		}
	case nil:
		return nil, fmt.Errorf("nil payload")
	default:
		return nil, fmt.Errorf("unknown payload variant %T", p)
	}
	return json.Marshal(wire)
}

func unmarshalPayload(data []byte) (Payload, error) {
	var wire payloadWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("parsing payload: %w", err)
	}
	switch wire.Type {
	case PayloadDefault, "":
		// Legacy v1 blobs predate the type tag; they are default payloads.
		return DefaultPayload{KeyPassword: wire.KeyPassword}, nil
	case PayloadOffline:
		return OfflinePayload{
			KeyPassword:        wire.KeyPassword,
			OfflineKeyPassword: wire.OfflineKeyPassword,
			OfflineKeySalt:     wire.OfflineKeySalt,
		}, nil
	default:
		return nil, fmt.Errorf("unknown payload type %q", wire.Type)
	}
}
