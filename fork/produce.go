package fork

import (
	"context"
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/keyrelay/blob"
	"github.com/jmcleod/keyrelay/client"
	"github.com/jmcleod/keyrelay/internal/util"
	"github.com/jmcleod/keyrelay/session"
)

// ProduceParameters describes the fork the child application asked for, as
// parsed from the authorization request on the parent side.
type ProduceParameters struct {
	// App is the child application, sent to the backend as ChildClientID.
	App string

	// State is the child's state token, echoed back untouched.
	State string

	// Independent marks a fork whose lifetime is decoupled from the parent
	// session's.
	Independent bool

	Type Type

	// PayloadType requests the offline variant; it degrades to default when
	// the parent session has no offline key to share.
	PayloadType blob.PayloadType

	// PayloadVersion defaults to the current blob version when zero.
	PayloadVersion int
}

// Produce runs the parent side of the handoff: generate an ephemeral 32-byte
// key, seal the session's secret material under it, push the ciphertext to
// the backend, and return everything needed to build the consumption URL.
// The raw key is returned to the caller only; it is never sent to the
// backend.
func Produce(ctx context.Context, api API, sess *session.ResumedSession, params ProduceParameters) (*ProduceForkPayload, error) {
	if params.App == "" {
		return nil, fmt.Errorf("%w: child app is required", ErrInvalidProduce)
	}
	switch params.PayloadType {
	case "", blob.PayloadDefault, blob.PayloadOffline:
	default:
		return nil, fmt.Errorf("%w: unsupported payload type %q", ErrInvalidProduce, params.PayloadType)
	}
	payloadVersion := params.PayloadVersion
	if payloadVersion == 0 {
		payloadVersion = blob.Version2
	}

	payload := buildPayload(sess, params.PayloadType)

	// The ephemeral key lives in locked memory until the sealed payload is
	// pushed; the returned copy is the caller's to wipe after URL building.
	keyBuf := memguard.NewBufferRandom(util.AESKeySize)
	defer keyBuf.Destroy()

	encrypted, err := blob.Encrypt(keyBuf.Bytes(), payload, payloadVersion, blob.ContextFork)
	if err != nil {
		return nil, fmt.Errorf("sealing fork payload: %w", err)
	}

	independent := 0
	if params.Independent {
		independent = 1
	}
	selector, err := api.PushForkSession(ctx, client.Auth{UID: sess.UID}, client.PushForkRequest{
		Payload:       encrypted,
		ChildClientID: params.App,
		Independent:   independent,
	})
	if err != nil {
		return nil, fmt.Errorf("pushing fork session: %w", err)
	}

	return &ProduceForkPayload{
		Selector:       selector,
		State:          params.State,
		Key:            util.CopyBytes(keyBuf.Bytes()),
		Persistent:     sess.Persistent,
		Trusted:        sess.Trusted,
		Type:           params.Type,
		Version:        ProtocolVersion,
		PayloadType:    payload.Type(),
		PayloadVersion: payloadVersion,
		Source:         sess.Source,
	}, nil
}

// buildPayload selects the payload variant: offline when requested and the
// session actually carries an offline key, default otherwise.
func buildPayload(sess *session.ResumedSession, requested blob.PayloadType) blob.Payload {
	if requested == blob.PayloadOffline && sess.OfflineKeyPassword != "" {
		return blob.OfflinePayload{
			KeyPassword:        sess.KeyPassword,
			OfflineKeyPassword: sess.OfflineKeyPassword,
			OfflineKeySalt:     sess.OfflineKeySalt,
		}
	}
	return blob.DefaultPayload{KeyPassword: sess.KeyPassword}
}
