package fork

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmcleod/keyrelay/session"
)

// DefaultExtensionTimeout bounds how long an extension fork waits for the
// channel to answer before resolving to ErrExtensionTimeout.
const DefaultExtensionTimeout = 15 * time.Second

// Message is one frame of the extension request/response protocol.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Message types of the extension protocol.
const (
	MessageFork    = "fork"
	MessageSuccess = "success"
	MessageError   = "error"
)

// Channel is an async request/response transport to a browser extension.
// Implementations wrap whatever messaging primitive the host platform
// offers; a test double can implement it in-process.
type Channel interface {
	Send(ctx context.Context, msg Message) (Message, error)
}

// ExtensionForkPayload is what an extension receives in a fork message. The
// extension handles its own persistence; this contract ends at delivery.
type ExtensionForkPayload struct {
	Selector    string              `json:"selector"`
	KeyPassword string              `json:"keyPassword"`
	OfflineKey  *session.OfflineKey `json:"offlineKey,omitempty"`
	Persistent  bool                `json:"persistent"`
	Trusted     bool                `json:"trusted"`
	State       string              `json:"state"`
}

// ExtensionOptions configures ProduceExtensionFork.
type ExtensionOptions struct {
	// Timeout defaults to DefaultExtensionTimeout when zero.
	Timeout time.Duration
}

// ProduceExtensionFork delivers fork material to an extension over ch and
// returns the extension's success payload. The channel not answering within
// the timeout yields ErrExtensionTimeout; an explicit error response yields
// a plain error. Either way no local state was touched.
func ProduceExtensionFork(ctx context.Context, ch Channel, payload ExtensionForkPayload, opts ExtensionOptions) (json.RawMessage, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultExtensionTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding extension payload: %w", err)
	}

	resp, err := ch.Send(ctx, Message{Type: MessageFork, Payload: raw})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrExtensionTimeout
		}
		return nil, err
	}

	switch resp.Type {
	case MessageSuccess:
		return resp.Payload, nil
	case MessageError:
		if resp.Error != "" {
			return nil, fmt.Errorf("extension rejected fork: %s", resp.Error)
		}
		return nil, errors.New("extension rejected fork")
	default:
		return nil, fmt.Errorf("unexpected extension response type %q", resp.Type)
	}
}
