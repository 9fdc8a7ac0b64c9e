// Package fork implements the cross-application session handoff protocol: a
// parent application hands a live authenticated session to a child without
// re-entering credentials, via a one-time backend selector plus a symmetric
// key that only ever travels in the URL fragment.
package fork

import (
	"context"

	"github.com/jmcleod/keyrelay/client"
	"github.com/jmcleod/keyrelay/session"
)

// Type identifies why the fork was requested.
type Type int

const (
	TypeSwitch Type = 1
	TypeSignup Type = 2
	TypeLogin  Type = 3
)

func (t Type) valid() bool {
	switch t {
	case TypeSwitch, TypeSignup, TypeLogin:
		return true
	}
	return false
}

// ProtocolVersion is the current fork protocol version, carried as "v" in
// the handoff URL.
const ProtocolVersion = 2

// API is the backend surface the fork protocol needs. *client.Client
// implements it.
type API interface {
	PushForkSession(ctx context.Context, auth client.Auth, req client.PushForkRequest) (string, error)
	PullForkSession(ctx context.Context, selector string) (client.PulledForkSession, error)
	GetLocalKey(ctx context.Context, auth client.Auth) ([]byte, error)
	GetUser(ctx context.Context, auth client.Auth) (session.User, error)
	SetCookies(ctx context.Context, auth client.Auth, req client.SetCookiesRequest) error
	RevokeChildSession(ctx context.Context, auth client.Auth) error
	OAuthFork(ctx context.Context, auth client.Auth, req client.OAuthForkRequest) (string, error)
}

var _ API = (*client.Client)(nil)
