package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jmcleod/keyrelay/internal/util"
	"github.com/jmcleod/keyrelay/session"
)

// PushForkRequest is the body of POST auth/sessions/forks. Payload is the
// encrypted fork blob; the raw key that opens it is never part of any
// request.
type PushForkRequest struct {
	Payload       string `json:"Payload,omitempty"`
	ChildClientID string `json:"ChildClientID"`
	Independent   int    `json:"Independent"`
}

type pushForkResponse struct {
	Selector string `json:"Selector"`
}

// PushForkSession pushes an encrypted fork payload and returns the opaque
// one-time-use selector the child exchanges it with.
func (c *Client) PushForkSession(ctx context.Context, auth Auth, req PushForkRequest) (string, error) {
	var resp pushForkResponse
	if err := c.do(ctx, http.MethodPost, "/auth/sessions/forks", auth, req, &resp); err != nil {
		return "", err
	}
	return resp.Selector, nil
}

// PulledForkSession is the response of GET auth/sessions/forks/{selector}.
type PulledForkSession struct {
	Payload      string `json:"Payload,omitempty"`
	LocalID      int    `json:"LocalID"`
	UID          string `json:"UID"`
	AccessToken  string `json:"AccessToken"`
	RefreshToken string `json:"RefreshToken"`
	ExpiresIn    int    `json:"ExpiresIn"`
	TokenType    string `json:"TokenType"`
	UserID       string `json:"UserID"`
}

// PullForkSession exchanges a selector for the forked session. The backend
// enforces one-time use: a second pull with the same selector fails.
func (c *Client) PullForkSession(ctx context.Context, selector string) (PulledForkSession, error) {
	var resp PulledForkSession
	path := "/auth/sessions/forks/" + url.PathEscape(selector)
	if err := c.do(ctx, http.MethodGet, path, Auth{}, nil, &resp); err != nil {
		return PulledForkSession{}, err
	}
	return resp, nil
}

type localKeyResponse struct {
	ClientKey string `json:"ClientKey"`
}

// GetLocalKey fetches the device-local blob decryption key for the
// authenticated session.
func (c *Client) GetLocalKey(ctx context.Context, auth Auth) ([]byte, error) {
	var resp localKeyResponse
	if err := c.do(ctx, http.MethodGet, "/auth/sessions/local/key", auth, nil, &resp); err != nil {
		return nil, err
	}
	key, err := util.B64Decode(resp.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("decoding client key: %w", err)
	}
	return key, nil
}

// GetUser fetches the user object for the authenticated session.
func (c *Client) GetUser(ctx context.Context, auth Auth) (session.User, error) {
	var resp struct {
		User session.User `json:"User"`
	}
	if err := c.do(ctx, http.MethodGet, "/user", auth, nil, &resp); err != nil {
		return session.User{}, err
	}
	return resp.User, nil
}

// GetLocalSessions lists the backend's live local sessions for the user
// owning the authenticated session.
func (c *Client) GetLocalSessions(ctx context.Context, auth Auth) ([]session.RemoteSession, error) {
	var resp struct {
		Sessions []session.RemoteSession `json:"Sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/sessions/local", auth, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// SetCookiesRequest is the body of POST auth/cookies. State is a fresh
// anti-replay token, independent of any fork state.
type SetCookiesRequest struct {
	UID          string `json:"UID"`
	ResponseType string `json:"ResponseType"`
	GrantType    string `json:"GrantType"`
	RefreshToken string `json:"RefreshToken"`
	RedirectURI  string `json:"RedirectURI"`
	Persistent   int    `json:"Persistent"`
	State        string `json:"State"`
}

// SetCookies establishes backend session cookies for the session.
func (c *Client) SetCookies(ctx context.Context, auth Auth, req SetCookiesRequest) error {
	return c.do(ctx, http.MethodPost, "/auth/cookies", auth, req, nil)
}

type revokeRequest struct {
	Child int `json:"Child"`
}

// RevokeChildSession revokes the authenticated session as a discarded child
// fork.
func (c *Client) RevokeChildSession(ctx context.Context, auth Auth) error {
	return c.do(ctx, http.MethodDelete, "/auth", auth, revokeRequest{Child: 1}, nil)
}

// OAuthForkRequest is the body of POST oauth/v1/fork.
type OAuthForkRequest struct {
	ClientID  string `json:"ClientID"`
	OaSession string `json:"OaSession"`
}

type oauthForkResponse struct {
	Data struct {
		RedirectUri string `json:"RedirectUri"`
	} `json:"Data"`
}

// OAuthFork asks the backend to prepare an OAuth-style fork and returns the
// redirect URI the backend chose. No client-side encryption is involved.
func (c *Client) OAuthFork(ctx context.Context, auth Auth, req OAuthForkRequest) (string, error) {
	var resp oauthForkResponse
	if err := c.do(ctx, http.MethodPost, "/oauth/v1/fork", auth, req, &resp); err != nil {
		return "", err
	}
	return resp.Data.RedirectUri, nil
}

// sessionAPI adapts Client to session.API, authenticating each call with the
// record's UID alone.
type sessionAPI struct {
	c *Client
}

// SessionAPI returns a view of the client implementing session.API.
func (c *Client) SessionAPI() session.API {
	return sessionAPI{c: c}
}

func (a sessionAPI) GetLocalKey(ctx context.Context, uid string) ([]byte, error) {
	return a.c.GetLocalKey(ctx, Auth{UID: uid})
}

func (a sessionAPI) GetUser(ctx context.Context, uid string) (session.User, error) {
	return a.c.GetUser(ctx, Auth{UID: uid})
}

func (a sessionAPI) GetLocalSessions(ctx context.Context, uid string) ([]session.RemoteSession, error) {
	return a.c.GetLocalSessions(ctx, Auth{UID: uid})
}
