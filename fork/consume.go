package fork

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jmcleod/keyrelay/blob"
	"github.com/jmcleod/keyrelay/client"
	"github.com/jmcleod/keyrelay/internal/util"
	"github.com/jmcleod/keyrelay/session"
)

// ConsumeRequest carries the collaborators and parameters for one fork
// consumption.
type ConsumeRequest struct {
	API        API
	SessionAPI session.API
	Sessions   *session.Store
	States     *StateStore
	Parameters *ConsumeForkParameters
}

// ConsumeResult is the outcome of a successful consumption: a live session
// plus whatever fork state survived the round trip for navigation
// restoration.
type ConsumeResult struct {
	Session *session.ResumedSession
	State   State
}

// Consume runs the child side of the handoff:
//
//  1. Recover the fork state stored before navigation. A missing entry
//     degrades the navigation restoration, never the fork itself.
//  2. Exchange the one-time selector for the forked session. The backend
//     rejects a second exchange, which is the protocol's replay guard; the
//     client must not paper over that.
//  3. Existing-session-wins: if a local session for the returned LocalID
//     still resumes, revoke the fresh fork (best effort) and return the
//     existing session, so a richer local session is never downgraded.
//  4. Otherwise decrypt the payload with the fragment key, fetch the user,
//     re-seal the secrets under the device's local key, persist, and set
//     authentication cookies.
func Consume(ctx context.Context, req ConsumeRequest) (*ConsumeResult, error) {
	params := req.Parameters
	if params == nil {
		return nil, fmt.Errorf("%w: missing parameters", ErrInvalidConsume)
	}

	forkState, _ := req.States.Take(params.State)

	pulled, err := req.API.PullForkSession(ctx, params.Selector)
	if err != nil {
		return nil, pullError(err)
	}

	existing, err := session.Resume(ctx, req.SessionAPI, req.Sessions, pulled.LocalID)
	if err == nil {
		// Discard the fresh fork; the local session stays authoritative.
		_ = req.API.RevokeChildSession(ctx, client.Auth{UID: pulled.UID, AccessToken: pulled.AccessToken})
		return &ConsumeResult{Session: existing, State: forkState}, nil
	}
	if !errors.Is(err, session.ErrInvalidPersistentSession) {
		return nil, err
	}

	var payload blob.Payload
	if pulled.Payload != "" {
		payload, err = blob.Decrypt(params.Key, pulled.Payload, params.PayloadVersion, blob.ContextFork)
		if err != nil {
			return nil, fmt.Errorf("%w: decrypting fork payload: %v", ErrInvalidConsume, err)
		}
	}

	auth := client.Auth{UID: pulled.UID, AccessToken: pulled.AccessToken}
	user, err := req.API.GetUser(ctx, auth)
	if err != nil {
		return nil, err
	}

	rec := session.PersistedSession{
		LocalID:        pulled.LocalID,
		UID:            pulled.UID,
		UserID:         pulled.UserID,
		IsSelf:         true,
		Persistent:     params.Persistent,
		Trusted:        params.Trusted,
		PayloadVersion: params.PayloadVersion,
		PayloadType:    blob.PayloadDefault,
		Source:         params.Source,
	}
	if payload != nil {
		localKey, err := req.API.GetLocalKey(ctx, auth)
		if err != nil {
			return nil, err
		}
		defer util.WipeBytes(localKey)
		sealed, err := blob.Encrypt(localKey, payload, params.PayloadVersion, blob.ContextSession)
		if err != nil {
			return nil, fmt.Errorf("sealing session blob: %w", err)
		}
		rec.Blob = sealed
		rec.PayloadType = payload.Type()
		if offline, ok := payload.(blob.OfflinePayload); ok {
			rec.OfflineKeySalt = offline.OfflineKeySalt
		}
	}

	// Teardown mid-fork must not leave a partial session behind.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := req.Sessions.Set(rec); err != nil {
		return nil, err
	}

	cookieState, err := util.RandomStateToken()
	if err != nil {
		return nil, err
	}
	if err := req.API.SetCookies(ctx, auth, client.SetCookiesRequest{
		UID:          pulled.UID,
		ResponseType: "token",
		GrantType:    "refresh_token",
		RefreshToken: pulled.RefreshToken,
		Persistent:   boolToInt(params.Persistent),
		State:        cookieState,
	}); err != nil {
		return nil, err
	}

	return &ConsumeResult{
		Session: resumedFromFork(rec, user, payload),
		State:   forkState,
	}, nil
}

// pullError classifies a selector exchange failure: a 4xx means the selector
// is invalid, expired, or already consumed; anything else (network, 5xx)
// propagates untouched.
func pullError(err error) error {
	var se *client.StatusError
	if errors.As(err, &se) && se.Status >= 400 && se.Status < 500 && se.Status != http.StatusTooManyRequests {
		return fmt.Errorf("%w: pulling fork session: %v", ErrInvalidConsume, err)
	}
	return err
}

func resumedFromFork(rec session.PersistedSession, user session.User, payload blob.Payload) *session.ResumedSession {
	res := &session.ResumedSession{
		UID:            rec.UID,
		LocalID:        rec.LocalID,
		User:           user,
		OfflineKeySalt: rec.OfflineKeySalt,
		Persistent:     rec.Persistent,
		Trusted:        rec.Trusted,
		PayloadVersion: rec.PayloadVersion,
		PayloadType:    rec.PayloadType,
		Source:         rec.Source,
	}
	switch p := payload.(type) {
	case blob.DefaultPayload:
		res.KeyPassword = p.KeyPassword
	case blob.OfflinePayload:
		res.KeyPassword = p.KeyPassword
		res.OfflineKeyPassword = p.OfflineKeyPassword
	}
	return res
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
