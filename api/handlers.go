package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/keyrelay/internal/util"
	"github.com/jmcleod/keyrelay/internal/uuid"
	"github.com/jmcleod/keyrelay/storage"
)

const (
	accessTokenTTL    = time.Hour
	sessionCookieName = "keyrelay_session"
)

// Login provisions a session. With UserID set the session attaches to that
// existing user; otherwise a new user is created from Name/Email. This is
// the bootstrap endpoint a deployment drives account creation through.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !readJSON(w, r, &req) {
		return
	}

	var user serverUser
	if req.UserID != "" {
		if err := getRecord(a.repo, recordTypeUser, req.UserID, &user); err != nil {
			writeError(w, http.StatusUnprocessableEntity, codeInvalidRequest, "unknown user")
			return
		}
	} else {
		user = serverUser{ID: uuid.New(), Name: req.Name, Email: req.Email}
		if err := putRecord(a.repo, recordTypeUser, user.ID, user); err != nil {
			writeError(w, http.StatusInternalServerError, "", err.Error())
			return
		}
	}

	sess, err := a.createSession(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", err.Error())
		return
	}

	a.audit.log(AuditLogin, r,
		slog.String("uid", sess.UID),
		slog.String("user_id", user.ID),
	)
	writeJSON(w, http.StatusOK, LoginResponse{
		UID:          sess.UID,
		LocalID:      sess.LocalID,
		UserID:       sess.UserID,
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
	})
}

func (a *API) createSession(userID string) (serverSession, error) {
	localID, err := a.nextLocalID(userID)
	if err != nil {
		return serverSession{}, err
	}
	accessToken, err := util.RandomToken(32)
	if err != nil {
		return serverSession{}, err
	}
	refreshToken, err := util.RandomToken(32)
	if err != nil {
		return serverSession{}, err
	}
	sess := serverSession{
		UID:          uuid.New(),
		UserID:       userID,
		LocalID:      localID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		CreatedAt:    a.now().Unix(),
	}
	if err := putRecord(a.repo, recordTypeSession, sess.UID, sess); err != nil {
		return serverSession{}, err
	}
	return sess, nil
}

// PushFork stores an encrypted fork payload under a fresh one-time selector
// and provisions the child session it will resolve to.
func (a *API) PushFork(w http.ResponseWriter, r *http.Request) {
	var req PushForkRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.ChildClientID == "" {
		writeError(w, http.StatusUnprocessableEntity, codeInvalidRequest, "missing child client id")
		return
	}
	parent := sessionFromContext(r.Context())

	child, err := a.createSession(parent.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", err.Error())
		return
	}

	rec := forkRecord{
		Selector:      uuid.New(),
		Payload:       req.Payload,
		ParentUID:     parent.UID,
		ChildUID:      child.UID,
		ChildClientID: req.ChildClientID,
		Independent:   req.Independent != 0,
		CreatedAt:     a.now().Unix(),
	}
	if err := putRecord(a.repo, recordTypeFork, rec.Selector, rec); err != nil {
		writeError(w, http.StatusInternalServerError, "", err.Error())
		return
	}

	a.audit.log(AuditForkPushed, r,
		slog.String("uid", parent.UID),
		slog.String("selector", rec.Selector),
		slog.String("child_client_id", req.ChildClientID),
	)
	writeJSON(w, http.StatusOK, PushForkResponse{Selector: rec.Selector})
}

// PullFork exchanges a selector for its fork exactly once. The record is
// deleted before the response is written, so a replayed pull always 422s.
func (a *API) PullFork(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if blocked, retryAfter := a.pullLimiter.check(ip); blocked {
		a.audit.log(AuditForkRateLimited, r)
		writeRateLimited(w, retryAfter)
		return
	}

	selector := chi.URLParam(r, "selector")
	var rec forkRecord
	err := getRecord(a.repo, recordTypeFork, selector, &rec)
	if err == nil {
		err = a.repo.Delete(scopeBackend, recordTypeFork, selector)
	}
	if err == nil && a.now().Sub(time.Unix(rec.CreatedAt, 0)) > a.selectorTTL {
		err = storage.ErrNotFound
	}
	if err != nil {
		a.pullLimiter.recordFailure(ip)
		a.audit.log(AuditForkPullDenied, r, slog.String("selector", selector))
		writeError(w, http.StatusUnprocessableEntity, codeInvalidSelector, "selector is not valid")
		return
	}
	a.pullLimiter.recordSuccess(ip)

	child, ok := a.getSession(rec.ChildUID)
	if !ok {
		writeError(w, http.StatusInternalServerError, "", "child session missing")
		return
	}

	a.audit.log(AuditForkPulled, r,
		slog.String("selector", selector),
		slog.String("uid", child.UID),
	)
	writeJSON(w, http.StatusOK, PullForkResponse{
		Payload:      rec.Payload,
		LocalID:      child.LocalID,
		UID:          child.UID,
		AccessToken:  child.AccessToken,
		RefreshToken: child.RefreshToken,
		ExpiresIn:    int(accessTokenTTL.Seconds()),
		TokenType:    "Bearer",
		UserID:       child.UserID,
	})
}

// LocalKey issues the session's client key, derived from the master secret
// and the UID. The same UID always gets the same key, so blobs sealed under
// it stay decryptable for the session's whole life.
func (a *API) LocalKey(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	key, err := util.HKDF(a.masterSecret, nil, []byte("client-key:"+sess.UID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", err.Error())
		return
	}
	defer util.WipeBytes(key)

	a.audit.log(AuditKeyIssued, r, slog.String("uid", sess.UID))
	writeJSON(w, http.StatusOK, LocalKeyResponse{ClientKey: util.B64Encode(key)})
}

// User returns the user object of the session's owner.
func (a *API) User(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	var user serverUser
	if err := getRecord(a.repo, recordTypeUser, sess.UserID, &user); err != nil {
		writeError(w, http.StatusInternalServerError, "", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{
		User: UserModel{ID: user.ID, Name: user.Name, Email: user.Email},
	})
}

// LocalSessions lists the live sessions of the session's owner.
func (a *API) LocalSessions(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	ids, err := a.repo.List(scopeBackend, recordTypeSession)
	if err != nil && !storage.IsNotFound(err) {
		writeError(w, http.StatusInternalServerError, "", err.Error())
		return
	}

	resp := LocalSessionsResponse{Sessions: []SessionModel{}}
	for _, uid := range ids {
		other, ok := a.getSession(uid)
		if !ok || other.Revoked || other.UserID != sess.UserID {
			continue
		}
		resp.Sessions = append(resp.Sessions, SessionModel{
			UID:     other.UID,
			LocalID: other.LocalID,
			UserID:  other.UserID,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetCookies establishes the session cookie for browser navigation.
func (a *API) SetCookies(w http.ResponseWriter, r *http.Request) {
	var req SetCookiesRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.State == "" {
		writeError(w, http.StatusUnprocessableEntity, codeInvalidRequest, "missing state")
		return
	}
	sess := sessionFromContext(r.Context())
	if req.RefreshToken != "" && req.RefreshToken != sess.RefreshToken {
		writeError(w, http.StatusUnauthorized, codeInvalidSession, "refresh token mismatch")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.UID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	a.audit.log(AuditCookiesSet, r, slog.String("uid", sess.UID))
	w.WriteHeader(http.StatusNoContent)
}

// Revoke revokes the authenticated session. Only child revocation is
// supported; the record is kept, marked revoked, so replays of its tokens
// keep failing.
func (a *API) Revoke(w http.ResponseWriter, r *http.Request) {
	var req RevokeRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Child != 1 {
		writeError(w, http.StatusUnprocessableEntity, codeInvalidRequest, "only child revocation is supported")
		return
	}
	sess := sessionFromContext(r.Context())
	sess.Revoked = true
	if err := putRecord(a.repo, recordTypeSession, sess.UID, sess); err != nil {
		writeError(w, http.StatusInternalServerError, "", err.Error())
		return
	}
	a.audit.log(AuditSessionRevoked, r, slog.String("uid", sess.UID))
	writeJSON(w, http.StatusOK, struct{}{})
}

// OAuthFork prepares an OAuth-style handoff: the backend itself builds the
// payload and answers with the redirect to navigate to. The code parameter
// is a one-time selector like any other.
func (a *API) OAuthFork(w http.ResponseWriter, r *http.Request) {
	var req OAuthForkRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.ClientID == "" {
		writeError(w, http.StatusUnprocessableEntity, codeInvalidRequest, "missing client id")
		return
	}
	parent := sessionFromContext(r.Context())

	child, err := a.createSession(parent.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", err.Error())
		return
	}
	rec := forkRecord{
		Selector:      uuid.New(),
		ParentUID:     parent.UID,
		ChildUID:      child.UID,
		ChildClientID: req.ClientID,
		CreatedAt:     a.now().Unix(),
	}
	if err := putRecord(a.repo, recordTypeFork, rec.Selector, rec); err != nil {
		writeError(w, http.StatusInternalServerError, "", err.Error())
		return
	}

	query := url.Values{}
	query.Set("code", rec.Selector)
	if req.OaSession != "" {
		query.Set("state", req.OaSession)
	}
	a.audit.log(AuditOAuthFork, r,
		slog.String("uid", parent.UID),
		slog.String("client_id", req.ClientID),
	)
	writeJSON(w, http.StatusOK, OAuthForkResponse{
		Data: OAuthForkData{RedirectUri: a.oauthBase + "?" + query.Encode()},
	})
}
