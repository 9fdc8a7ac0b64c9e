// Package api is a reference backend for the session handoff protocol:
// one-time-use fork selectors, per-session client key issuance, cookie
// establishment, and child revocation. The backend never sees the symmetric
// key that opens a fork payload; it stores and hands back ciphertext only.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmcleod/keyrelay/storage"
)

// defaultSelectorTTL is how long a pushed fork stays pullable. The handoff
// is a browser navigation; a selector older than this is abandoned.
const defaultSelectorTTL = 10 * time.Minute

// API holds the dependencies needed by the REST handlers.
type API struct {
	repo         storage.Repository
	masterSecret []byte
	selectorTTL  time.Duration
	oauthBase    string
	pullLimiter  *pullRateLimiter
	audit        *auditLogger
	now          func() time.Time
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events. If not set, a
// default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithSelectorTTL overrides how long pushed forks stay pullable.
func WithSelectorTTL(ttl time.Duration) Option {
	return func(a *API) {
		a.selectorTTL = ttl
	}
}

// WithOAuthRedirectBase sets the base URL oauth fork redirects point at.
func WithOAuthRedirectBase(base string) Option {
	return func(a *API) {
		a.oauthBase = base
	}
}

func withClock(now func() time.Time) Option {
	return func(a *API) {
		a.now = now
	}
}

// New creates an API instance. masterSecret seeds the per-session client
// key derivation and must be stable across restarts for persisted sessions
// to stay decryptable.
func New(repo storage.Repository, masterSecret []byte, opts ...Option) *API {
	a := &API{
		repo:         repo,
		masterSecret: masterSecret,
		selectorTTL:  defaultSelectorTTL,
		oauthBase:    "https://localhost/oauth/callback",
		pullLimiter:  newPullRateLimiter(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(SecurityHeaders)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/openapi.yaml",
		Path:    "docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/openapi.yaml",
		Path:    "redoc",
	}, nil))

	r.Post("/auth/login", a.Login)
	r.Get("/auth/sessions/forks/{selector}", a.PullFork)

	r.Group(func(r chi.Router) {
		r.Use(a.AuthMiddleware)
		r.Post("/auth/sessions/forks", a.PushFork)
		r.Get("/auth/sessions/local/key", a.LocalKey)
		r.Get("/auth/sessions/local", a.LocalSessions)
		r.Get("/user", a.User)
		r.Post("/auth/cookies", a.SetCookies)
		r.Delete("/auth", a.Revoke)
		r.Post("/oauth/v1/fork", a.OAuthFork)
	})

	return r
}
