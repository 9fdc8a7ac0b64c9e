package api

import (
	"log/slog"
	"net/http"
	"time"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditLogin           AuditEvent = "login"
	AuditForkPushed      AuditEvent = "fork_pushed"
	AuditForkPulled      AuditEvent = "fork_pulled"
	AuditForkPullDenied  AuditEvent = "fork_pull_denied"
	AuditForkRateLimited AuditEvent = "fork_rate_limited"
	AuditKeyIssued       AuditEvent = "client_key_issued"
	AuditCookiesSet      AuditEvent = "cookies_set"
	AuditSessionRevoked  AuditEvent = "session_revoked"
	AuditOAuthFork       AuditEvent = "oauth_fork"
)

// auditLogger wraps slog.Logger for structured security audit logging.
// Entries carry UIDs and selectors only; payload ciphertext, tokens, and
// derived keys never reach the log.
type auditLogger struct {
	logger *slog.Logger
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	al.logger.LogAttrs(r.Context(), slog.LevelInfo, string(event), append(baseAttrs, attrs...)...)
}
