package efficio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ghost-in-the-sushi/efficio-webapp/internal/audit"
	"github.com/ghost-in-the-sushi/efficio-webapp/internal/rate"
	"github.com/ghost-in-the-sushi/efficio-webapp/internal/stores"
	"github.com/ghost-in-the-sushi/efficio-webapp/password"
	"github.com/ghost-in-the-sushi/efficio-webapp/session"
)

// ResourceDeleter removes everything an account owns. DeleteAccount calls it
// before revoking sessions and deleting credentials.
type ResourceDeleter interface {
	DeleteAllResourcesForAccount(ctx context.Context, accountID string) error
}

// Engine runs the account lifecycle. It is safe for concurrent use and
// holds no per-request state; build it with [New].
type Engine struct {
	config    Config
	logger    *slog.Logger
	redis     redis.UniversalClient
	accounts  *stores.Accounts
	sessions  *session.Store
	resources ResourceDeleter
	limiter   *rate.Limiter
	audit     *audit.Dispatcher
	metrics   *Metrics
}

// Close flushes pending audit events. The Redis client is owned by the
// caller and stays open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditDroppedByKind splits [Engine.AuditDropped] by event kind. Every kind
// is present, with zero when nothing was dropped.
func (e *Engine) AuditDroppedByKind() map[AuditKind]uint64 {
	var d *audit.Dispatcher
	if e != nil {
		d = e.audit
	}
	return d.DroppedByKind()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID]HistogramSnapshot{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.accounts != nil && e.sessions != nil
}

// internalError logs err and returns it wrapped in ErrInternal. The
// backend error text is kept for logs but callers should only test
// errors.Is(err, ErrInternal).
func (e *Engine) internalError(ctx context.Context, op string, err error) error {
	e.metricInc(MetricInternalError)
	e.logger.ErrorContext(ctx, "operation failed", "op", op, "error", err)
	return fmt.Errorf("%w: %s: %v", ErrInternal, op, err)
}

// Login verifies username and pwd and returns the account's session token
// and id. The session mapping is (re)stored so a token revoked by Logout
// becomes valid again on the next successful login.
//
// Login returns ErrInvalidCredentials for unknown usernames and wrong
// passwords alike, ErrLoginRateLimited once the failure budget is spent and
// ErrInternal on backend failure. pwd is wiped before Login returns.
func (e *Engine) Login(ctx context.Context, username string, pwd password.Secret) (string, string, error) {
	defer pwd.Wipe()

	if !e.ready() {
		return "", "", ErrEngineNotReady
	}
	if username == "" || pwd.Empty() {
		return "", "", ErrInvalidRequest
	}
	if len(username) > e.config.Security.MaxUsernameLength {
		return "", "", ErrInvalidCredentials
	}

	normalized := stores.Normalize(username)
	ip := ClientIPFromContext(ctx)

	if err := e.limiter.Check(ctx, normalized, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, auditRecord{username: username, err: ErrLoginRateLimited})
			e.logger.InfoContext(ctx, "login rate limited", "username", normalized, "ip", ip)
			return "", "", ErrLoginRateLimited
		}
		return "", "", e.internalError(ctx, "login", err)
	}

	reg, err := e.accounts.Verify(ctx, username, pwd)
	if err != nil {
		if !errors.Is(err, stores.ErrInvalidCredentials) && !errors.Is(err, password.ErrSecretTooLong) {
			return "", "", e.internalError(ctx, "login", err)
		}

		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, auditRecord{username: username, err: ErrInvalidCredentials})
		e.logger.DebugContext(ctx, "login rejected", "username", normalized)

		if limitErr := e.limiter.RecordFailure(ctx, normalized, ip); limitErr != nil && !errors.Is(limitErr, rate.ErrRateLimited) {
			e.logger.WarnContext(ctx, "record login failure", "error", limitErr)
		}
		return "", "", ErrInvalidCredentials
	}

	if err := e.limiter.Reset(ctx, normalized); err != nil {
		e.logger.WarnContext(ctx, "reset login attempts", "error", err)
	}

	if err := e.sessions.StoreBound(ctx, reg.Token, reg.AccountID, e.accounts.SessionGuard(reg.AccountID)); err != nil {
		if errors.Is(err, session.ErrBindingLost) {
			// Deleted or reissued while the password was being verified.
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, auditRecord{accountID: reg.AccountID, username: username, err: ErrInvalidCredentials})
			e.logger.DebugContext(ctx, "login lost its account", "account_id", reg.AccountID)
			return "", "", ErrInvalidCredentials
		}
		return "", "", e.internalError(ctx, "login", err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, auditRecord{accountID: reg.AccountID, username: username})
	e.logger.DebugContext(ctx, "login succeeded", "account_id", reg.AccountID)

	return reg.Token, reg.AccountID, nil
}

// Authenticate resolves a session token to its account id. Unknown,
// revoked and malformed tokens all yield ErrUnauthorized.
func (e *Engine) Authenticate(ctx context.Context, token string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}

	accountID, err := e.sessions.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			e.metricInc(MetricUnauthorized)
			return "", ErrUnauthorized
		}
		return "", e.internalError(ctx, "authenticate", err)
	}

	return accountID, nil
}

// Logout revokes token. An unknown token fails closed with ErrUnauthorized.
func (e *Engine) Logout(ctx context.Context, token string) error {
	accountID, err := e.Authenticate(ctx, token)
	if err != nil {
		return err
	}

	if err := e.sessions.Revoke(ctx, token); err != nil {
		return e.internalError(ctx, "logout", err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, auditRecord{accountID: accountID})
	e.logger.DebugContext(ctx, "logout", "account_id", accountID)

	return nil
}

// ReissueSession replaces the account's token. Every session of the
// account, including token, is revoked and the new token is returned.
func (e *Engine) ReissueSession(ctx context.Context, token string) (string, error) {
	accountID, err := e.Authenticate(ctx, token)
	if err != nil {
		return "", err
	}

	next, err := e.accounts.ReissueSession(ctx, accountID)
	if err != nil {
		if errors.Is(err, stores.ErrAccountNotFound) {
			// Session outlived its account.
			if revokeErr := e.sessions.Revoke(ctx, token); revokeErr != nil {
				e.logger.WarnContext(ctx, "revoke orphaned session", "account_id", accountID, "error", revokeErr)
			}
			e.metricInc(MetricUnauthorized)
			return "", ErrUnauthorized
		}
		return "", e.internalError(ctx, "reissue session", err)
	}

	revoked, err := e.sessions.RevokeAll(ctx, accountID, token)
	if err != nil {
		return "", e.internalError(ctx, "reissue session", err)
	}
	if err := e.sessions.StoreBound(ctx, next, accountID, e.accounts.SessionGuard(accountID)); err != nil {
		if errors.Is(err, session.ErrBindingLost) {
			e.metrics.add(MetricSessionsRevoked, revoked)
			e.metricInc(MetricUnauthorized)
			return "", ErrUnauthorized
		}
		return "", e.internalError(ctx, "reissue session", err)
	}

	e.metrics.add(MetricSessionsRevoked, revoked)
	e.metricInc(MetricSessionReissued)
	e.emitAudit(ctx, auditEventSessionReissued, auditRecord{accountID: accountID, revoked: revoked})

	return next, nil
}

// Ping checks that Redis answers and returns the round-trip time.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	d, err := e.sessions.Ping(ctx)
	if err != nil {
		return d, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return d, nil
}

// Stats is a point-in-time view of stored accounts.
type Stats struct {
	Accounts int64 `json:"accounts"`
}

// Stats counts registered accounts.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	if !e.ready() {
		return Stats{}, ErrEngineNotReady
	}

	n, err := e.accounts.Usernames().Count(ctx)
	if err != nil {
		return Stats{}, e.internalError(ctx, "stats", err)
	}
	return Stats{Accounts: n}, nil
}

// Flush erases the whole Redis database. It returns ErrFlushDisabled unless
// Config.Maintenance.EnableFlush is set.
func (e *Engine) Flush(ctx context.Context) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if !e.config.Maintenance.EnableFlush {
		return ErrFlushDisabled
	}

	if err := e.redis.FlushDB(ctx).Err(); err != nil {
		return e.internalError(ctx, "flush", err)
	}

	e.emitAudit(ctx, auditEventFlush, auditRecord{})
	e.logger.WarnContext(ctx, "database flushed")
	return nil
}
