package efficio

import (
	"context"
	"errors"
	"time"

	"github.com/ghost-in-the-sushi/efficio-webapp/internal/audit"
)

const (
	auditEventRegisterSuccess   = audit.KindRegistered
	auditEventRegisterDuplicate = audit.KindRegisterDuplicate
	auditEventRegisterFailure   = audit.KindRegisterFailed
	auditEventLoginSuccess      = audit.KindLoggedIn
	auditEventLoginFailure      = audit.KindLoginFailed
	auditEventLoginRateLimited  = audit.KindLoginRateLimited
	auditEventLogout            = audit.KindLoggedOut
	auditEventSessionReissued   = audit.KindSessionReissued
	auditEventAccountDeleted    = audit.KindAccountDeleted
	auditEventFlush             = audit.KindFlushed
)

// AuditErrorCode is the stable error label carried by failed audit events.
type AuditErrorCode string

const (
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrInvalidRequest     AuditErrorCode = "invalid_request"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// auditRecord is what a call site knows about an event; emitAudit adds the
// time, client IP and outcome.
type auditRecord struct {
	accountID string
	username  string
	err       error
	revoked   int
}

func (e *Engine) emitAudit(ctx context.Context, kind AuditKind, rec auditRecord) {
	if e == nil || e.audit == nil {
		return
	}

	e.audit.Emit(ctx, AuditEvent{
		Time:      time.Now().UTC(),
		Kind:      kind,
		AccountID: rec.accountID,
		Username:  rec.username,
		IP:        ClientIPFromContext(ctx),
		Success:   kind.Succeeded() && rec.err == nil,
		Error:     string(auditErrorCode(rec.err)),
		Revoked:   rec.revoked,
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrUsernameTaken):
		return auditErrDuplicate
	case errors.Is(err, ErrInvalidRequest):
		return auditErrInvalidRequest
	default:
		return auditErrInternal
	}
}
