package efficio

import (
	"context"
	"errors"

	"github.com/ghost-in-the-sushi/efficio-webapp/internal/stores"
	"github.com/ghost-in-the-sushi/efficio-webapp/password"
)

// RegisterRequest carries the inputs of [Engine.Register]. Password and
// Email are wiped once Register returns.
type RegisterRequest struct {
	Username string          `json:"username"`
	Password password.Secret `json:"password"`
	Email    password.Secret `json:"email"`
}

func (r RegisterRequest) wipe() {
	r.Password.Wipe()
	r.Email.Wipe()
}

// Register creates an account and returns its first session token.
//
// Usernames are unique case-insensitively: after "toto" exists, "ToTo"
// fails with ErrUsernameTaken. Concurrent registrations of one name produce
// exactly one winner. Empty or oversized fields fail with ErrInvalidRequest.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (string, error) {
	defer req.wipe()

	if !e.ready() {
		return "", ErrEngineNotReady
	}
	if err := e.validateRegister(req); err != nil {
		return "", err
	}

	reg, err := e.accounts.Register(ctx, req.Username, req.Password, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrUsernameTaken):
			e.metricInc(MetricRegisterUsernameTaken)
			e.emitAudit(ctx, auditEventRegisterDuplicate, auditRecord{username: req.Username, err: ErrUsernameTaken})
			e.logger.DebugContext(ctx, "username taken", "username", stores.Normalize(req.Username))
			return "", ErrUsernameTaken
		case errors.Is(err, password.ErrSecretTooLong):
			e.metricInc(MetricRegisterFailure)
			return "", ErrInvalidRequest
		default:
			e.metricInc(MetricRegisterFailure)
			e.emitAudit(ctx, auditEventRegisterFailure, auditRecord{username: req.Username, err: ErrInternal})
			return "", e.internalError(ctx, "register", err)
		}
	}

	if err := e.sessions.StoreBound(ctx, reg.Token, reg.AccountID, e.accounts.SessionGuard(reg.AccountID)); err != nil {
		// The account exists unless it was already deleted; a later Login
		// stores the mapping again.
		return "", e.internalError(ctx, "register", err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, auditRecord{accountID: reg.AccountID, username: req.Username})
	e.logger.InfoContext(ctx, "account registered", "account_id", reg.AccountID)

	return reg.Token, nil
}

func (e *Engine) validateRegister(req RegisterRequest) error {
	if req.Username == "" || req.Password.Empty() || req.Email.Empty() {
		return ErrInvalidRequest
	}
	if len(req.Username) > e.config.Security.MaxUsernameLength {
		return ErrInvalidRequest
	}
	if len(req.Email) > e.config.Security.MaxEmailLength {
		return ErrInvalidRequest
	}
	return nil
}

// DeleteAccount removes the account behind token together with everything
// it owns, in this order: owned resources, every session, credentials and
// username, then a second session sweep. Afterwards token is unauthorized
// and the username can be registered again.
//
// A failure part-way leaves the earlier steps applied; repeating the call
// with a still-valid token finishes the job.
func (e *Engine) DeleteAccount(ctx context.Context, token string) error {
	accountID, err := e.Authenticate(ctx, token)
	if err != nil {
		return err
	}

	if err := e.resources.DeleteAllResourcesForAccount(ctx, accountID); err != nil {
		return e.internalError(ctx, "delete account", err)
	}

	extra := []string{token}
	recordToken, err := e.accounts.Token(ctx, accountID)
	switch {
	case err == nil:
		extra = append(extra, recordToken)
	case errors.Is(err, stores.ErrAccountNotFound):
	default:
		return e.internalError(ctx, "delete account", err)
	}

	revoked, err := e.sessions.RevokeAll(ctx, accountID, extra...)
	if err != nil {
		return e.internalError(ctx, "delete account", err)
	}
	e.metrics.add(MetricSessionsRevoked, revoked)

	if err := e.accounts.Delete(ctx, accountID); err != nil && !errors.Is(err, stores.ErrAccountNotFound) {
		return e.internalError(ctx, "delete account", err)
	}

	// Catches a login bound between the first sweep and the record delete.
	// Later ones fail the record guard.
	late, err := e.sessions.RevokeAll(ctx, accountID, extra...)
	if err != nil {
		return e.internalError(ctx, "delete account", err)
	}
	e.metrics.add(MetricSessionsRevoked, late)

	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, auditEventAccountDeleted, auditRecord{accountID: accountID, revoked: revoked + late})
	e.logger.InfoContext(ctx, "account deleted", "account_id", accountID)

	return nil
}
