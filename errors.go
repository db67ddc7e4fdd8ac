package efficio

import "errors"

var (
	// ErrUsernameTaken is returned by Register when the lower-cased username
	// is already indexed.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidCredentials is returned by Login for an unknown username or a
	// wrong password. The two cases are indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is returned when a session token does not resolve.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInternal wraps every backend or programming failure.
	ErrInternal = errors.New("internal error")
	// ErrInvalidRequest is returned for empty or oversized inputs.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrLoginRateLimited is returned once a username or IP exhausted its
	// failed-login budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrFlushDisabled is returned by Flush unless maintenance flush is enabled.
	ErrFlushDisabled = errors.New("flush disabled")
	// ErrEngineNotReady is returned when an Engine was not produced by Build.
	ErrEngineNotReady = errors.New("engine not initialized")
)
