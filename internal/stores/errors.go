package stores

import "errors"

var (
	// ErrRedisUnavailable wraps every backend failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrUsernameTaken is returned when the lower-cased username is indexed.
	ErrUsernameTaken = errors.New("username taken")
	// ErrUsernameNotFound is returned by [Usernames.Get] for unknown names.
	ErrUsernameNotFound = errors.New("username not found")
	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountNotFound is returned when no record exists for an account id.
	ErrAccountNotFound = errors.New("account not found")
)
