package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ghost-in-the-sushi/efficio-webapp/ids"
	"github.com/ghost-in-the-sushi/efficio-webapp/session"
)

const recordPrefix = "user:"

const (
	fieldUsername     = "username"
	fieldPassword     = "password"
	fieldSaltPassword = "salt_password"
	fieldEmail        = "email"
	fieldSaltMail     = "salt_mail"
	fieldAuth         = "auth"
)

// dummySalt feeds the timing-equalisation hash for unknown usernames.
const dummySalt = "00000000000000000000000000000000"

const reissueScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "auth", ARGV[1])
return 1
`

var reissueLua = redis.NewScript(reissueScript)

// KEYS[1] record, KEYS[2] username index. ARGV[1] normalized username,
// ARGV[2] account id.
const deleteScript = `
if redis.call("HGET", KEYS[2], ARGV[1]) == ARGV[2] then
  redis.call("HDEL", KEYS[2], ARGV[1])
end
return redis.call("DEL", KEYS[1])
`

var deleteLua = redis.NewScript(deleteScript)

// Hasher computes and checks salted digests. *password.Pool implements it.
type Hasher interface {
	Hash(ctx context.Context, value []byte, salt string) (string, error)
	Verify(ctx context.Context, value []byte, salt, encoded string) (bool, error)
}

// AccountsConfig wires an [Accounts] store.
type AccountsConfig struct {
	Usernames *Usernames
	IDs       ids.Strategy
	Hasher    Hasher
	NewSalt   func() (string, error)
	NewToken  func() (string, error)
}

// Accounts persists account records:
//
//	user:<account_id>  hash {username, password, salt_password, email, salt_mail, auth}
//
// and keeps the [Usernames] index consistent with them.
type Accounts struct {
	redis     redis.UniversalClient
	usernames *Usernames
	ids       ids.Strategy
	hasher    Hasher
	newSalt   func() (string, error)
	newToken  func() (string, error)
}

// NewAccounts creates an [Accounts] store.
func NewAccounts(redisClient redis.UniversalClient, cfg AccountsConfig) *Accounts {
	usernames := cfg.Usernames
	if usernames == nil {
		usernames = NewUsernames(redisClient, "")
	}
	return &Accounts{
		redis:     redisClient,
		usernames: usernames,
		ids:       cfg.IDs,
		hasher:    cfg.Hasher,
		newSalt:   cfg.NewSalt,
		newToken:  cfg.NewToken,
	}
}

// Usernames returns the index the store writes to.
func (a *Accounts) Usernames() *Usernames {
	return a.usernames
}

func (a *Accounts) key(accountID string) string {
	return recordPrefix + accountID
}

// Registration is the result of a successful [Accounts.Register].
type Registration struct {
	AccountID string
	Token     string
}

// Register creates an account record and claims its username.
//
// The record is written first and the index entry second with HSETNX, so a
// username never points at a missing record. When two registrations race on
// one name the HSETNX loser deletes its own record and gets
// [ErrUsernameTaken]. A crash between the two writes leaves an orphaned
// record that nothing references.
func (a *Accounts) Register(ctx context.Context, username string, pwd, email []byte) (Registration, error) {
	taken, err := a.usernames.Exists(ctx, username)
	if err != nil {
		return Registration{}, err
	}
	if taken {
		return Registration{}, ErrUsernameTaken
	}

	token, err := a.newToken()
	if err != nil {
		return Registration{}, err
	}
	saltPassword, err := a.newSalt()
	if err != nil {
		return Registration{}, err
	}
	saltMail, err := a.newSalt()
	if err != nil {
		return Registration{}, err
	}

	hashedPassword, err := a.hasher.Hash(ctx, pwd, saltPassword)
	if err != nil {
		return Registration{}, err
	}
	hashedEmail, err := a.hasher.Hash(ctx, email, saltMail)
	if err != nil {
		return Registration{}, err
	}

	accountID, err := a.ids.Next(ctx)
	if err != nil {
		return Registration{}, err
	}

	key := a.key(accountID)
	_, err = a.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldUsername, username,
			fieldPassword, hashedPassword,
			fieldSaltPassword, saltPassword,
			fieldEmail, hashedEmail,
			fieldSaltMail, saltMail,
			fieldAuth, token,
		)
		return nil
	})
	if err != nil {
		return Registration{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	won, err := a.usernames.Insert(ctx, username, accountID)
	if err != nil {
		// The HSETNX may or may not have applied.
		_, undoErr := a.usernames.RemoveIfOwned(ctx, username, accountID)
		return Registration{}, errors.Join(err, undoErr, a.drop(ctx, key))
	}
	if !won {
		if dropErr := a.drop(ctx, key); dropErr != nil {
			return Registration{}, errors.Join(ErrUsernameTaken, dropErr)
		}
		return Registration{}, ErrUsernameTaken
	}

	return Registration{AccountID: accountID, Token: token}, nil
}

func (a *Accounts) drop(ctx context.Context, key string) error {
	if err := a.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Verify checks username and pwd and returns the account's current token.
// Unknown usernames and wrong passwords both yield [ErrInvalidCredentials];
// unknown usernames still pay for one hash.
func (a *Accounts) Verify(ctx context.Context, username string, pwd []byte) (Registration, error) {
	accountID, err := a.usernames.Get(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUsernameNotFound) {
			_, _ = a.hasher.Hash(ctx, pwd, dummySalt)
			return Registration{}, ErrInvalidCredentials
		}
		return Registration{}, err
	}

	values, err := a.redis.HMGet(ctx, a.key(accountID), fieldPassword, fieldSaltPassword, fieldAuth).Result()
	if err != nil {
		return Registration{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	stored, _ := values[0].(string)
	salt, _ := values[1].(string)
	token, _ := values[2].(string)
	if stored == "" || salt == "" {
		return Registration{}, ErrInvalidCredentials
	}

	ok, err := a.hasher.Verify(ctx, pwd, salt, stored)
	if err != nil {
		return Registration{}, err
	}
	if !ok {
		return Registration{}, ErrInvalidCredentials
	}

	return Registration{AccountID: accountID, Token: token}, nil
}

// ReissueSession replaces the token stored in the record and returns it.
func (a *Accounts) ReissueSession(ctx context.Context, accountID string) (string, error) {
	token, err := a.newToken()
	if err != nil {
		return "", err
	}

	n, err := reissueLua.Run(ctx, a.redis, []string{a.key(accountID)}, token).Int64()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if n == 0 {
		return "", ErrAccountNotFound
	}

	return token, nil
}

// Token returns the token stored in the record.
func (a *Accounts) Token(ctx context.Context, accountID string) (string, error) {
	return a.field(ctx, accountID, fieldAuth)
}

// SessionGuard binds a session write to the record's current token, so a
// deleted or reissued record refuses it.
func (a *Accounts) SessionGuard(accountID string) session.Guard {
	return session.Guard{Key: a.key(accountID), Field: fieldAuth}
}

// Username returns the username with its original casing.
func (a *Accounts) Username(ctx context.Context, accountID string) (string, error) {
	return a.field(ctx, accountID, fieldUsername)
}

func (a *Accounts) field(ctx context.Context, accountID, field string) (string, error) {
	v, err := a.redis.HGet(ctx, a.key(accountID), field).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrAccountNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return v, nil
}

// Delete removes the record and, if it still points at this account, the
// username index entry. The name is reusable afterwards.
//
//	Performance: 1 HGET + 1 Lua EVALSHA.
func (a *Accounts) Delete(ctx context.Context, accountID string) error {
	username, err := a.Username(ctx, accountID)
	if err != nil {
		return err
	}

	keys := []string{a.key(accountID), a.usernames.Key()}
	if err := deleteLua.Run(ctx, a.redis, keys, Normalize(username), accountID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}
