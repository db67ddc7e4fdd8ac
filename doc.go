// Package efficio is the account identity and session layer of the efficio
// list-management service.
//
// An [Engine] registers accounts, verifies credentials, issues and revokes
// opaque session tokens and deletes accounts together with everything they
// own. All state lives in Redis; concurrent callers and processes are
// arbitrated by Redis primitives (INCR, HSETNX, MULTI/EXEC, Lua) rather than
// in-process locks.
//
// # Building an Engine
//
//	engine, err := efficio.New().
//		WithConfig(efficio.DefaultConfig()).
//		WithRedis(rdb).
//		WithResourceDeleter(resources).
//		WithLogger(logger).
//		Build()
//
// # Errors
//
// Operations return one of the exported sentinels, checked with errors.Is.
// Backend failures are always wrapped in [ErrInternal].
//
// # Secrets
//
// Passwords and emails travel as [password.Secret] and are wiped by the
// engine before every operation returns. Go may keep copies the engine cannot
// reach (string conversions, GC moves), so wiping reduces exposure but does
// not guarantee it.
package efficio
