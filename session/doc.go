// Package session provides the Redis-backed mapping from opaque session
// tokens to account ids.
//
// # Tokens
//
// Tokens are 32 random bytes encoded as 64 lowercase hex characters. They are
// bearer credentials: whoever presents one is the account it resolves to.
//
// # Atomicity
//
// Store writes the token key and the per-account index in one MULTI/EXEC.
// Revoke and RevokeAll are Lua scripts, so a caller never observes a token
// key without its index entry or the reverse.
//
// # What this package must NOT do
//
//   - Import efficio or any internal package (no upward imports).
//   - Decide whether an account may hold several sessions; that is the
//     engine's policy.
package session
