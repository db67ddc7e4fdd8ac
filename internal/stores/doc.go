// Package stores provides the Redis-backed account records, the
// case-insensitive username index and the owned-store registry.
//
// # Design
//
// Records are plain Redis hashes. Multi-field writes use MULTI/EXEC and
// conditional multi-key steps are Lua scripts. Username uniqueness relies on
// HSETNX alone; no in-process locks are taken. Credential comparison is
// delegated to a [Hasher] that compares in constant time.
//
// # Architecture boundaries
//
// This package owns persistence only. It does NOT create or resolve
// sessions, throttle logins, or map errors to API outcomes; those belong to
// the efficio engine.
//
// # What this package must NOT do
//
//   - Import efficio or any sibling internal package.
//   - Log or expose plaintext secrets.
package stores
