// Package password implements salted Argon2id hashing for credential material
// and sequential identifiers.
//
// # Output format
//
// Digests are the raw Argon2id key rendered as lowercase hex. The salt is
// generated by the caller with [NewSalt] and stored next to the digest, so the
// digest string carries no parameters; changing [Config] invalidates every
// stored digest.
//
// # Concurrency
//
// [Hasher] is stateless and safe for concurrent use. [Pool] bounds concurrent
// computations with a weighted semaphore; callers on request paths should go
// through the pool.
//
// # What this package must NOT do
//
//   - Store or retrieve secrets; callers supply plaintext and receive digests.
//   - Import any other efficio package.
//   - Log or format [Secret] contents.
package password
