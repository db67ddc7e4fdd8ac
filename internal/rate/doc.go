// Package rate provides the Redis-backed failed-login limiter.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - al:  failed logins per normalized username
//   - ali: failed logins per client IP
//
// # What this package must NOT do
//
//   - Decide whether a login succeeded; callers report failures.
//   - Be imported outside the efficio module.
package rate
