// Package middleware exposes HTTP middleware that resolves efficio session
// tokens and client addresses on the way into a handler.
//
// # Guards
//
//   - [RequireSession] reads the session_token header, calls
//     Engine.Authenticate and stores the account id in the request context.
//   - [ClientIP] records the caller's address with efficio.WithClientIP so the
//     engine can throttle logins per IP.
//
// # What this package must NOT do
//
//   - Access Redis (the engine handles I/O).
//   - Make authorization decisions beyond pass/reject from Authenticate.
package middleware
