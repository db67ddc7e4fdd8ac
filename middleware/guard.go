package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	efficio "github.com/ghost-in-the-sushi/efficio-webapp"
)

// SessionHeader is the request header carrying the session token.
const SessionHeader = "session_token"

// Authenticator resolves a session token to an account id.
// *efficio.Engine satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

type accountIDContextKey struct{}

// AccountIDFromContext returns the account id stored by [RequireSession].
func AccountIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(accountIDContextKey{}).(string)
	return id, ok && id != ""
}

// WithAccountID stores accountID the way [RequireSession] does. Handlers
// under test use it to skip the guard.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountIDContextKey{}, accountID)
}

// SessionToken returns the raw session token header of r.
func SessionToken(r *http.Request) string {
	return r.Header.Get(SessionHeader)
}

// RequireSession rejects requests whose session_token header does not
// resolve. Rejections render {"msg":"Unauthorized"} with 401; backend
// failures render 500.
func RequireSession(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				writeMsg(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			token := SessionToken(r)
			if token == "" {
				writeMsg(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			accountID, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, efficio.ErrInternal) || errors.Is(err, efficio.ErrEngineNotReady) {
					writeMsg(w, http.StatusInternalServerError, "Internal error")
					return
				}
				writeMsg(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccountID(r.Context(), accountID)))
		})
	}
}

func writeMsg(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"msg": msg})
}
