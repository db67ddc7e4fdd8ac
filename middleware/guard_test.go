package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	efficio "github.com/ghost-in-the-sushi/efficio-webapp"
)

type fakeAuth map[string]string

func (f fakeAuth) Authenticate(_ context.Context, token string) (string, error) {
	if token == "broken" {
		return "", fmt.Errorf("%w: boom", efficio.ErrInternal)
	}
	id, ok := f[token]
	if !ok {
		return "", efficio.ErrUnauthorized
	}
	return id, nil
}

func echoAccount(w http.ResponseWriter, r *http.Request) {
	id, _ := AccountIDFromContext(r.Context())
	ip := efficio.ClientIPFromContext(r.Context())
	_, _ = fmt.Fprintf(w, "%s|%s", id, ip)
}

func TestRequireSession(t *testing.T) {
	h := RequireSession(fakeAuth{"good": "42"})(http.HandlerFunc(echoAccount))

	cases := []struct {
		name   string
		token  string
		status int
		body   string
	}{
		{name: "valid", token: "good", status: http.StatusOK, body: "42|"},
		{name: "missing", token: "", status: http.StatusUnauthorized, body: "{\"msg\":\"Unauthorized\"}\n"},
		{name: "unknown", token: "nope", status: http.StatusUnauthorized, body: "{\"msg\":\"Unauthorized\"}\n"},
		{name: "backend", token: "broken", status: http.StatusInternalServerError, body: "{\"msg\":\"Internal error\"}\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/stores", nil)
			if tc.token != "" {
				req.Header.Set(SessionHeader, tc.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.body, rec.Body.String())
		})
	}
}

func TestRequireSessionNilAuthenticator(t *testing.T) {
	h := RequireSession(nil)(http.HandlerFunc(echoAccount))
	req := httptest.NewRequest(http.MethodGet, "/stores", nil)
	req.Header.Set(SessionHeader, "good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestClientIP(t *testing.T) {
	h := ClientIP(http.HandlerFunc(echoAccount))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "|10.1.2.3", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "unix-socket"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "|unix-socket", rec.Body.String())
}

func TestAccountIDFromContext(t *testing.T) {
	_, ok := AccountIDFromContext(context.Background())
	require.False(t, ok)

	id, ok := AccountIDFromContext(WithAccountID(context.Background(), "7"))
	require.True(t, ok)
	assert.Equal(t, "7", id)
}
