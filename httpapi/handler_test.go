package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	efficio "github.com/ghost-in-the-sushi/efficio-webapp"
	"github.com/ghost-in-the-sushi/efficio-webapp/internal/stores"
	"github.com/ghost-in-the-sushi/efficio-webapp/middleware"
)

type apiTest struct {
	t       *testing.T
	handler *Handler
	mr      *miniredis.Miniredis
}

func newAPITest(t *testing.T, configure func(*efficio.Config)) *apiTest {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := efficio.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Identifiers.Strategy = "sequential"
	if configure != nil {
		configure(&cfg)
	}

	resources := stores.NewResources(rdb)
	engine, err := efficio.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithResourceDeleter(resources).
		Build()
	require.NoError(t, err)

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})

	return &apiTest{t: t, handler: New(engine, resources, nil), mr: mr}
}

func (a *apiTest) do(method, path, body, token string) *httptest.ResponseRecorder {
	a.t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(middleware.SessionHeader, token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *apiTest) register(username string) string {
	a.t.Helper()

	rec := a.do(http.MethodPost, "/user", `{"username":"`+username+`","password":"pwd","email":"m@m.com"}`, "")
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())

	var out tokenResponse
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(a.t, out.SessionToken, 64)
	return out.SessionToken
}

func msgOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var out errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.Msg
}

func TestRegisterAndLogin(t *testing.T) {
	a := newAPITest(t, nil)

	token := a.register("toto")
	assert.Equal(t, "1", a.mr.HGet("users", "toto"))

	rec := a.do(http.MethodPost, "/login", `{"username":"TOTO","password":"pwd"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, token, out.SessionToken)
}

func TestRegisterUsernameTaken(t *testing.T) {
	a := newAPITest(t, nil)
	a.register("toto")

	rec := a.do(http.MethodPost, "/user", `{"username":"ToTo","password":"pwd","email":"m@m.com"}`, "")
	assert.Equal(t, http.StatusNotAcceptable, rec.Code)
	assert.Equal(t, "Username ToTo is not available.", msgOf(t, rec))
}

func TestRegisterBadBody(t *testing.T) {
	a := newAPITest(t, nil)

	rec := a.do(http.MethodPost, "/user", `{"username":`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/user", `{"username":"toto","password":"pwd"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request", msgOf(t, rec))
}

func TestLoginWrongPassword(t *testing.T) {
	a := newAPITest(t, nil)
	a.register("toto")

	rec := a.do(http.MethodPost, "/login", `{"username":"toto","password":"pwdb"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid username or password", msgOf(t, rec))

	rec = a.do(http.MethodPost, "/login", `{"username":"nobody","password":"pwd"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid username or password", msgOf(t, rec))
}

func TestLoginRateLimited(t *testing.T) {
	a := newAPITest(t, func(cfg *efficio.Config) {
		cfg.Security.MaxLoginAttempts = 2
	})
	a.register("toto")

	for i := 0; i < 2; i++ {
		rec := a.do(http.MethodPost, "/login", `{"username":"toto","password":"nope"}`, "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}

	rec := a.do(http.MethodPost, "/login", `{"username":"toto","password":"pwd"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestLogout(t *testing.T) {
	a := newAPITest(t, nil)
	token := a.register("toto")

	rec := a.do(http.MethodPost, "/logout", "", token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodPost, "/logout", "", token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", msgOf(t, rec))

	rec = a.do(http.MethodPost, "/logout", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStoresLifecycle(t *testing.T) {
	a := newAPITest(t, nil)
	token := a.register("toto")

	rec := a.do(http.MethodPost, "/store", `{"name":"market"}`, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created createStoreResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.StoreID)

	rec = a.do(http.MethodPost, "/store", `{"name":""}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/store", `{"name":"x"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodGet, "/stores", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var owned []stores.OwnedStore
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &owned))
	require.Len(t, owned, 1)
	assert.Equal(t, created.StoreID, owned[0].ID)
	assert.Equal(t, "market", owned[0].Name)
}

func TestDeleteUser(t *testing.T) {
	a := newAPITest(t, nil)
	token := a.register("toto")

	rec := a.do(http.MethodPost, "/store", `{"name":"market"}`, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodDelete, "/user", "", token)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.False(t, a.mr.Exists("user:1"))
	assert.False(t, a.mr.Exists("stores:1"))

	rec = a.do(http.MethodGet, "/stores", "", token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodDelete, "/user", "", token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The name is free again.
	a.register("ToTo")
}

func TestNukeGated(t *testing.T) {
	a := newAPITest(t, nil)
	a.register("toto")

	rec := a.do(http.MethodGet, "/nuke", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, a.mr.Exists("users"))

	b := newAPITest(t, func(cfg *efficio.Config) {
		cfg.Maintenance.EnableFlush = true
	})
	b.register("toto")

	rec = b.do(http.MethodGet, "/nuke", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, b.mr.Keys())
}

func TestBackendDownIsInternal(t *testing.T) {
	a := newAPITest(t, nil)
	a.mr.Close()

	rec := a.do(http.MethodPost, "/user", `{"username":"toto","password":"pwd","email":"m@m.com"}`, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal error", msgOf(t, rec))
}
