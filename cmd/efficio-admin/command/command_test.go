package command

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func runApp(t *testing.T, addr string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"efficio-admin", "--redis-addr", addr}, args...))
	return out.String(), err
}

func TestStats(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.HSet("users", "toto", "1", "titi", "2")

	out, err := runApp(t, mr.Addr(), "stats")
	require.NoError(t, err)

	var got map[string]int64
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, int64(2), got["accounts"])
}

func TestFlushRequiresConfirmation(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("next_user_id", "3"))

	_, err := runApp(t, mr.Addr(), "flush", "--enable-flush")
	assert.Error(t, err)
	assert.True(t, mr.Exists("next_user_id"))
}

func TestFlushGated(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("next_user_id", "3"))

	_, err := runApp(t, mr.Addr(), "flush", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EFFICIO_ENABLE_FLUSH")
	assert.True(t, mr.Exists("next_user_id"))

	t.Setenv("EFFICIO_ENABLE_FLUSH", "true")
	out, err := runApp(t, mr.Addr(), "flush", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "database flushed")
	assert.Empty(t, mr.Keys())
}

func TestPing(t *testing.T) {
	mr := miniredis.RunT(t)

	out, err := runApp(t, mr.Addr(), "ping")
	require.NoError(t, err)
	assert.Contains(t, out, "PONG")
}
