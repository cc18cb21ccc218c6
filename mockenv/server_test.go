package mockenv

import (
	"bufio"
	"context"
	"net"
	"testing"

	"github.com/charles-d-burton/rltester/datums"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, handler Handler) (*Server, string) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	server := NewServer(handler)
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, listener) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return server, listener.Addr().String()
}

func TestServerExchange(t *testing.T) {
	server, addr := startServer(t, DefaultScript())

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	reader := bufio.NewReader(conn)

	_, err = conn.Write([]byte(`{"cmd":"reset","seed":42}` + "\n"))
	require.NoError(t, err)
	line, err := reader.ReadBytes('\n')
	require.NoError(t, err)

	resp, err := datums.DecodeResponse(line)
	require.NoError(t, err)
	assert.True(t, resp.HasObs)
	assert.Len(t, resp.Obs, 4)

	_, err = conn.Write([]byte("not json\n"))
	require.NoError(t, err)
	line, err = reader.ReadBytes('\n')
	require.NoError(t, err)
	assert.Contains(t, string(line), "error")

	_, err = conn.Write([]byte(`{"cmd":"close"}` + "\n"))
	require.NoError(t, err)
	_, err = reader.ReadBytes('\n')
	require.NoError(t, err)

	// server hangs up after close
	_, err = reader.ReadBytes('\n')
	assert.Error(t, err)

	assert.Equal(t, []datums.Command{datums.Reset(42), datums.Close()}, server.Received())
	assert.Equal(t, 1, server.Count(datums.CmdReset))
}

func TestServerRawReplies(t *testing.T) {
	_, addr := startServer(t, HandlerFunc(func(cmd datums.Command) (interface{}, bool) {
		return `{"obs":[9]}`, true
	}))

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(`{"cmd":"step","action":1}` + "\n"))
	require.NoError(t, err)
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "{\"obs\":[9]}\n", line)
}
