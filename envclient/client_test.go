package envclient

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/charles-d-burton/rltester/datums"
	"github.com/charles-d-burton/rltester/mockenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startEnv(t *testing.T, handler mockenv.Handler) (*mockenv.Server, string) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	server := mockenv.NewServer(handler)
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, listener) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return server, listener.Addr().String()
}

// startRaw runs fn on the first accepted connection.
func startRaw(t *testing.T, fn func(conn net.Conn)) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		fn(conn)
	}()
	return listener.Addr().String()
}

func closedAddr(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return addr
}

func TestDialFailureIsConnectionError(t *testing.T) {
	addr := closedAddr(t)
	_, err := Dial(context.Background(), addr, Options{})
	require.Error(t, err)

	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, addr, connErr.Addr)
}

type flakyDialer struct {
	failures int
	calls    int
}

func (d *flakyDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	d.calls++
	if d.calls <= d.failures {
		return nil, errors.New("connection refused")
	}
	client, server := net.Pipe()
	go server.Close()
	return client, nil
}

func TestDialRetries(t *testing.T) {
	dialer := &flakyDialer{failures: 2}
	client, err := Dial(context.Background(), "env:9999", Options{Dialer: dialer, Retries: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, dialer.calls)
	assert.Equal(t, "env:9999", client.Addr())
}

func TestDialWithoutRetriesTriesOnce(t *testing.T) {
	dialer := &flakyDialer{failures: 1}
	_, err := Dial(context.Background(), "env:9999", Options{Dialer: dialer})
	require.Error(t, err)
	assert.Equal(t, 1, dialer.calls)
}

func TestSendReset(t *testing.T) {
	server, addr := startEnv(t, mockenv.DefaultScript())

	var out bytes.Buffer
	client, err := Dial(context.Background(), addr, Options{Reporter: NewReporter(&out)})
	require.NoError(t, err)
	defer client.Close()

	resp, err := client.Send(context.Background(), datums.Reset(42))
	require.NoError(t, err)
	assert.True(t, resp.HasObs)
	assert.Len(t, resp.Obs, 4)
	assert.Equal(t, []datums.Command{datums.Reset(42)}, server.Received())

	assert.Contains(t, out.String(), `→ Sent: {"cmd":"reset","seed":42}`)
	assert.Contains(t, out.String(), "← Received: {\n  \"obs\"")
}

func TestSendEchoRoundTrip(t *testing.T) {
	_, addr := startEnv(t, mockenv.HandlerFunc(func(cmd datums.Command) (interface{}, bool) {
		return cmd, true
	}))
	client, err := Dial(context.Background(), addr, Options{})
	require.NoError(t, err)
	defer client.Close()

	for _, cmd := range []datums.Command{datums.Reset(7), datums.Step(3)} {
		resp, err := client.Send(context.Background(), cmd)
		require.NoError(t, err)
		echoed, err := datums.DecodeCommand(resp.Raw)
		require.NoError(t, err)
		assert.Equal(t, cmd, echoed)
	}
}

func TestSendReassemblesSplitResponse(t *testing.T) {
	addr := startRaw(t, func(conn net.Conn) {
		reader := bufio.NewReader(conn)
		if _, err := reader.ReadBytes('\n'); err != nil {
			return
		}
		conn.Write([]byte(`{"obs":[1,`))
		time.Sleep(50 * time.Millisecond)
		conn.Write([]byte(`2,3],"done":false}` + "\n"))
		reader.ReadBytes('\n')
	})

	client, err := Dial(context.Background(), addr, Options{})
	require.NoError(t, err)
	defer client.Close()

	resp, err := client.Send(context.Background(), datums.Step(1))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1.0, 2.0, 3.0}, resp.Obs)
}

func TestSendKeepsCoalescedResponsesApart(t *testing.T) {
	addr := startRaw(t, func(conn net.Conn) {
		reader := bufio.NewReader(conn)
		if _, err := reader.ReadBytes('\n'); err != nil {
			return
		}
		conn.Write([]byte(`{"obs":[1]}` + "\n" + `{"obs":[2,2]}` + "\n"))
		reader.ReadBytes('\n')
		reader.ReadBytes('\n')
	})

	client, err := Dial(context.Background(), addr, Options{})
	require.NoError(t, err)
	defer client.Close()

	first, err := client.Send(context.Background(), datums.Step(1))
	require.NoError(t, err)
	assert.Len(t, first.Obs, 1)

	second, err := client.Send(context.Background(), datums.Step(2))
	require.NoError(t, err)
	assert.Len(t, second.Obs, 2)
}

func TestSendResponseTooLarge(t *testing.T) {
	addr := startRaw(t, func(conn net.Conn) {
		if _, err := bufio.NewReader(conn).ReadBytes('\n'); err != nil {
			return
		}
		conn.Write(bytes.Repeat([]byte("0"), MaxResponseSize+ReadBufferSize))
	})

	client, err := Dial(context.Background(), addr, Options{})
	require.NoError(t, err)

	_, err = client.Send(context.Background(), datums.Step(1))
	assert.ErrorIs(t, err, ErrResponseTooLarge)
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "read", cmdErr.Op)
}

func TestSendAcceptsFinalResponseWithoutNewline(t *testing.T) {
	addr := startRaw(t, func(conn net.Conn) {
		if _, err := bufio.NewReader(conn).ReadBytes('\n'); err != nil {
			return
		}
		conn.Write([]byte(`{"obs":[1,2],"done":true}`))
	})

	client, err := Dial(context.Background(), addr, Options{})
	require.NoError(t, err)
	defer client.Close()

	resp, err := client.Send(context.Background(), datums.Step(1))
	require.NoError(t, err)
	assert.Len(t, resp.Obs, 2)
	assert.True(t, resp.Done)

	// the peer is gone, so the next exchange fails
	_, err = client.Send(context.Background(), datums.Step(2))
	assert.Error(t, err)
}

func TestSendMalformedResponse(t *testing.T) {
	_, addr := startEnv(t, mockenv.HandlerFunc(func(cmd datums.Command) (interface{}, bool) {
		return "{oops", true
	}))
	client, err := Dial(context.Background(), addr, Options{})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Send(context.Background(), datums.Step(1))
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "decode", cmdErr.Op)
	assert.Equal(t, datums.CmdStep, cmdErr.Cmd)
}

func TestSendTimeout(t *testing.T) {
	addr := startRaw(t, func(conn net.Conn) {
		bufio.NewReader(conn).ReadBytes('\n')
		time.Sleep(time.Second)
	})
	client, err := Dial(context.Background(), addr, Options{Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = client.Send(context.Background(), datums.Reset(1))
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "read", cmdErr.Op)

	var netErr net.Error
	require.True(t, errors.As(err, &netErr))
	assert.True(t, netErr.Timeout())
}

func TestSendCancelledContext(t *testing.T) {
	addr := startRaw(t, func(conn net.Conn) {
		bufio.NewReader(conn).ReadBytes('\n')
		time.Sleep(time.Second)
	})
	client, err := Dial(context.Background(), addr, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Send(ctx, datums.Reset(1))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseSendsCloseAndIsIdempotent(t *testing.T) {
	server, addr := startEnv(t, mockenv.DefaultScript())

	var out bytes.Buffer
	client, err := Dial(context.Background(), addr, Options{Reporter: NewReporter(&out)})
	require.NoError(t, err)

	require.NoError(t, client.Close())
	assert.NoError(t, client.Close())
	assert.Equal(t, []datums.Command{datums.Close()}, server.Received())
	assert.Contains(t, out.String(), "Connection closed")

	_, err = client.Send(context.Background(), datums.Step(1))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseDoesNotWaitForeverOnSilentServer(t *testing.T) {
	addr := startRaw(t, func(conn net.Conn) {
		bufio.NewReader(conn).ReadBytes('\n')
		time.Sleep(2 * CloseReplyTimeout)
	})
	client, err := Dial(context.Background(), addr, Options{})
	require.NoError(t, err)

	start := time.Now()
	client.Close()
	assert.Less(t, time.Since(start), 2*CloseReplyTimeout)
}
