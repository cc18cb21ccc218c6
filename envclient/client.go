// Copyright © 2019 NAME HERE <EMAIL ADDRESS>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package envclient

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/charles-d-burton/rltester/datums"
	"github.com/charles-d-burton/rltester/logger"
	"github.com/rs/zerolog"
)

const (
	// ReadBufferSize matches the server's expected message size.
	ReadBufferSize = 4096
	// MaxResponseSize bounds a single newline-framed response.
	MaxResponseSize = 1 << 20
	// CloseReplyTimeout bounds the wait for the reply to "close".
	CloseReplyTimeout = 2 * time.Second
)

func clientLog() *zerolog.Logger {
	l := logger.WithComponent("envclient")
	return &l
}

// Options tune how a Client connects and exchanges commands.
type Options struct {
	// Dialer defaults to a plain *net.Dialer.
	Dialer Dialer
	// Retries is the number of extra connect attempts. Zero means connect
	// failure is final.
	Retries uint64
	// Timeout bounds each exchange. Zero waits forever.
	Timeout time.Duration

	Reporter *Reporter
}

// Client owns a single connection to the environment server. Exchanges are
// strictly request then reply; a second Send blocks until the first returns.
type Client struct {
	addr    string
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
	report  *Reporter

	mu     sync.Mutex
	closed bool
}

// Dial connects to addr. Errors are always *ConnectionError.
func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	report := opts.Reporter
	if report == nil {
		report = NewReporter(nil)
	}

	var conn net.Conn
	operation := func() error {
		clientLog().Debug().Str("addr", addr).Msg("attempting to connect")
		c, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			clientLog().Debug().Err(err).Str("addr", addr).Msg("connect failed")
			return err
		}
		conn = c
		return nil
	}

	var err error
	if opts.Retries == 0 {
		err = operation()
	} else {
		bof := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), opts.Retries)
		err = backoff.RetryNotify(operation, backoff.WithContext(bof, ctx), func(err error, next time.Duration) {
			clientLog().Warn().Err(err).Dur("retry_in", next).Msg("connect failed, retrying")
		})
	}
	if err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}
	return NewClient(conn, addr, opts.Timeout, report), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn, addr string, timeout time.Duration, report *Reporter) *Client {
	if report == nil {
		report = NewReporter(nil)
	}
	return &Client{
		addr:    addr,
		conn:    conn,
		reader:  bufio.NewReaderSize(conn, ReadBufferSize),
		timeout: timeout,
		report:  report,
	}
}

// Addr is the server address the client was dialled with.
func (c *Client) Addr() string {
	return c.addr
}

// Send writes cmd and waits for the matching reply.
func (c *Client) Send(ctx context.Context, cmd datums.Command) (*datums.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, &CommandError{Cmd: cmd.Cmd, Op: "send", Err: ErrClosed}
	}
	return c.exchange(ctx, cmd, c.timeout)
}

func (c *Client) exchange(ctx context.Context, cmd datums.Command, timeout time.Duration) (*datums.Response, error) {
	data, err := cmd.Encode()
	if err != nil {
		return nil, &CommandError{Cmd: cmd.Cmd, Op: "encode", Err: err}
	}

	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil && !deadline.IsZero() {
		clientLog().Warn().Err(err).Msg("transport does not support deadlines")
	}
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := c.conn.Write(data); err != nil {
		return nil, &CommandError{Cmd: cmd.Cmd, Op: "write", Err: ctxErr(ctx, err)}
	}
	c.report.Sent(string(data))

	line, err := c.readLine()
	if err != nil {
		return nil, &CommandError{Cmd: cmd.Cmd, Op: "read", Err: ctxErr(ctx, err)}
	}
	resp, err := datums.DecodeResponse(line)
	if err != nil {
		return nil, &CommandError{Cmd: cmd.Cmd, Op: "decode", Err: err}
	}
	c.report.Received(resp.Pretty())
	return resp, nil
}

// readLine buffers until a newline, however many reads that takes.
func (c *Client) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, err := c.reader.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > MaxResponseSize {
			return nil, ErrResponseTooLarge
		}
		switch {
		case err == bufio.ErrBufferFull:
			continue
		case err == io.EOF && len(bytes.TrimSpace(line)) > 0:
			return line, nil
		case err != nil:
			return nil, err
		}
		return line, nil
	}
}

// Close sends "close" without caring about the reply, then drops the
// connection. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	if _, err := c.exchange(context.Background(), datums.Close(), CloseReplyTimeout); err != nil {
		clientLog().Debug().Err(err).Msg("close command not acknowledged")
	}
	err := c.conn.Close()
	c.report.Pass("Connection closed")
	return err
}

// ctxErr prefers the context's error when the context ended the exchange.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
		return context.DeadlineExceeded
	}
	return err
}
