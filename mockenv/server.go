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

package mockenv

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"

	"github.com/charles-d-burton/rltester/datums"
	"github.com/charles-d-burton/rltester/logger"
	"github.com/rs/zerolog"
)

// Handler answers a command. Returning false closes the connection once
// the reply is written.
type Handler interface {
	Handle(cmd datums.Command) (reply interface{}, keepOpen bool)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(cmd datums.Command) (interface{}, bool)

// Handle calls f(cmd).
func (f HandlerFunc) Handle(cmd datums.Command) (interface{}, bool) {
	return f(cmd)
}

// Server speaks the newline-delimited JSON environment protocol.
type Server struct {
	handler Handler
	log     zerolog.Logger

	mu       sync.Mutex
	received []datums.Command
	wg       sync.WaitGroup
}

// NewServer returns a server that answers with handler.
func NewServer(handler Handler) *Server {
	return &Server{handler: handler, log: logger.WithComponent("mockenv")}
}

// Serve accepts connections until ctx is done or the listener fails.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		listener.Close()
	}()
	s.log.Info().Str("addr", listener.Addr().String()).Msg("listening")
	defer s.wg.Wait()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Error().Err(err).Msg("accept failed")
			return err
		}
		s.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("new connection")
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		cmd, err := datums.DecodeCommand(line)
		var reply interface{}
		keepOpen := true
		if err != nil {
			s.log.Warn().Err(err).Msg("bad command")
			reply = map[string]interface{}{"error": err.Error()}
		} else {
			s.record(cmd)
			reply, keepOpen = s.handler.Handle(cmd)
		}
		if err := writeReply(conn, reply); err != nil {
			s.log.Debug().Err(err).Msg("write failed")
			return
		}
		if !keepOpen {
			return
		}
	}
}

func writeReply(conn net.Conn, reply interface{}) error {
	var data []byte
	switch r := reply.(type) {
	case []byte:
		data = r
	case string:
		data = []byte(r)
	default:
		var err error
		data, err = json.Marshal(reply)
		if err != nil {
			return err
		}
	}
	_, err := conn.Write(append(data, '\n'))
	return err
}

func (s *Server) record(cmd datums.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, cmd)
}

// Received returns every command seen so far, in order.
func (s *Server) Received() []datums.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]datums.Command(nil), s.received...)
}

// Count returns how many commands named name were received.
func (s *Server) Count(name string) int {
	n := 0
	for _, cmd := range s.Received() {
		if cmd.Cmd == name {
			n++
		}
	}
	return n
}
