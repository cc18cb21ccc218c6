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
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// Dialer opens the transport to the environment server. *net.Dialer
// satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// SSHDialer reaches the environment server through an ssh bastion. The
// bastion connection is opened lazily and shared by every dial.
type SSHDialer struct {
	Bastion string
	Config  *ssh.ClientConfig

	mu     sync.Mutex
	client *ssh.Client
}

// NewSSHDialer returns a dialer tunnelling through bastion (host:port).
func NewSSHDialer(bastion string, config *ssh.ClientConfig) *SSHDialer {
	return &SSHDialer{Bastion: bastion, Config: config}
}

// DialContext opens addr through the bastion, connecting to the bastion
// first if needed. ctx bounds both the bastion handshake and the dial.
func (d *SSHDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == nil {
		clientLog().Debug().Str("bastion", d.Bastion).Msg("opening ssh tunnel")
		client, err := d.connect(ctx)
		if err != nil {
			return nil, fmt.Errorf("ssh bastion %s: %w", d.Bastion, err)
		}
		d.client = client
	}
	return d.client.DialContext(ctx, network, addr)
}

func (d *SSHDialer) connect(ctx context.Context) (*ssh.Client, error) {
	dialer := &net.Dialer{Timeout: d.Config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.Bastion)
	if err != nil {
		return nil, err
	}
	if d.Config.Timeout > 0 {
		conn.SetDeadline(time.Now().Add(d.Config.Timeout))
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, d.Bastion, d.Config)
	if !stop() {
		// ctx ended during the handshake
		if err == nil {
			sshConn.Close()
		}
		conn.Close()
		return nil, ctx.Err()
	}
	if err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetDeadline(time.Time{})
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// Close tears down the bastion connection.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	return err
}
