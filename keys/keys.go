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

package keys

import (
	"errors"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DialTimeout bounds connecting to the bastion.
const DialTimeout = 30 * time.Second

// ErrNoKeyFile is returned when no private key path was configured.
var ErrNoKeyFile = errors.New("no private key file given")

// PublicKeyFile loads a private key and returns it as an ssh auth method
func PublicKeyFile(file string) (ssh.AuthMethod, error) {
	signer, err := PrivateKeySigner(file)
	if err != nil {
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

// PrivateKeySigner parses the private key stored in file.
func PrivateKeySigner(file string) (ssh.Signer, error) {
	if file == "" {
		return nil, ErrNoKeyFile
	}
	buffer, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(buffer)
}

// HostKeyCallback verifies the bastion against a known_hosts file. With no
// file every host key is accepted.
func HostKeyCallback(knownHostsFile string) (ssh.HostKeyCallback, error) {
	if knownHostsFile != "" {
		return knownhosts.New(knownHostsFile)
	}
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		log.Warn().Str("host", hostname).Msg("accepting unverified ssh host key")
		return nil
	}, nil
}

// ClientConfig builds the ssh client configuration used to reach the bastion.
func ClientConfig(user, keyFile, knownHostsFile string) (*ssh.ClientConfig, error) {
	auth, err := PublicKeyFile(keyFile)
	if err != nil {
		return nil, err
	}
	callback, err := HostKeyCallback(knownHostsFile)
	if err != nil {
		return nil, err
	}
	if user == "" {
		user = os.Getenv("USER")
	}
	return &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: callback,
		Timeout:         DialTimeout,
	}, nil
}
