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
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned when a command is sent on a closed client.
	ErrClosed = errors.New("connection closed")
	// ErrMissingObs marks a response that has no "obs" field.
	ErrMissingObs = errors.New(`response missing "obs"`)
	// ErrResponseTooLarge is returned when no newline arrives within MaxResponseSize bytes.
	ErrResponseTooLarge = errors.New("response exceeds maximum size")
)

// ConnectionError is fatal for a run: the server could not be reached.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// CommandError fails a single exchange. Op names the stage that broke.
type CommandError struct {
	Cmd string
	Op  string
	Err error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Cmd, e.Op, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
