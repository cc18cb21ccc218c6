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

package datums

import (
	"encoding/json"
)

// Known command names understood by the environment server.
const (
	CmdReset = "reset"
	CmdStep  = "step"
	CmdClose = "close"
)

// Command is a single request sent to the environment server.
type Command struct {
	Cmd    string `json:"cmd"`
	Seed   *int   `json:"seed,omitempty"`
	Action *int   `json:"action,omitempty"`
}

// Reset builds a reset command for the given seed
func Reset(seed int) Command {
	return Command{Cmd: CmdReset, Seed: &seed}
}

// Step builds a step command carrying the chosen action
func Step(action int) Command {
	return Command{Cmd: CmdStep, Action: &action}
}

// Close builds the command that ends the session.
func Close() Command {
	return Command{Cmd: CmdClose}
}

// Encode returns the wire form of the command: one JSON document
// followed by a single newline.
func (cmd Command) Encode() ([]byte, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// String returns the JSON form without the trailing newline.
func (cmd Command) String() string {
	data, err := json.Marshal(cmd)
	if err != nil {
		return cmd.Cmd
	}
	return string(data)
}

// DecodeCommand parses one wire line into a Command.
func DecodeCommand(line []byte) (Command, error) {
	var cmd Command
	err := json.Unmarshal(line, &cmd)
	return cmd, err
}
