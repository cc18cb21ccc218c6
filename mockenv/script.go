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
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/charles-d-burton/rltester/datums"
	"gopkg.in/yaml.v3"
)

// Script is a canned environment. Each step returns the next entry of
// Events, wrapping around, and the episode ends after DoneAfter steps.
type Script struct {
	ObsSize   int             `yaml:"obs_size"`
	DoneAfter int             `yaml:"done_after,omitempty"`
	Events    []datums.Events `yaml:"events,omitempty"`

	mu    sync.Mutex
	steps int
}

// DefaultScript serves four-element observations and never ends the episode.
func DefaultScript() *Script {
	return &Script{ObsSize: 4}
}

// LoadScript reads a YAML script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScript(data)
}

// ParseScript decodes a YAML script, rejecting unknown keys.
func ParseScript(data []byte) (*Script, error) {
	script := DefaultScript()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(script); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if script.ObsSize < 0 {
		return nil, fmt.Errorf("parse script: obs_size must not be negative")
	}
	for i, events := range script.Events {
		script.Events[i] = normalize(events)
	}
	return script, nil
}

// Handle implements Handler.
func (s *Script) Handle(cmd datums.Command) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd.Cmd {
	case datums.CmdReset:
		s.steps = 0
		return map[string]interface{}{"obs": s.obs()}, true
	case datums.CmdStep:
		events := datums.Events{}
		if len(s.Events) > 0 {
			events = s.Events[s.steps%len(s.Events)]
		}
		s.steps++
		done := s.DoneAfter > 0 && s.steps >= s.DoneAfter
		return map[string]interface{}{
			"obs":  s.obs(),
			"done": done,
			"info": map[string]interface{}{"events": events},
		}, true
	case datums.CmdClose:
		return map[string]interface{}{"status": "closed"}, false
	}
	return map[string]interface{}{"error": "unknown command: " + cmd.Cmd}, true
}

func (s *Script) obs() []float64 {
	obs := make([]float64, s.ObsSize)
	for i := range obs {
		obs[i] = float64(s.steps)
	}
	return obs
}

// yaml decodes integers as int; the wire carries float64.
func normalize(events datums.Events) datums.Events {
	out := datums.Events{}
	for name, v := range events {
		switch n := v.(type) {
		case int:
			out[name] = float64(n)
		case int64:
			out[name] = float64(n)
		default:
			out[name] = v
		}
	}
	return out
}
