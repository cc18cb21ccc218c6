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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when the server sends a blank line.
var ErrEmptyResponse = errors.New("empty response")

// ErrObsNotArray is returned when "obs" holds something other than a list.
var ErrObsNotArray = errors.New(`"obs" is not an array`)

// Response is what the environment server sends back for a command.
// Only Obs is required; Done and Info default to their zero values.
// Obs elements are kept as decoded, so nested observations are allowed.
type Response struct {
	Obs    []interface{}
	HasObs bool
	Done   bool
	Info   Info
	Raw    json.RawMessage
}

// Info carries per-step metadata. Only the events map is read.
type Info struct {
	Events Events
}

type wireResponse struct {
	Obs  json.RawMessage `json:"obs"`
	Done interface{}     `json:"done"`
	Info interface{}     `json:"info"`
}

// DecodeResponse trims the line and parses it as a JSON object. Only
// "obs" is strictly typed: done is read for truthiness, and an info or
// events value that is not an object reads as no events.
func DecodeResponse(line []byte) (*Response, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, ErrEmptyResponse
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	var wire wireResponse
	if err := json.Unmarshal(line, &wire); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	_, hasObs := fields["obs"]
	resp := &Response{
		HasObs: hasObs,
		Done:   truthy(wire.Done),
		Info:   Info{Events: Events{}},
		Raw:    append(json.RawMessage(nil), line...),
	}
	if len(wire.Obs) > 0 && string(wire.Obs) != "null" {
		if err := json.Unmarshal(wire.Obs, &resp.Obs); err != nil {
			return nil, fmt.Errorf("malformed response: %w", ErrObsNotArray)
		}
	}
	if info, ok := wire.Info.(map[string]interface{}); ok {
		if events, ok := info["events"].(map[string]interface{}); ok {
			resp.Info.Events = Events(events)
		}
	}
	return resp, nil
}

// Pretty renders the raw response indented for display.
func (resp *Response) Pretty() string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, resp.Raw, "", "  "); err != nil {
		return string(resp.Raw)
	}
	return buf.String()
}
