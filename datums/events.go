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
	"fmt"
	"sort"
	"strings"
)

// Events are the named counters and flags reported for a step.
// Values are numbers or booleans; anything else reads as zero.
type Events map[string]interface{}

// Flag reports whether the named event is truthy
func (events Events) Flag(name string) bool {
	return truthy(events[name])
}

// Count returns the numeric value of the named event, bools count as 0 or 1
func (events Events) Count(name string) float64 {
	switch v := events[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

// Any reports whether at least one event value is truthy.
func (events Events) Any() bool {
	for _, v := range events {
		if truthy(v) {
			return true
		}
	}
	return false
}

// String lists the events sorted by name.
func (events Events) String() string {
	names := make([]string, 0, len(events))
	for name := range events {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%v", name, events[name]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func truthy(v interface{}) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case string:
		return v != ""
	case []interface{}:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	}
	return true
}
