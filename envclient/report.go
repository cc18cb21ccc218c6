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
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Reporter prints the human readable test report.
type Reporter struct {
	out  io.Writer
	ok   *color.Color
	bad  *color.Color
	note *color.Color
}

// NewReporter writes to out, or discards everything when out is nil.
func NewReporter(out io.Writer) *Reporter {
	if out == nil {
		out = io.Discard
	}
	return &Reporter{
		out:  out,
		ok:   color.New(color.FgGreen),
		bad:  color.New(color.FgRed),
		note: color.New(color.FgCyan),
	}
}

// Pass prints a success line
func (r *Reporter) Pass(format string, args ...interface{}) {
	r.ok.Fprintf(r.out, "✓ "+format+"\n", args...)
}

// Fail prints a failure line
func (r *Reporter) Fail(format string, args ...interface{}) {
	r.bad.Fprintf(r.out, "✗ "+format+"\n", args...)
}

// Printf writes an uncoloured line.
func (r *Reporter) Printf(format string, args ...interface{}) {
	fmt.Fprintf(r.out, format, args...)
}

// Section opens a test block.
func (r *Reporter) Section(title string) {
	r.note.Fprintf(r.out, "\n--- %s ---\n", title)
}

// Sent echoes an outgoing command.
func (r *Reporter) Sent(line string) {
	fmt.Fprintf(r.out, "→ Sent: %s\n", strings.TrimSpace(line))
}

// Received echoes a reply, usually indented JSON.
func (r *Reporter) Received(body string) {
	fmt.Fprintf(r.out, "← Received: %s\n", body)
}

// Banner prints the run title above a rule.
func (r *Reporter) Banner(title string) {
	fmt.Fprintln(r.out, title)
	r.Rule()
}

// Rule prints a separator line.
func (r *Reporter) Rule() {
	fmt.Fprintln(r.out, strings.Repeat("=", 40))
}

// Summary prints the final tally.
func (r *Reporter) Summary(res Result) {
	fmt.Fprintln(r.out)
	r.Rule()
	fmt.Fprintf(r.out, "Results: %d/%d tests passed\n", res.Passed, res.Total)
	if res.OK() {
		r.Pass("Smoke suite PASSED!")
	} else {
		r.Fail("Some tests failed")
	}
}
