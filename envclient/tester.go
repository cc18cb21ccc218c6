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
	"math/rand"

	"github.com/charles-d-burton/rltester/datums"
)

// MaxAction is the largest action id picked by TestSteps.
const MaxAction = 10

// Sender performs one request/reply exchange.
type Sender interface {
	Send(ctx context.Context, cmd datums.Command) (*datums.Response, error)
}

// Tester runs the smoke checks over a Sender.
type Tester struct {
	client Sender
	rng    *rand.Rand
	report *Reporter
}

// NewTester builds a Tester. A nil rng gets a fixed seed and a nil
// report discards output.
func NewTester(client Sender, rng *rand.Rand, report *Reporter) *Tester {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	if report == nil {
		report = NewReporter(nil)
	}
	return &Tester{client: client, rng: rng, report: report}
}

// TestReset passes when the reset reply carries an observation.
func (t *Tester) TestReset(ctx context.Context, seed int) bool {
	t.report.Section("Testing RESET")
	resp, err := t.client.Send(ctx, datums.Reset(seed))
	if err != nil {
		t.report.Fail("Error: %v", err)
		t.report.Fail("Reset failed")
		return false
	}
	if !resp.HasObs {
		t.report.Fail("Error: %v", ErrMissingObs)
		t.report.Fail("Reset failed")
		return false
	}
	t.report.Pass("Reset successful. Obs size: %d", len(resp.Obs))
	return true
}

// TestSteps sends up to numSteps random actions. It fails on the first
// bad reply and stops early, still passing, once the episode is done.
func (t *Tester) TestSteps(ctx context.Context, numSteps int) bool {
	t.report.Section(fmt.Sprintf("Testing %d RANDOM STEPS", numSteps))

	completed := 0
	for step := 0; step < numSteps; step++ {
		action := t.rng.Intn(MaxAction + 1)
		resp, err := t.client.Send(ctx, datums.Step(action))
		if err == nil && !resp.HasObs {
			err = ErrMissingObs
		}
		if err != nil {
			t.report.Fail("Error: %v", err)
			t.report.Fail("Step %d failed", step)
			return false
		}
		completed++

		events := resp.Info.Events
		reward := datums.ExampleReward(events)
		t.report.Printf("  Step %d: action=%d, reward=%.4f, done=%t\n", step, action, reward, resp.Done)
		if events.Any() {
			t.report.Printf("    Events: %s\n", events)
		}

		if resp.Done {
			t.report.Pass("Episode ended at step %d", step)
			break
		}
	}

	t.report.Pass("Completed %d steps", completed)
	return true
}
