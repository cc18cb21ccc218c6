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
	"io"
	"math/rand"
	"net"
	"strconv"
	"time"
)

// Number of checks in the smoke suite.
const SuiteSize = 2

// Config describes one smoke run.
type Config struct {
	Host     string
	Port     int
	Seed     int
	Steps    int
	Pause    time.Duration
	Timeout  time.Duration
	Retries  uint64
	RandSeed int64
	Dialer   Dialer
}

// DefaultConfig targets a server on localhost:9999.
func DefaultConfig() Config {
	return Config{
		Host:  "localhost",
		Port:  9999,
		Seed:  42,
		Steps: 10,
		Pause: 500 * time.Millisecond,
	}
}

// Addr joins host and port.
func (cfg Config) Addr() string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

// Result tallies passed checks.
type Result struct {
	Passed int
	Total  int
}

// OK reports whether every check passed.
func (r Result) OK() bool {
	return r.Total > 0 && r.Passed == r.Total
}

// Run connects, runs the reset and step checks, and always closes the
// connection before printing the summary. The returned error is non-nil
// only when the server could not be reached.
func Run(ctx context.Context, cfg Config, out io.Writer) (Result, error) {
	report := NewReporter(out)
	report.Banner("RL Environment Server Tester")

	result := Result{Total: SuiteSize}
	client, err := Dial(ctx, cfg.Addr(), Options{
		Dialer:   cfg.Dialer,
		Retries:  cfg.Retries,
		Timeout:  cfg.Timeout,
		Reporter: report,
	})
	if err != nil {
		report.Fail("Failed to connect: %v", err)
		return result, err
	}
	report.Pass("Connected to %s", cfg.Addr())

	randSeed := cfg.RandSeed
	if randSeed == 0 {
		randSeed = time.Now().UnixNano()
	}
	tester := NewTester(client, rand.New(rand.NewSource(randSeed)), report)

	func() {
		defer client.Close()

		if tester.TestReset(ctx, cfg.Seed) {
			result.Passed++
		}
		if !sleep(ctx, cfg.Pause) {
			return
		}
		if tester.TestSteps(ctx, cfg.Steps) {
			result.Passed++
		}
	}()

	report.Summary(result)
	return result, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
