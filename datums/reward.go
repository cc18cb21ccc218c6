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

// Reward weights used by ExampleReward.
const (
	RocketLaunchedReward    = 100.0
	NestDestroyedReward     = 20.0
	CrystalCollectedReward  = 10.0
	PlayerDiedPenalty       = 20.0
	FactoryDestroyedPenalty = 10.0
	DamagePenalty           = 0.01
	TimePenalty             = 0.005
)

// ExampleReward shows how an agent might score a step from its events.
// It is printed for reference only and never decides pass or fail.
func ExampleReward(events Events) float64 {
	reward := 0.0

	if events.Flag("rocket_launched") {
		reward += RocketLaunchedReward
	}
	if n := events.Count("nest_destroyed"); n > 0 {
		reward += NestDestroyedReward * n
	}
	if n := events.Count("crystals_collected"); n > 0 {
		reward += CrystalCollectedReward * n
	}

	if events.Flag("player_died") {
		reward -= PlayerDiedPenalty
	}
	if events.Flag("factory_destroyed") {
		reward -= FactoryDestroyedPenalty
	}
	reward -= DamagePenalty * events.Count("damage_taken")

	// flat per-step time penalty
	reward -= TimePenalty

	return reward
}
