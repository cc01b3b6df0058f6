// Copyright 2025 Nhat-Nguyen Nguyen
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

// Package quota implements multi-tier usage quotas over trailing time
// windows: a global tier shared by all callers and a per-client tier
// keyed by resolved identity. Counters live behind the CounterStore
// abstraction so the same policy code runs against memory, Redis or
// Postgres.
package quota

import (
	"time"
)

type (
	// Tier is one of the two independent quota scopes.
	Tier string

	// LimitType classifies which tier caused a denial.
	LimitType string

	// Window is a named trailing interval with a maximum event count.
	Window struct {
		Name     string
		Duration time.Duration
		Limit    int64
	}

	// WindowUsage pairs a configured window with its current count.
	WindowUsage struct {
		Window Window
		Used   int64
	}

	// TierUsage is the full usage/limit detail of one tier, windows in
	// ascending duration order.
	TierUsage struct {
		Tier    Tier
		Windows []WindowUsage
	}

	// Decision is the outcome of one quota evaluation. When Allowed is
	// false exactly one LimitType is set; usage detail for every window
	// of the evaluated tiers rides along for status display.
	Decision struct {
		Allowed   bool
		LimitType LimitType
		ClientKey string

		Global TierUsage
		Client TierUsage

		// RetryAfter is how long until the oldest event in the violated
		// window falls out of it. Zero when allowed or unknown.
		RetryAfter time.Duration

		// Err carries a backing-store failure description. A non-empty
		// Err with Allowed=true is the fail-open marker.
		Err string
	}

	// RecordResult reports the best-effort bookkeeping writes.
	RecordResult struct {
		Success bool
		Err     string
	}
)

const (
	TierGlobal Tier = "global"
	TierClient Tier = "ip"

	LimitTypeNone   LimitType = ""
	LimitTypeGlobal LimitType = "global"
	LimitTypeIP     LimitType = "ip"

	// The global tier has a single shared bucket.
	GlobalBucketKey = "global"

	// Canonical window names used by the standard profiles and by the
	// reporter's message templates.
	WindowMinute = "minute"
	WindowHour   = "hour"
	WindowDay    = "day"
)

// ByName returns the usage entry for the named window, or a zero value
// when the profile does not configure it.
func (t TierUsage) ByName(name string) WindowUsage {
	for _, w := range t.Windows {
		if w.Window.Name == name {
			return w
		}
	}
	return WindowUsage{}
}

// MaxWindow is the retention horizon of a tier: anything older than
// the longest window can never be counted again.
func MaxWindow(windows []Window) time.Duration {
	var max time.Duration
	for _, w := range windows {
		if w.Duration > max {
			max = w.Duration
		}
	}
	return max
}
