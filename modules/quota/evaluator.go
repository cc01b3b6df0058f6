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

package quota

import (
	"context"
	"log/slog"
	"time"

	"quota/modules/clock"
)

// Evaluator decides allow/deny from current counts. It never mutates
// bucket state.
type Evaluator struct {
	store  CounterStore
	clock  clock.Clock
	limits Limits
}

func NewEvaluator(store CounterStore, clk clock.Clock, limits Limits) *Evaluator {
	return &Evaluator{store: store, clock: clk, limits: limits}
}

// Evaluate checks the global tier first, then the per-client tier.
// Global exhaustion is a cost-control circuit breaker and short-circuits
// before any per-client work.
//
// A window is exceeded at usage >= limit: the request that would bring
// usage up to the limit is the last one allowed. Backing-store failures
// fail open — the decision allows with Err set, never an error return.
func (e *Evaluator) Evaluate(ctx context.Context, clientKey string) Decision {
	now := e.clock.Now()

	globalCounts, err := e.store.Counts(ctx, TierGlobal, GlobalBucketKey, e.limits.Global, now)
	if err != nil {
		return e.failOpen(ctx, clientKey, err)
	}
	globalUsage := usage(TierGlobal, e.limits.Global, globalCounts)

	if w, c, ok := violated(e.limits.Global, globalCounts); ok {
		return Decision{
			Allowed:    false,
			LimitType:  LimitTypeGlobal,
			ClientKey:  clientKey,
			Global:     globalUsage,
			RetryAfter: retryAfter(w, c, now),
		}
	}

	clientCounts, err := e.store.Counts(ctx, TierClient, clientKey, e.limits.Client, now)
	if err != nil {
		return e.failOpen(ctx, clientKey, err)
	}
	clientUsage := usage(TierClient, e.limits.Client, clientCounts)

	if w, c, ok := violated(e.limits.Client, clientCounts); ok {
		return Decision{
			Allowed:    false,
			LimitType:  LimitTypeIP,
			ClientKey:  clientKey,
			Global:     globalUsage,
			Client:     clientUsage,
			RetryAfter: retryAfter(w, c, now),
		}
	}

	return Decision{
		Allowed:   true,
		LimitType: LimitTypeNone,
		ClientKey: clientKey,
		Global:    globalUsage,
		Client:    clientUsage,
	}
}

// failOpen turns a store failure into an allow with the error marker
// set. Quota is a soft limit, not a security boundary.
func (e *Evaluator) failOpen(ctx context.Context, clientKey string, err error) Decision {
	slog.WarnContext(ctx, "quota store unavailable, failing open",
		slog.String("client_key", clientKey),
		slog.Any("error", err),
	)
	return Decision{
		Allowed:   true,
		LimitType: LimitTypeNone,
		ClientKey: clientKey,
		Err:       err.Error(),
	}
}

// violated returns the first exceeded window. Windows are configured
// shortest-first, so the tightest one is reported when several trip at
// once.
func violated(windows []Window, counts []WindowCount) (Window, WindowCount, bool) {
	for i, w := range windows {
		if counts[i].Count >= w.Limit {
			return w, counts[i], true
		}
	}
	return Window{}, WindowCount{}, false
}

func usage(tier Tier, windows []Window, counts []WindowCount) TierUsage {
	t := TierUsage{Tier: tier, Windows: make([]WindowUsage, len(windows))}
	for i, w := range windows {
		t.Windows[i] = WindowUsage{Window: w, Used: counts[i].Count}
	}
	return t
}

// retryAfter is the time until the oldest event in the violated window
// expires out of it.
func retryAfter(w Window, c WindowCount, now time.Time) time.Duration {
	if c.OldestMs == 0 {
		return 0
	}
	return max(time.UnixMilli(c.OldestMs).Add(w.Duration).Sub(now), 0)
}
