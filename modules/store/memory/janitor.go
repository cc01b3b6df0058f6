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

package memory

import (
	"context"
	"log/slog"
	"time"

	"quota/modules/clock"
	"quota/modules/worker"
)

type sweepJob struct {
	key string
	b   *bucket
}

// Sweep prunes every bucket to the retention horizon and drops buckets
// that end up empty, so one-off client keys do not accumulate forever.
func (s *Store) Sweep(ctx context.Context, now time.Time, retention time.Duration) {
	s.mu.Lock()
	jobs := make(chan sweepJob, len(s.buckets))
	for k, b := range s.buckets {
		jobs <- sweepJob{key: k, b: b}
	}
	s.mu.Unlock()
	close(jobs)

	worker.BlockingPool(ctx, 4, jobs, func(ctx context.Context, j sweepJob) {
		j.b.mu.Lock()
		j.b.prune(now, retention)
		empty := len(j.b.events) == 0
		j.b.mu.Unlock()
		if !empty {
			return
		}
		// lock order is store mutex first, bucket mutex second; an
		// append racing the delete just recreates the bucket via
		// bucketFor afterwards
		s.mu.Lock()
		j.b.mu.Lock()
		if len(j.b.events) == 0 {
			delete(s.buckets, j.key)
		}
		j.b.mu.Unlock()
		s.mu.Unlock()
	})
}

// Janitor sweeps the store on a fixed interval until ctx is cancelled.
// Run it in its own goroutine.
func Janitor(ctx context.Context, s *Store, clk clock.Clock, interval, retention time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep(ctx, clk.Now(), retention)
			slog.Debug("memory quota store swept")
		}
	}
}
