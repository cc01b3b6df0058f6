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

// Package memory is the in-process CounterStore: a map of buckets, each
// an ordered slice of event timestamps with its own lock. Suitable for
// tests, local development and single-instance deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"quota/modules/quota"
)

var _ quota.CounterStore = (*Store)(nil)

type Store struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// bucket holds unix-millisecond event timestamps in ascending order.
// Its lock serializes read-modify-write per (tier, key); buckets never
// contend with each other.
type bucket struct {
	mu     sync.Mutex
	events []int64
}

func New() *Store {
	return &Store{buckets: make(map[string]*bucket)}
}

func (s *Store) bucketFor(tier quota.Tier, key string) *bucket {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := string(tier) + ":" + key
	b, ok := s.buckets[k]
	if !ok {
		b = &bucket{}
		s.buckets[k] = b
	}
	return b
}

// Counts implements quota.CounterStore.
func (s *Store) Counts(ctx context.Context, tier quota.Tier, key string, windows []quota.Window, now time.Time) ([]quota.WindowCount, error) {
	b := s.bucketFor(tier, key)
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune(now, quota.MaxWindow(windows))

	nowMs := now.UnixMilli()
	out := make([]quota.WindowCount, len(windows))
	for i, w := range windows {
		cutoff := nowMs - w.Duration.Milliseconds()
		for _, ts := range b.events {
			if ts < cutoff {
				continue
			}
			out[i].Count++
			if out[i].OldestMs == 0 {
				out[i].OldestMs = ts
			}
		}
	}
	return out, nil
}

// Append implements quota.CounterStore.
func (s *Store) Append(ctx context.Context, tier quota.Tier, key string, now time.Time, retention time.Duration) error {
	b := s.bucketFor(tier, key)
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune(now, retention)
	b.events = append(b.events, now.UnixMilli())
	return nil
}

// prune drops events older than the retention horizon. Timestamps are
// appended in wall-clock order, so a single scan from the front is
// enough.
func (b *bucket) prune(now time.Time, retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := now.UnixMilli() - retention.Milliseconds()
	i := 0
	for i < len(b.events) && b.events[i] < cutoff {
		i++
	}
	if i > 0 {
		b.events = append(b.events[:0], b.events[i:]...)
	}
}
