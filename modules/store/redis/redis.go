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

// Package redis backs the quota CounterStore with Redis sorted sets:
// one set per bucket, scored by event timestamp. Appends run through a
// Lua script so prune + add + expire is atomic per bucket.
package redis

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"quota/modules/quota"

	"github.com/redis/rueidis"
)

var (
	_ quota.CounterStore = (*Store)(nil)

	//go:embed append.lua
	appendLua string

	luaAppend = rueidis.NewLuaScript(appendLua)
)

type Store struct {
	client rueidis.Client
	prefix string

	// seq disambiguates events landing on the same millisecond; sorted
	// set members must be unique or concurrent appends would collapse
	// into one event.
	seq atomic.Uint64
}

// New wraps a rueidis.Client as a CounterStore.
//
// prefix is optional; if non-empty, keys become prefix + ":" + tier + ":" + key.
func New(client rueidis.Client, prefix string) *Store {
	if prefix != "" && prefix[len(prefix)-1] != ':' {
		prefix += ":"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) buildKey(tier quota.Tier, key string) string {
	return s.prefix + string(tier) + ":" + key
}

// Counts implements quota.CounterStore. One ZCOUNT plus one bounded
// ZRANGEBYSCORE per window, pipelined in a single round trip.
func (s *Store) Counts(ctx context.Context, tier quota.Tier, key string, windows []quota.Window, now time.Time) ([]quota.WindowCount, error) {
	k := s.buildKey(tier, key)
	nowMs := now.UnixMilli()

	cmds := make(rueidis.Commands, 0, len(windows)*2)
	for _, w := range windows {
		min := strconv.FormatInt(nowMs-w.Duration.Milliseconds(), 10)
		cmds = append(cmds,
			s.client.B().Zcount().Key(k).Min(min).Max("+inf").Build(),
			s.client.B().Zrangebyscore().Key(k).Min(min).Max("+inf").Withscores().Limit(0, 1).Build(),
		)
	}

	results := s.client.DoMulti(ctx, cmds...)
	out := make([]quota.WindowCount, len(windows))
	for i := range windows {
		count, err := results[i*2].AsInt64()
		if err != nil {
			return nil, fmt.Errorf("redis counts: %w", err)
		}
		out[i].Count = count

		entries, err := results[i*2+1].AsZScores()
		if err != nil {
			return nil, fmt.Errorf("redis counts oldest: %w", err)
		}
		if len(entries) > 0 {
			out[i].OldestMs = int64(entries[0].Score)
		}
	}
	return out, nil
}

// Append implements quota.CounterStore.
func (s *Store) Append(ctx context.Context, tier quota.Tier, key string, now time.Time, retention time.Duration) error {
	k := s.buildKey(tier, key)
	nowMs := now.UnixMilli()
	member := strconv.FormatInt(nowMs, 10) + "-" + strconv.FormatUint(s.seq.Add(1), 10)

	resp := luaAppend.Exec(ctx, s.client, []string{k}, []string{
		strconv.FormatInt(nowMs, 10),
		member,
		strconv.FormatInt(nowMs-retention.Milliseconds(), 10),
		strconv.FormatInt(retention.Milliseconds(), 10),
	})
	if _, err := resp.AsInt64(); err != nil {
		return fmt.Errorf("redis append: %w", err)
	}
	return nil
}
