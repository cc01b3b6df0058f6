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

// Package postgres backs the quota CounterStore with an append-only
// event table. Every recorded action is one row; windowed counts are
// aggregate queries with a FILTER per window. Row inserts are atomic on
// their own, so no explicit per-bucket locking is needed.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quota/modules/quota"

	"github.com/jackc/pgx/v5/pgxpool"
)

var _ quota.CounterStore = (*Store)(nil)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS quota_events (
	    tier   text        NOT NULL,
	    bucket text        NOT NULL,
	    at     timestamptz NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS quota_events_bucket_at
	    ON quota_events (tier, bucket, at)`,
}

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the event table when it does not exist yet.
// Idempotent; meant to be called once at startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres ensure schema: %w", err)
		}
	}
	return nil
}

// Counts implements quota.CounterStore. All windows are answered by one
// query using filtered aggregates.
func (s *Store) Counts(ctx context.Context, tier quota.Tier, key string, windows []quota.Window, now time.Time) ([]quota.WindowCount, error) {
	var (
		cols = make([]string, 0, len(windows)*2)
		args = []any{string(tier), key}
	)
	for i, w := range windows {
		// $1=tier $2=bucket, cutoffs start at $3
		cols = append(cols,
			fmt.Sprintf("count(*) FILTER (WHERE at >= $%d)", i+3),
			fmt.Sprintf("min(at) FILTER (WHERE at >= $%d)", i+3),
		)
		args = append(args, now.Add(-w.Duration))
	}

	query := "SELECT " + strings.Join(cols, ", ") +
		" FROM quota_events WHERE tier = $1 AND bucket = $2"

	dest := make([]any, 0, len(windows)*2)
	counts := make([]int64, len(windows))
	oldest := make([]*time.Time, len(windows))
	for i := range windows {
		dest = append(dest, &counts[i], &oldest[i])
	}

	if err := s.pool.QueryRow(ctx, query, args...).Scan(dest...); err != nil {
		return nil, fmt.Errorf("postgres counts: %w", err)
	}

	out := make([]quota.WindowCount, len(windows))
	for i := range windows {
		out[i].Count = counts[i]
		if oldest[i] != nil {
			out[i].OldestMs = oldest[i].UnixMilli()
		}
	}
	return out, nil
}

// Append implements quota.CounterStore. Expired rows of the same bucket
// are pruned opportunistically in the same transaction.
func (s *Store) Append(ctx context.Context, tier quota.Tier, key string, now time.Time, retention time.Duration) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres append begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		"DELETE FROM quota_events WHERE tier = $1 AND bucket = $2 AND at < $3",
		string(tier), key, now.Add(-retention),
	); err != nil {
		return fmt.Errorf("postgres append prune: %w", err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO quota_events (tier, bucket, at) VALUES ($1, $2, $3)",
		string(tier), key, now,
	); err != nil {
		return fmt.Errorf("postgres append insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres append commit: %w", err)
	}
	return nil
}
