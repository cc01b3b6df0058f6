package quota

import (
	"context"
	"time"
)

// WindowCount is the read-side view of one window within a bucket.
type WindowCount struct {
	Count int64
	// OldestMs is the unix-millisecond timestamp of the oldest event
	// still inside the window, 0 when the window is empty. Used to
	// compute retry-after hints.
	OldestMs int64
}

// CounterStore is the storage abstraction the quota engine uses. It
// exclusively owns all bucket state: the evaluator only reads, the
// recorder is the sole writer.
//
// Expired events (older than now minus the longest configured window)
// are pruned lazily on access; counting stays correct without any
// background sweep. Appends must be atomic per (tier, key): concurrent
// writers to the same bucket must not lose events. Buckets of different
// tiers are independent and need no cross-bucket coordination.
type CounterStore interface {
	// Counts returns, for each window, the number of events recorded in
	// [now - window.Duration, now] plus the oldest such event.
	Counts(ctx context.Context, tier Tier, key string, windows []Window, now time.Time) ([]WindowCount, error)

	// Append records one event at now. retention is the longest window
	// of the tier; stores may discard anything older.
	Append(ctx context.Context, tier Tier, key string, now time.Time, retention time.Duration) error
}
