package redis

import (
	"context"
	"testing"
	"time"

	"quota/modules/quota"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
)

var start = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	if err != nil {
		t.Fatalf("rueidis client: %v", err)
	}
	t.Cleanup(client.Close)
	return New(client, "quota"), mr
}

func windows() []quota.Window {
	return []quota.Window{
		{Name: quota.WindowMinute, Duration: time.Minute, Limit: 10},
		{Name: quota.WindowHour, Duration: time.Hour, Limit: 50},
	}
}

func TestAppendAndCounts(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, at := range []time.Time{
		start.Add(-30 * time.Minute),
		start.Add(-30 * time.Second),
		start.Add(-5 * time.Second),
	} {
		if err := s.Append(ctx, quota.TierClient, "203.0.113.7", at, time.Hour); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Counts(ctx, quota.TierClient, "203.0.113.7", windows(), start)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Count != 2 {
		t.Errorf("minute count = %d, want 2", got[0].Count)
	}
	if got[1].Count != 3 {
		t.Errorf("hour count = %d, want 3", got[1].Count)
	}
	if want := start.Add(-30 * time.Second).UnixMilli(); got[0].OldestMs != want {
		t.Errorf("minute oldest = %d, want %d", got[0].OldestMs, want)
	}
	if want := start.Add(-30 * time.Minute).UnixMilli(); got[1].OldestMs != want {
		t.Errorf("hour oldest = %d, want %d", got[1].OldestMs, want)
	}
}

func TestAppendPrunesExpired(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	// the old event falls outside the retention horizon of the next append
	if err := s.Append(ctx, quota.TierGlobal, quota.GlobalBucketKey, start.Add(-2*time.Hour), time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, quota.TierGlobal, quota.GlobalBucketKey, start, time.Hour); err != nil {
		t.Fatal(err)
	}

	got, err := s.Counts(ctx, quota.TierGlobal, quota.GlobalBucketKey, windows(), start)
	if err != nil {
		t.Fatal(err)
	}
	if got[1].Count != 1 {
		t.Errorf("hour count = %d, want 1 after prune", got[1].Count)
	}
}

func TestCountsExcludesOutOfWindow(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	// still retained, but outside the minute window
	if err := s.Append(ctx, quota.TierClient, "k", start.Add(-10*time.Minute), time.Hour); err != nil {
		t.Fatal(err)
	}
	got, err := s.Counts(ctx, quota.TierClient, "k", windows(), start)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Count != 0 {
		t.Errorf("minute count = %d, want 0", got[0].Count)
	}
	if got[1].Count != 1 {
		t.Errorf("hour count = %d, want 1", got[1].Count)
	}
}

func TestBucketKeyTTL(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, quota.TierClient, "k", start, time.Hour); err != nil {
		t.Fatal(err)
	}
	key := "quota:ip:k"
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Hour {
		t.Errorf("ttl = %v, want (0, 1h]", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if mr.Exists(key) {
		t.Error("bucket key should expire with its retention window")
	}
}

func TestConcurrentAppendsDistinctMembers(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	// identical timestamps must still land as distinct events
	for range 5 {
		if err := s.Append(ctx, quota.TierClient, "k", start, time.Hour); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.Counts(ctx, quota.TierClient, "k", windows(), start)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Count != 5 {
		t.Errorf("count = %d, want 5 distinct members", got[0].Count)
	}
}
