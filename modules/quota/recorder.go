package quota

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"quota/modules/clock"
)

// Recorder appends one event to both tiers after a permitted action was
// performed. The two writes are independent and best-effort: a failure
// on one does not roll back the other, and the already-performed action
// is never undone.
type Recorder struct {
	store  CounterStore
	clock  clock.Clock
	limits Limits
}

func NewRecorder(store CounterStore, clk clock.Clock, limits Limits) *Recorder {
	return &Recorder{store: store, clock: clk, limits: limits}
}

// Record writes the current timestamp into the global bucket and the
// per-client bucket. On any underlying failure the result carries the
// error message and Success=false; callers log and continue.
func (r *Recorder) Record(ctx context.Context, clientKey string) RecordResult {
	now := r.clock.Now()

	var errs []string
	if err := r.store.Append(ctx, TierGlobal, GlobalBucketKey, now, MaxWindow(r.limits.Global)); err != nil {
		errs = append(errs, fmt.Sprintf("global tier: %v", err))
	}
	if err := r.store.Append(ctx, TierClient, clientKey, now, MaxWindow(r.limits.Client)); err != nil {
		errs = append(errs, fmt.Sprintf("client tier: %v", err))
	}

	if len(errs) > 0 {
		msg := strings.Join(errs, "; ")
		slog.WarnContext(ctx, "usage recording incomplete",
			slog.String("client_key", clientKey),
			slog.String("error", msg),
		)
		return RecordResult{Success: false, Err: msg}
	}
	return RecordResult{Success: true}
}
