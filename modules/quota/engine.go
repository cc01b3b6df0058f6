package quota

import (
	"context"

	"quota/modules/clientid"
	"quota/modules/clock"
)

// Engine ties identity resolution, evaluation and recording together
// for one limit profile. Several engines may share one CounterStore;
// bucket keys are namespaced by tier, not by profile.
type Engine struct {
	eval *Evaluator
	rec  *Recorder
}

func NewEngine(store CounterStore, clk clock.Clock, limits Limits) *Engine {
	return &Engine{
		eval: NewEvaluator(store, clk, limits),
		rec:  NewRecorder(store, clk, limits),
	}
}

// Check resolves the caller from headers and evaluates both tiers.
func (e *Engine) Check(ctx context.Context, hdrs clientid.Headers) Decision {
	return e.eval.Evaluate(ctx, clientid.Resolve(hdrs))
}

// Record re-derives the client key and commits one event to both tiers.
func (e *Engine) Record(ctx context.Context, hdrs clientid.Headers) RecordResult {
	return e.rec.Record(ctx, clientid.Resolve(hdrs))
}

// Status is the read-only snapshot for display; identical to Check and
// guaranteed to never mutate counters.
func (e *Engine) Status(ctx context.Context, hdrs clientid.Headers) Decision {
	return e.eval.Evaluate(ctx, clientid.Resolve(hdrs))
}
