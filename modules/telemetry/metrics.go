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

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// QuotaMetrics holds the instruments for quota decision instrumentation.
type QuotaMetrics struct {
	decisionCounter   metric.Int64Counter
	storeErrorCounter metric.Int64Counter
	checkDuration     metric.Float64Histogram
}

// NewQuotaMetrics creates the quota instrument set for a service name.
func NewQuotaMetrics(serviceName string) (*QuotaMetrics, error) {
	meter := otel.Meter(serviceName)

	decisionCounter, err := meter.Int64Counter(
		"quota_decisions_total",
		metric.WithDescription("Total number of quota decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	storeErrorCounter, err := meter.Int64Counter(
		"quota_store_errors_total",
		metric.WithDescription("Backing-store failures observed during quota checks (fail-open)"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	checkDuration, err := meter.Float64Histogram(
		"quota_check_duration",
		metric.WithDescription("Quota check duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &QuotaMetrics{
		decisionCounter:   decisionCounter,
		storeErrorCounter: storeErrorCounter,
		checkDuration:     checkDuration,
	}, nil
}

// RecordDecision records one quota decision with its attributes.
// limitType is empty for allowed decisions.
func (m *QuotaMetrics) RecordDecision(ctx context.Context, allowed bool, limitType string, failedOpen bool, durationMs float64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.Bool("quota_allowed", allowed),
		attribute.String("quota_limit_type", limitType),
	}

	m.decisionCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.checkDuration.Record(ctx, durationMs, metric.WithAttributes(attrs...))
	if failedOpen {
		m.storeErrorCounter.Add(ctx, 1)
	}
}
