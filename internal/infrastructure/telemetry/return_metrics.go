package telemetry

import (
	"context"
	"time"

	"github.com/erp/returns/internal/domain/inventory"
	"github.com/erp/returns/internal/domain/trade"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ReturnMetrics records return lifecycle measurements:
//   - return_transitions_total / return_transition_duration_seconds by action, type and outcome
//   - return_compensations_total by step and whether the inverse write succeeded
//   - return_audit_write_failures_total by item type
//   - return_balance_repairs_total for cached balances corrected by reconciliation
//   - return_reconciliation_runs_total / return_reconciliation_duration_seconds by outcome
type ReturnMetrics struct {
	transitions        *Counter
	transitionDuration *Histogram
	compensations      *Counter
	auditFailures      *Counter
	balanceRepairs     *Counter
	reconRuns          *Counter
	reconDuration      *Histogram
}

// NewReturnMetrics creates the lifecycle instruments on meter
func NewReturnMetrics(meter metric.Meter) (*ReturnMetrics, error) {
	transitions, err := NewCounter(meter,
		"return_transitions_total",
		"Return status transitions by action, return type and outcome",
		"{transition}",
	)
	if err != nil {
		return nil, err
	}

	transitionDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "return_transition_duration_seconds",
		Description: "Time spent processing a return transition",
		Unit:        "s",
		Boundaries:  TransitionDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	compensations, err := NewCounter(meter,
		"return_compensations_total",
		"Inverse writes issued while rolling back a failed transition",
		"{step}",
	)
	if err != nil {
		return nil, err
	}

	auditFailures, err := NewCounter(meter,
		"return_audit_write_failures_total",
		"Stock movement records that could not be written",
		"{movement}",
	)
	if err != nil {
		return nil, err
	}

	balanceRepairs, err := NewCounter(meter,
		"return_balance_repairs_total",
		"Cached party balances rewritten from the ledger by reconciliation",
		"{party}",
	)
	if err != nil {
		return nil, err
	}

	reconRuns, err := NewCounter(meter,
		"return_reconciliation_runs_total",
		"Scheduled reconciliation runs by outcome",
		"{run}",
	)
	if err != nil {
		return nil, err
	}

	reconDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "return_reconciliation_duration_seconds",
		Description: "Time spent in one reconciliation run",
		Unit:        "s",
		Boundaries:  []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	})
	if err != nil {
		return nil, err
	}

	return &ReturnMetrics{
		transitions:        transitions,
		transitionDuration: transitionDuration,
		compensations:      compensations,
		auditFailures:      auditFailures,
		balanceRepairs:     balanceRepairs,
		reconRuns:          reconRuns,
		reconDuration:      reconDuration,
	}, nil
}

// RecordTransition counts one transition attempt and its duration.
// returnType is empty when the return could not be loaded.
func (m *ReturnMetrics) RecordTransition(ctx context.Context, action trade.Action, returnType trade.ReturnType, outcome string, duration time.Duration) {
	typ := returnType.String()
	if typ == "" {
		typ = "unknown"
	}
	attrs := []attribute.KeyValue{
		AttrAction.String(action.String()),
		AttrReturnType.String(typ),
		AttrOutcome.String(outcome),
	}
	m.transitions.Inc(ctx, attrs...)
	m.transitionDuration.RecordDuration(ctx, duration, attrs...)
}

// RecordCompensation counts one compensating write
func (m *ReturnMetrics) RecordCompensation(ctx context.Context, step string, succeeded bool) {
	m.compensations.Inc(ctx, AttrStep.String(stepKind(step)), AttrSucceeded.Bool(succeeded))
}

// RecordAuditWriteFailure counts a movement record lost after a committed stock write
func (m *ReturnMetrics) RecordAuditWriteFailure(ctx context.Context, itemType inventory.ItemType) {
	m.auditFailures.Inc(ctx, AttrItemType.String(itemType.String()))
}

// RecordBalanceRepairs adds the number of balances repaired in one reconciliation run
func (m *ReturnMetrics) RecordBalanceRepairs(ctx context.Context, repaired int) {
	if repaired <= 0 {
		return
	}
	m.balanceRepairs.Add(ctx, int64(repaired))
}

// RecordReconciliationRun counts one scheduled run. outcome is success, failed or skipped.
func (m *ReturnMetrics) RecordReconciliationRun(ctx context.Context, outcome string, duration time.Duration) {
	m.reconRuns.Inc(ctx, AttrOutcome.String(outcome))
	if outcome != "skipped" {
		m.reconDuration.RecordDuration(ctx, duration, AttrOutcome.String(outcome))
	}
}

// stepKind strips the per-item suffix of a step name ("stock:<item>" -> "stock")
// to keep the attribute low-cardinality
func stepKind(step string) string {
	for i := 0; i < len(step); i++ {
		if step[i] == ':' {
			return step[:i]
		}
	}
	return step
}
