package returns

import (
	"context"
	"time"

	"github.com/erp/returns/internal/domain/inventory"
	"github.com/erp/returns/internal/domain/trade"
)

// Transition outcomes reported to Metrics
const (
	OutcomeSuccess         = "success"
	OutcomeRejected        = "rejected"
	OutcomeCompensated     = "compensated"
	OutcomeAlreadyDone     = "already_processed"
	OutcomeBalancePending  = "balance_pending"
	OutcomeCompensationGap = "compensation_failed"
)

// Metrics receives lifecycle measurements
type Metrics interface {
	RecordTransition(ctx context.Context, action trade.Action, returnType trade.ReturnType, outcome string, duration time.Duration)
	RecordCompensation(ctx context.Context, step string, succeeded bool)
	RecordAuditWriteFailure(ctx context.Context, itemType inventory.ItemType)
	RecordBalanceRepairs(ctx context.Context, repaired int)
}

// NopMetrics discards all measurements
type NopMetrics struct{}

func (NopMetrics) RecordTransition(context.Context, trade.Action, trade.ReturnType, string, time.Duration) {
}

func (NopMetrics) RecordCompensation(context.Context, string, bool) {}

func (NopMetrics) RecordAuditWriteFailure(context.Context, inventory.ItemType) {}

func (NopMetrics) RecordBalanceRepairs(context.Context, int) {}

var _ Metrics = NopMetrics{}
