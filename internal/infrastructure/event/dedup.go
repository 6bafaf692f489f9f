package event

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/erp/returns/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultDedupWindow is how long a delivered event ID is remembered
const DefaultDedupWindow = 24 * time.Hour

// DedupStats counts what a DedupHandler did with the events it saw
type DedupStats struct {
	Handled int64 `json:"handled"`
	Skipped int64 `json:"skipped"`
	Failed  int64 `json:"failed"`
}

// DedupHandler hands each event ID to next at most once per window. It
// claims the ID before delivery, so a failed delivery is not retried until
// the window expires. If the store is unreachable the event is delivered
// anyway: consumers of the return topic tolerate duplicates, not gaps.
type DedupHandler struct {
	next   shared.EventHandler
	seen   shared.IdempotencyStore
	window time.Duration
	log    *zap.Logger

	handled, skipped, failed atomic.Int64
}

// NewDedupHandler wraps next. A zero window turns deduplication off.
func NewDedupHandler(next shared.EventHandler, seen shared.IdempotencyStore, window time.Duration, log *zap.Logger) *DedupHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &DedupHandler{next: next, seen: seen, window: window, log: log}
}

func (d *DedupHandler) EventTypes() []string {
	return d.next.EventTypes()
}

func (d *DedupHandler) Handle(ctx context.Context, e shared.DomainEvent) error {
	if d.window > 0 && !d.claim(ctx, e) {
		d.skipped.Add(1)
		return nil
	}
	if err := d.next.Handle(ctx, e); err != nil {
		d.failed.Add(1)
		return err
	}
	d.handled.Add(1)
	return nil
}

// claim reports whether this delivery owns the event ID
func (d *DedupHandler) claim(ctx context.Context, e shared.DomainEvent) bool {
	id := e.EventID().String()
	fresh, err := d.seen.MarkProcessed(ctx, id, d.window)
	if err != nil {
		d.log.Warn("dedup store unavailable, delivering event",
			zap.String("event_id", id), zap.String("event_type", e.EventType()), zap.Error(err))
		return true
	}
	if !fresh {
		d.log.Debug("event already delivered",
			zap.String("event_id", id), zap.String("event_type", e.EventType()))
	}
	return fresh
}

func (d *DedupHandler) Stats() DedupStats {
	return DedupStats{
		Handled: d.handled.Load(),
		Skipped: d.skipped.Load(),
		Failed:  d.failed.Load(),
	}
}

var _ shared.EventHandler = (*DedupHandler)(nil)
