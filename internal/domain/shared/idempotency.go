package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers which events a handler has already processed
type IdempotencyStore interface {
	// MarkProcessed records the event ID for ttl. It returns false when the ID
	// was already recorded and has not expired.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	// IsProcessed reports whether the event ID is recorded
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	Close() error
}
