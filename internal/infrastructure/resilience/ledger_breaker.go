package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/erp/returns/internal/domain/finance"
	"github.com/erp/returns/internal/domain/shared"
	"github.com/erp/returns/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Breaker defaults used when the configuration leaves a field at zero
const (
	DefaultMaxRequests         uint32 = 1
	DefaultInterval                   = 60 * time.Second
	DefaultTimeout                    = 30 * time.Second
	DefaultConsecutiveFailures uint32 = 5
)

// BreakerLedgerStore guards a ledger store with a circuit breaker. While the
// breaker is open every call fails fast with SERVICE_UNAVAILABLE. A transition
// posting its balance at that moment keeps its committed status and stock,
// reports BALANCE_SYNC_FAILED and leaves the posting to reconciliation.
type BreakerLedgerStore struct {
	next   finance.LedgerStore
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewBreakerLedgerStore wraps next
func NewBreakerLedgerStore(next finance.LedgerStore, cfg config.BreakerConfig, logger *zap.Logger) *BreakerLedgerStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := gobreaker.Settings{
		Name:        "ledger",
		MaxRequests: orDefault(cfg.MaxRequests, DefaultMaxRequests),
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= orDefault(cfg.ConsecutiveFailures, DefaultConsecutiveFailures)
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	if settings.Interval == 0 {
		settings.Interval = DefaultInterval
	}
	if settings.Timeout == 0 {
		settings.Timeout = DefaultTimeout
	}

	return &BreakerLedgerStore{
		next:   next,
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: logger,
	}
}

// State returns the current breaker state
func (s *BreakerLedgerStore) State() gobreaker.State {
	return s.cb.State()
}

// Counts returns the breaker's counters for the current interval
func (s *BreakerLedgerStore) Counts() gobreaker.Counts {
	return s.cb.Counts()
}

func (s *BreakerLedgerStore) AppendEntry(ctx context.Context, entry *finance.LedgerEntry) error {
	return s.run(func() error { return s.next.AppendEntry(ctx, entry) })
}

func (s *BreakerLedgerStore) GetPartyBalance(ctx context.Context, partyID uuid.UUID) (*finance.PartyBalance, error) {
	return call(s, func() (*finance.PartyBalance, error) { return s.next.GetPartyBalance(ctx, partyID) })
}

func (s *BreakerLedgerStore) SetPartyBalance(ctx context.Context, partyID uuid.UUID, balance decimal.Decimal, at time.Time) error {
	return s.run(func() error { return s.next.SetPartyBalance(ctx, partyID, balance, at) })
}

func (s *BreakerLedgerStore) CountEntries(ctx context.Context, partyID uuid.UUID) (int64, error) {
	return call(s, func() (int64, error) { return s.next.CountEntries(ctx, partyID) })
}

func (s *BreakerLedgerStore) FindEntriesByParty(ctx context.Context, partyID uuid.UUID) ([]finance.LedgerEntry, error) {
	return call(s, func() ([]finance.LedgerEntry, error) { return s.next.FindEntriesByParty(ctx, partyID) })
}

func (s *BreakerLedgerStore) FindEntriesByTransaction(ctx context.Context, transactionID uuid.UUID) ([]finance.LedgerEntry, error) {
	return call(s, func() ([]finance.LedgerEntry, error) { return s.next.FindEntriesByTransaction(ctx, transactionID) })
}

func (s *BreakerLedgerStore) ListPartyIDs(ctx context.Context) ([]uuid.UUID, error) {
	return call(s, func() ([]uuid.UUID, error) { return s.next.ListPartyIDs(ctx) })
}

// WithPartyLock counts the whole unit of work as one call. fn receives the
// unguarded transactional store.
func (s *BreakerLedgerStore) WithPartyLock(ctx context.Context, partyID uuid.UUID, fn func(ctx context.Context, store finance.LedgerStore) error) error {
	return s.run(func() error { return s.next.WithPartyLock(ctx, partyID, fn) })
}

func (s *BreakerLedgerStore) run(fn func() error) error {
	_, err := call(s, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

func call[T any](s *BreakerLedgerStore, fn func() (T, error)) (T, error) {
	result, err := s.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		s.logger.Warn("ledger call rejected by circuit breaker", zap.String("state", s.cb.State().String()))
		var zero T
		return zero, shared.WrapDomainError(shared.CodeServiceUnavailable, "Ledger is temporarily unavailable", err)
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// isSuccessful treats business outcomes and caller cancellation as healthy calls.
// Only infrastructure errors move the breaker.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var de *shared.DomainError
	return errors.As(err, &de)
}

func orDefault(v, def uint32) uint32 {
	if v == 0 {
		return def
	}
	return v
}

var _ finance.LedgerStore = (*BreakerLedgerStore)(nil)
