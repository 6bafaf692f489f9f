package returns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/returns/internal/domain/finance"
	"github.com/erp/returns/internal/domain/shared"
	"github.com/erp/returns/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultSettleWindow is how long a return must go without a status write before
// the posting pass touches it
const DefaultSettleWindow = 2 * time.Minute

// ReconciliationService repairs party balances left behind by failed postings.
//
// It runs two passes. The posting pass adds ledger entries that processed returns
// should have and do not. The balance pass replays each party's ledger and rewrites
// the cached balance when it drifted.
//
// A return whose transition may still be running is skipped: it was written within
// the settle window, its transition lock is held, or its status or version changed
// after it was listed. A confirm that is later compensated back to draft must never
// receive a posting.
type ReconciliationService struct {
	returns      trade.ReturnRepository
	ledger       finance.LedgerStore
	bridge       *FinancialBridge
	locker       TransitionLocker
	settleWindow time.Duration
	now          func() time.Time
	metrics      Metrics
	logger       *zap.Logger
}

// NewReconciliationService creates a reconciliation service
func NewReconciliationService(
	returns trade.ReturnRepository,
	ledger finance.LedgerStore,
	bridge *FinancialBridge,
	logger *zap.Logger,
	metrics Metrics,
) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &ReconciliationService{
		returns:      returns,
		ledger:       ledger,
		bridge:       bridge,
		locker:       noopLocker{},
		settleWindow: DefaultSettleWindow,
		now:          time.Now,
		metrics:      metrics,
		logger:       logger,
	}
}

// SetTransitionLocker sets the lock shared with ProcessingService. Returns whose
// lock is held are left for the next run.
func (s *ReconciliationService) SetTransitionLocker(locker TransitionLocker) {
	if locker != nil {
		s.locker = locker
	}
}

// SetSettleWindow sets how recent a status write may be before a return is
// skipped. Zero checks every return.
func (s *ReconciliationService) SetSettleWindow(window time.Duration) {
	if window >= 0 {
		s.settleWindow = window
	}
}

// Run executes the posting pass and then the balance pass
func (s *ReconciliationService) Run(ctx context.Context) (*ReconciliationReport, error) {
	report := &ReconciliationReport{
		StartedAt:        s.now(),
		PostingsRepaired: make([]PostingRepair, 0),
		BalancesRepaired: make([]BalanceDrift, 0),
	}

	if err := s.ReconcilePostings(ctx, report); err != nil {
		return report, err
	}
	if err := s.ReconcileBalances(ctx, report); err != nil {
		return report, err
	}

	report.FinishedAt = s.now()
	s.metrics.RecordBalanceRepairs(ctx, len(report.PostingsRepaired)+len(report.BalancesRepaired))

	s.logger.Info("reconciliation finished",
		zap.Int("returns_checked", report.ReturnsChecked),
		zap.Int("returns_skipped", report.ReturnsSkipped),
		zap.Int("parties_checked", report.PartiesChecked),
		zap.Int("postings_repaired", len(report.PostingsRepaired)),
		zap.Int("balances_repaired", len(report.BalancesRepaired)),
		zap.Int("chain_breaks", report.ChainBreaks),
		zap.Int("errors", len(report.Errors)),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

// ReconcilePostings posts missing ledger entries for confirmed and cancelled returns.
// A cancelled return must carry both the forward posting and its reversal.
func (s *ReconciliationService) ReconcilePostings(ctx context.Context, report *ReconciliationReport) error {
	processed, err := s.returns.FindWithPartyByStatus(ctx, trade.ReturnStatusConfirmed, trade.ReturnStatusCancelled)
	if err != nil {
		return fmt.Errorf("failed to list processed returns: %w", err)
	}

	settledBefore := s.now().Add(-s.settleWindow)
	for i := range processed {
		r := &processed[i]
		report.ReturnsChecked++
		if !r.HasParty() || r.Amount.IsZero() {
			continue
		}
		if s.settleWindow > 0 && r.UpdatedAt.After(settledBefore) {
			report.ReturnsSkipped++
			continue
		}
		if err := s.reconcileReturn(ctx, r, report); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("return %s: %v", r.ReturnNumber, err))
		}
	}
	return nil
}

// reconcileReturn posts what r is missing while holding its transition lock
func (s *ReconciliationService) reconcileReturn(ctx context.Context, listed *trade.Return, report *ReconciliationReport) error {
	release, err := s.locker.Acquire(ctx, listed.ID)
	if errors.Is(err, shared.ErrAlreadyProcessed) {
		report.ReturnsSkipped++
		return nil
	}
	if err != nil {
		return err
	}
	defer release()

	r, err := s.returns.FindByID(ctx, listed.ID)
	if errors.Is(err, shared.ErrNotFound) {
		report.ReturnsSkipped++
		return nil
	}
	if err != nil {
		return err
	}
	if r.Status != listed.Status || r.Version != listed.Version {
		report.ReturnsSkipped++
		s.logger.Info("return changed during reconciliation, skipped",
			zap.String("return_id", r.ID.String()),
			zap.String("listed_status", listed.Status.String()),
			zap.String("status", r.Status.String()),
		)
		return nil
	}

	entries, err := s.ledger.FindEntriesByTransaction(ctx, r.ID)
	if err != nil {
		return err
	}
	posted := make(map[finance.TransactionType]bool, len(entries))
	for _, e := range entries {
		posted[e.TransactionType] = true
	}

	actions := []trade.Action{trade.ActionConfirm}
	if r.IsCancelled() {
		actions = append(actions, trade.ActionCancel)
	}

	for _, action := range actions {
		if posted[LedgerTransactionType(r.ReturnType, action)] {
			continue
		}
		entry, err := s.bridge.Post(ctx, r, action)
		if err != nil {
			return fmt.Errorf("%s: %w", action, err)
		}
		if entry == nil {
			continue
		}
		s.logger.Warn("missing ledger posting repaired",
			zap.String("return_id", r.ID.String()),
			zap.String("return_number", r.ReturnNumber),
			zap.String("action", action.String()),
			zap.String("party_id", r.PartyID.String()),
		)
		report.PostingsRepaired = append(report.PostingsRepaired, PostingRepair{
			ReturnID: r.ID,
			PartyID:  *r.PartyID,
			Action:   action,
			Amount:   entry.Net(),
		})
	}
	return nil
}

// ReconcileBalances replays each party's ledger and rewrites drifted cached balances.
// Entries whose BalanceAfter does not follow from the previous entry are counted as
// chain breaks; entries are immutable so they are reported, not rewritten.
func (s *ReconciliationService) ReconcileBalances(ctx context.Context, report *ReconciliationReport) error {
	parties, err := s.ledger.ListPartyIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list parties: %w", err)
	}

	for _, partyID := range parties {
		report.PartiesChecked++
		drift, breaks, err := s.reconcileParty(ctx, partyID)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("party %s: %v", partyID, err))
			continue
		}
		report.ChainBreaks += breaks
		if drift != nil {
			report.BalancesRepaired = append(report.BalancesRepaired, *drift)
		}
	}
	return nil
}

func (s *ReconciliationService) reconcileParty(ctx context.Context, partyID uuid.UUID) (*BalanceDrift, int, error) {
	var drift *BalanceDrift
	breaks := 0

	err := s.ledger.WithPartyLock(ctx, partyID, func(ctx context.Context, store finance.LedgerStore) error {
		entries, err := store.FindEntriesByParty(ctx, partyID)
		if err != nil {
			return err
		}

		running := decimal.Zero
		for i := range entries {
			running = running.Add(entries[i].Net())
			if !entries[i].BalanceAfter.Equal(running) {
				breaks++
				s.logger.Error("ledger chain break",
					zap.String("party_id", partyID.String()),
					zap.String("entry_id", entries[i].ID.String()),
					zap.Int64("sequence", entries[i].Sequence),
					zap.String("balance_after", entries[i].BalanceAfter.String()),
					zap.String("expected", running.String()),
				)
			}
		}

		cached, err := store.GetPartyBalance(ctx, partyID)
		if err != nil {
			return err
		}
		if cached != nil && cached.Balance.Equal(running) {
			return nil
		}

		drift = &BalanceDrift{PartyID: partyID, Replayed: running, Missing: cached == nil}
		if cached != nil {
			drift.Cached = cached.Balance
		}
		if err := store.SetPartyBalance(ctx, partyID, running, time.Now()); err != nil {
			return err
		}
		s.logger.Warn("party balance repaired",
			zap.String("party_id", partyID.String()),
			zap.String("cached", drift.Cached.String()),
			zap.String("replayed", running.String()),
			zap.Bool("missing", drift.Missing),
		)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return drift, breaks, nil
}
