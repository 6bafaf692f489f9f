package returns

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erp/returns/internal/domain/finance"
	"github.com/erp/returns/internal/domain/shared"
	"github.com/erp/returns/internal/domain/trade"
	"github.com/erp/returns/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// FinancialBridge moves party balances for processed returns.
// Every posting is a new ledger entry plus a cache update under the party's row lock.
// No separate income or expense record is created for returns.
type FinancialBridge struct {
	ledger finance.LedgerStore
	logger *zap.Logger
}

// NewFinancialBridge creates a bridge over the ledger store
func NewFinancialBridge(ledger finance.LedgerStore, logger *zap.Logger) *FinancialBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FinancialBridge{ledger: ledger, logger: logger}
}

// HandleReturnConfirmation posts the balance effect of a confirmed return
func (b *FinancialBridge) HandleReturnConfirmation(ctx context.Context, r *trade.Return) (*finance.LedgerEntry, error) {
	return b.Post(ctx, r, trade.ActionConfirm)
}

// HandleReturnCancellation posts the exact inverse of the confirmation
func (b *FinancialBridge) HandleReturnCancellation(ctx context.Context, r *trade.Return) (*finance.LedgerEntry, error) {
	return b.Post(ctx, r, trade.ActionCancel)
}

// Post appends the ledger entry for a return action and syncs the cached balance.
// It returns nil without error when the return has no party or a zero amount, and
// returns the existing entry when this action was already posted for the return.
func (b *FinancialBridge) Post(ctx context.Context, r *trade.Return, action trade.Action) (*finance.LedgerEntry, error) {
	if !r.HasParty() {
		return nil, nil
	}
	delta, err := r.BalanceDelta(action)
	if err != nil {
		return nil, err
	}
	if delta.IsZero() {
		b.logger.Debug("zero amount return, nothing to post",
			zap.String("return_id", r.ID.String()),
		)
		return nil, nil
	}

	partyID := *r.PartyID
	txType := LedgerTransactionType(r.ReturnType, action)

	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "post",
		telemetry.SpanAttrReturnID, r.ID,
		telemetry.SpanAttrPartyID, partyID,
		telemetry.SpanAttrAmount, delta.String(),
	)
	defer span.End()

	var posted *finance.LedgerEntry
	err = b.ledger.WithPartyLock(ctx, partyID, func(ctx context.Context, store finance.LedgerStore) error {
		existing, err := store.FindEntriesByTransaction(ctx, r.ID)
		if err != nil {
			return err
		}
		for i := range existing {
			if existing[i].TransactionType == txType {
				posted = &existing[i]
				return nil
			}
		}

		prior := finance.NewPartyBalance(partyID)
		current, err := store.GetPartyBalance(ctx, partyID)
		if err != nil {
			return err
		}
		if current != nil {
			prior = current
		}

		count, err := store.CountEntries(ctx, partyID)
		if err != nil {
			return err
		}

		entry, err := finance.NewLedgerEntry(partyID, r.ID, txType, time.Now(), prior.Balance, delta, postingNotes(r, action))
		if err != nil {
			return err
		}
		entry.Sequence = count + 1

		if err := store.AppendEntry(ctx, entry); err != nil {
			return err
		}
		if err := store.SetPartyBalance(ctx, partyID, entry.BalanceAfter, entry.CreatedAt); err != nil {
			return err
		}
		posted = entry
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, shared.WrapDomainError(shared.CodeBalanceSyncFailed,
			fmt.Sprintf("Failed to update balance of party %s for return %s: %v", partyID, r.ReturnNumber, err), err)
	}

	b.logger.Info("party balance updated",
		zap.String("return_id", r.ID.String()),
		zap.String("party_id", partyID.String()),
		zap.String("transaction_type", posted.TransactionType.String()),
		zap.String("debit", posted.Debit.String()),
		zap.String("credit", posted.Credit.String()),
		zap.String("balance_after", posted.BalanceAfter.String()),
	)
	return posted, nil
}

// LedgerTransactionType names the ledger entry for a return type and action
func LedgerTransactionType(returnType trade.ReturnType, action trade.Action) finance.TransactionType {
	switch {
	case returnType == trade.ReturnTypePurchase && action == trade.ActionCancel:
		return finance.TransactionTypePurchaseReturnReversal
	case returnType == trade.ReturnTypePurchase:
		return finance.TransactionTypePurchaseReturn
	case action == trade.ActionCancel:
		return finance.TransactionTypeSalesReturnReversal
	default:
		return finance.TransactionTypeSalesReturn
	}
}

func postingNotes(r *trade.Return, action trade.Action) string {
	label := returnLabel(r.ReturnType)
	if action == trade.ActionCancel {
		return fmt.Sprintf("Reversal of %s %s", strings.ToLower(label), r.ReturnNumber)
	}
	return fmt.Sprintf("%s %s", label, r.ReturnNumber)
}

func returnLabel(t trade.ReturnType) string {
	if t == trade.ReturnTypePurchase {
		return "Purchase return"
	}
	return "Sales return"
}
