package returns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/returns/internal/domain/shared"
	"github.com/erp/returns/internal/domain/trade"
	"github.com/erp/returns/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProcessingService drives returns through confirm and cancel.
//
// A transition writes the status first (conditional on the loaded version), then
// adjusts stock item by item. If any item fails, adjusted items are re-adjusted
// inversely and the status is written back. The party balance is posted last; a
// failure there is surfaced but leaves status and stock committed for the
// reconciliation job to repair.
type ProcessingService struct {
	returns   trade.ReturnRepository
	validator *ValidationService
	adjuster  *InventoryAdjuster
	bridge    *FinancialBridge
	runner    *SagaRunner
	locker    TransitionLocker
	publisher shared.EventPublisher
	metrics   Metrics
	logger    *zap.Logger
}

// NewProcessingService creates a processing service
func NewProcessingService(
	returns trade.ReturnRepository,
	validator *ValidationService,
	adjuster *InventoryAdjuster,
	bridge *FinancialBridge,
	logger *zap.Logger,
) *ProcessingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessingService{
		returns:   returns,
		validator: validator,
		adjuster:  adjuster,
		bridge:    bridge,
		runner:    NewSagaRunner(logger, NopMetrics{}),
		locker:    noopLocker{},
		metrics:   NopMetrics{},
		logger:    logger,
	}
}

// SetEventPublisher sets the event publisher for domain events
func (s *ProcessingService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetTransitionLocker sets an optional lock taken around each transition
func (s *ProcessingService) SetTransitionLocker(locker TransitionLocker) {
	if locker != nil {
		s.locker = locker
	}
}

// SetMetrics sets the metrics sink
func (s *ProcessingService) SetMetrics(metrics Metrics) {
	if metrics == nil {
		return
	}
	s.metrics = metrics
	s.runner = NewSagaRunner(s.logger, metrics)
}

// ConfirmReturn confirms a return and reports the outcome for an operator
func (s *ProcessingService) ConfirmReturn(ctx context.Context, id uuid.UUID) (bool, string) {
	if err := s.Confirm(ctx, id); err != nil {
		return false, OperatorMessage(trade.ActionConfirm, err)
	}
	return true, "Return confirmed"
}

// CancelReturn cancels a confirmed return and reports the outcome for an operator
func (s *ProcessingService) CancelReturn(ctx context.Context, id uuid.UUID) (bool, string) {
	if err := s.Cancel(ctx, id); err != nil {
		return false, OperatorMessage(trade.ActionCancel, err)
	}
	return true, "Return cancelled"
}

// Confirm moves a draft return to confirmed
func (s *ProcessingService) Confirm(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, trade.ActionConfirm)
}

// Cancel moves a confirmed return to cancelled
func (s *ProcessingService) Cancel(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, trade.ActionCancel)
}

// Delete removes a draft return
func (s *ProcessingService) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "return", "delete", telemetry.SpanAttrReturnID, id)
	defer span.End()

	if result := s.validator.ValidateBeforeDelete(ctx, id); !result.Valid {
		err := result.Err()
		telemetry.RecordError(span, err)
		return err
	}

	r, err := s.returns.FindByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if !r.IsDraft() {
		err := shared.NewDomainError(shared.CodeInvalidStateTransition,
			fmt.Sprintf("Only draft returns can be deleted, this return is %s", r.Status))
		telemetry.RecordError(span, err)
		return err
	}

	if err := s.returns.DeleteDraft(ctx, id, r.Version); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.logger.Info("draft return deleted",
		zap.String("return_id", id.String()),
		zap.String("return_number", r.ReturnNumber),
	)
	s.publish(ctx, trade.NewReturnDeletedEvent(r))
	telemetry.SetOK(span)
	return nil
}

func (s *ProcessingService) transition(ctx context.Context, id uuid.UUID, action trade.Action) (err error) {
	start := time.Now()
	ctx, span := telemetry.StartServiceSpan(ctx, "return", action.String(),
		telemetry.SpanAttrReturnID, id,
		telemetry.SpanAttrAction, action.String(),
	)
	defer span.End()

	var returnType trade.ReturnType
	outcome := OutcomeSuccess
	defer func() {
		s.metrics.RecordTransition(ctx, action, returnType, outcome, time.Since(start))
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.SetOK(span)
		}
	}()

	if result := s.validate(ctx, id, action); !result.Valid {
		outcome = OutcomeRejected
		s.logger.Info("return transition rejected",
			zap.String("return_id", id.String()),
			zap.String("action", action.String()),
			zap.String("code", result.Code),
			zap.String("reason", result.Message),
		)
		return result.Err()
	}

	release, err := s.locker.Acquire(ctx, id)
	if err != nil {
		outcome = lockOutcome(err)
		return err
	}
	defer release()

	r, err := s.loadFull(ctx, id)
	if err != nil {
		outcome = OutcomeRejected
		return err
	}
	returnType = r.ReturnType
	telemetry.SetAttributes(span,
		telemetry.SpanAttrReturnNumber, r.ReturnNumber,
		telemetry.SpanAttrReturnType, r.ReturnType.String(),
		telemetry.SpanAttrItemsCount, r.ItemCount(),
	)

	if err := r.CheckTransition(action); err != nil {
		outcome = OutcomeRejected
		return err
	}

	if result := s.validator.ValidateStock(ctx, r, action); !result.Valid {
		outcome = OutcomeRejected
		return result.Err()
	}

	steps, err := s.buildSteps(r, action)
	if err != nil {
		outcome = OutcomeRejected
		return err
	}

	// Once the first write is attempted the transition runs to completion or rollback.
	ctx = context.WithoutCancel(ctx)

	var runErr error
	telemetry.WithProfilingLabels(ctx, telemetry.TransitionLabels(action.String(), r.ReturnType.String()), func(ctx context.Context) {
		runErr = s.runner.Run(ctx, steps)
	})
	if err := runErr; err != nil {
		outcome = sagaOutcome(err)
		s.logger.Error("return transition failed",
			zap.String("return_id", r.ID.String()),
			zap.String("return_number", r.ReturnNumber),
			zap.String("action", action.String()),
			zap.String("status_after", r.Status.String()),
			zap.Error(err),
		)
		return err
	}

	s.logger.Info("return transition applied",
		zap.String("return_id", r.ID.String()),
		zap.String("return_number", r.ReturnNumber),
		zap.String("return_type", r.ReturnType.String()),
		zap.String("action", action.String()),
		zap.String("status", r.Status.String()),
		zap.Int("items_count", r.ItemCount()),
	)

	balanceErr := s.postBalance(ctx, r, action)
	if balanceErr != nil {
		outcome = OutcomeBalancePending
	}

	s.publish(ctx, r.TakeEvents()...)

	return balanceErr
}

// validate runs the pre-transition check for an action
func (s *ProcessingService) validate(ctx context.Context, id uuid.UUID, action trade.Action) ValidationResult {
	switch action {
	case trade.ActionConfirm:
		return s.validator.ValidateBeforeConfirm(ctx, id)
	case trade.ActionCancel:
		return s.validator.ValidateBeforeCancel(ctx, id)
	}
	return Invalid(shared.CodeInvalidInput, fmt.Sprintf("Unknown action: %q", action))
}

// loadFull loads a return and requires its items to be present
func (s *ProcessingService) loadFull(ctx context.Context, id uuid.UUID) (*trade.Return, error) {
	r, err := s.returns.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.WrapDomainError(shared.CodeNotFound, "Return not found", err)
		}
		return nil, fmt.Errorf("failed to load return %s: %w", id, err)
	}
	if r.ItemCount() == 0 {
		return nil, shared.NewDomainError(shared.CodeIncompleteData,
			fmt.Sprintf("Return %s has no items", r.ReturnNumber))
	}
	return r, nil
}

// buildSteps lays out the saga: the status write, then one step per item
func (s *ProcessingService) buildSteps(r *trade.Return, action trade.Action) ([]Step, error) {
	direction, err := r.StockDirection(action)
	if err != nil {
		return nil, err
	}

	steps := make([]Step, 0, len(r.Items)+1)
	steps = append(steps, s.statusStep(r, action))

	for i := range r.Items {
		item := r.Items[i]
		var applied *Adjustment
		reason := fmt.Sprintf("%s %s %s: %s %s x %s",
			returnLabel(r.ReturnType), r.ReturnNumber, pastTense(action), item.ItemType, item.ItemID, item.Quantity)
		undoReason := fmt.Sprintf("Compensation for failed %s of %s %s",
			action, returnLabel(r.ReturnType), r.ReturnNumber)

		steps = append(steps, NewStep(
			fmt.Sprintf("stock:%s:%s", item.ItemType, item.ItemID),
			func(ctx context.Context) error {
				adj, err := s.adjuster.Adjust(ctx, r, item, direction, reason)
				if err != nil {
					return err
				}
				applied = adj
				return nil
			},
			func(ctx context.Context) error {
				if applied == nil {
					return nil
				}
				_, err := s.adjuster.Adjust(ctx, r, item, applied.Direction.Inverse(), undoReason)
				return err
			},
		))
	}

	return steps, nil
}

// statusStep writes the target status conditionally and writes the prior status back on compensation
func (s *ProcessingService) statusStep(r *trade.Return, action trade.Action) Step {
	from, to := action.From(), action.To()

	return NewStep(
		"status",
		func(ctx context.Context) error {
			if err := s.returns.UpdateStatus(ctx, r.ID, from, to, r.Version); err != nil {
				return err
			}
			return r.ApplyTransition(action)
		},
		func(ctx context.Context) error {
			if err := s.returns.UpdateStatus(ctx, r.ID, to, from, r.Version); err != nil {
				return err
			}
			r.RevertTransition(action)
			s.logger.Warn("return status reverted",
				zap.String("return_id", r.ID.String()),
				zap.String("status", r.Status.String()),
			)
			return nil
		},
	)
}

// postBalance posts the ledger effect and turns failures into BALANCE_SYNC_FAILED
func (s *ProcessingService) postBalance(ctx context.Context, r *trade.Return, action trade.Action) error {
	if !r.HasParty() || s.bridge == nil {
		return nil
	}

	var err error
	switch action {
	case trade.ActionConfirm:
		_, err = s.bridge.HandleReturnConfirmation(ctx, r)
	case trade.ActionCancel:
		_, err = s.bridge.HandleReturnCancellation(ctx, r)
	}
	if err == nil {
		return nil
	}

	s.logger.Error("party balance not updated after stock change, reconciliation required",
		zap.String("return_id", r.ID.String()),
		zap.String("party_id", r.PartyID.String()),
		zap.String("action", action.String()),
		zap.String("amount", r.Amount.String()),
		zap.Error(err),
	)
	if shared.IsCode(err, shared.CodeBalanceSyncFailed) {
		return err
	}
	return shared.WrapDomainError(shared.CodeBalanceSyncFailed,
		fmt.Sprintf("Return %s was %s but the party balance could not be updated: %v", r.ReturnNumber, pastTense(action), err), err)
}

func (s *ProcessingService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		// Log but don't fail
		s.logger.Warn("failed to publish return events", zap.Error(err))
	}
}

// OperatorMessage renders an error from a transition for display to an operator
func OperatorMessage(action trade.Action, err error) string {
	if err == nil {
		return ""
	}
	switch shared.ErrorCode(err) {
	case shared.CodeAlreadyProcessed:
		return "This return was just processed by another request. Refresh to see its current status."
	case shared.CodeBalanceSyncFailed:
		return fmt.Sprintf("Return %s, but the party balance could not be updated. It will be reconciled automatically.", pastTense(action))
	case "":
		return fmt.Sprintf("Failed to %s return: %v", action, err)
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

func pastTense(action trade.Action) string {
	if action == trade.ActionCancel {
		return "cancelled"
	}
	return "confirmed"
}

func lockOutcome(err error) string {
	if shared.IsCode(err, shared.CodeAlreadyProcessed) {
		return OutcomeAlreadyDone
	}
	return OutcomeRejected
}

func sagaOutcome(err error) string {
	if sagaErr, ok := AsSagaError(err); ok && !sagaErr.FullyCompensated() {
		return OutcomeCompensationGap
	}
	if shared.IsCode(err, shared.CodeAlreadyProcessed) {
		return OutcomeAlreadyDone
	}
	return OutcomeCompensated
}
