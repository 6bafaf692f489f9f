package returns

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/returns/internal/domain/shared"
	"github.com/erp/returns/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DraftService creates draft returns from invoices
type DraftService struct {
	returns   trade.ReturnRepository
	invoices  trade.InvoiceReader
	validator *ValidationService
	logger    *zap.Logger
	now       func() time.Time
}

// NewDraftService creates a draft service
func NewDraftService(
	returns trade.ReturnRepository,
	invoices trade.InvoiceReader,
	validator *ValidationService,
	logger *zap.Logger,
) *DraftService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DraftService{
		returns:   returns,
		invoices:  invoices,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

// MaxQuantities prefills the return form for an invoice: one entry per line with
// the quantity still returnable (invoiced minus already returned).
func (s *DraftService) MaxQuantities(ctx context.Context, invoiceID uuid.UUID) ([]FormItem, error) {
	invoice, err := s.loadInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	items := make([]FormItem, 0, len(invoice.Lines))
	for _, line := range invoice.Lines {
		remaining, err := s.returnable(ctx, invoice.ID, line)
		if err != nil {
			return nil, err
		}
		items = append(items, FormItem{
			ItemID:      line.ItemID,
			ItemType:    line.ItemType,
			ItemName:    line.ItemName,
			Quantity:    decimal.Zero,
			MaxQuantity: remaining,
			UnitPrice:   line.UnitPrice,
		})
	}
	return items, nil
}

// CreateReturn validates the form and stores a new draft return.
// Quantities are checked again against the invoice so a stale form cannot over-return.
func (s *DraftService) CreateReturn(ctx context.Context, form ReturnForm) (*trade.Return, error) {
	if result := s.validator.ValidateReturnForm(ctx, form); !result.Valid {
		return nil, result.Err()
	}

	invoice, err := s.loadInvoice(ctx, *form.InvoiceID)
	if err != nil {
		return nil, err
	}

	returnType := form.ReturnType
	if returnType == "" {
		returnType = invoice.InvoiceType.ReturnType()
	}
	if returnType != invoice.InvoiceType.ReturnType() {
		return nil, shared.NewDomainError(shared.CodeValidationFailed,
			fmt.Sprintf("A %s cannot be raised against a %s invoice", returnType, invoice.InvoiceType))
	}

	date := form.Date
	if date.IsZero() {
		date = s.now()
	}

	r, err := trade.NewReturn(returnType, s.nextReturnNumber(returnType, date), date)
	if err != nil {
		return nil, err
	}
	if err := r.SetInvoice(invoice.ID, invoice.PartyID); err != nil {
		return nil, err
	}
	if err := r.SetNotes(form.Notes); err != nil {
		return nil, err
	}

	requested := make(map[uuid.UUID]decimal.Decimal)
	for _, selected := range form.SelectedItems() {
		line := invoice.FindLine(selected.ItemID)
		if line == nil {
			return nil, shared.NewDomainError(shared.CodeValidationFailed,
				fmt.Sprintf("Item %s is not on invoice %s", itemLabel(selected), invoice.InvoiceNumber))
		}
		remaining, err := s.returnable(ctx, invoice.ID, *line)
		if err != nil {
			return nil, err
		}
		requested[line.ItemID] = requested[line.ItemID].Add(selected.Quantity)
		if requested[line.ItemID].GreaterThan(remaining) {
			return nil, shared.NewDomainError(shared.CodeValidationFailed,
				fmt.Sprintf("Return quantity for item %s exceeds the returnable quantity (%s)", lineLabel(*line), remaining))
		}

		item, err := trade.NewReturnItem(line.ItemID, line.ItemType, line.ItemName, selected.Quantity, line.UnitPrice)
		if err != nil {
			return nil, err
		}
		if err := r.AddItem(item); err != nil {
			return nil, err
		}
	}

	if form.Amount != nil {
		if err := r.OverrideAmount(*form.Amount); err != nil {
			return nil, err
		}
	}

	if err := s.returns.Save(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to save return: %w", err)
	}

	s.logger.Info("draft return created",
		zap.String("return_id", r.ID.String()),
		zap.String("return_number", r.ReturnNumber),
		zap.String("return_type", r.ReturnType.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.Int("items_count", r.ItemCount()),
		zap.String("amount", r.Amount.String()),
	)
	return r, nil
}

func (s *DraftService) loadInvoice(ctx context.Context, id uuid.UUID) (*trade.Invoice, error) {
	invoice, err := s.invoices.FindInvoiceByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.WrapDomainError(shared.CodeNotFound, "The selected invoice does not exist", err)
		}
		return nil, fmt.Errorf("failed to load invoice %s: %w", id, err)
	}
	return invoice, nil
}

func (s *DraftService) returnable(ctx context.Context, invoiceID uuid.UUID, line trade.InvoiceLine) (decimal.Decimal, error) {
	returned, err := s.returns.SumReturnedQuantity(ctx, invoiceID, line.ItemID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum returned quantity of %s: %w", line.ItemID, err)
	}
	remaining := line.Quantity.Sub(returned)
	if remaining.IsNegative() {
		return decimal.Zero, nil
	}
	return remaining, nil
}

// nextReturnNumber builds numbers like SR-20260114-3F9A1C
func (s *DraftService) nextReturnNumber(returnType trade.ReturnType, date time.Time) string {
	prefix := "SR"
	if returnType == trade.ReturnTypePurchase {
		prefix = "PR"
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return fmt.Sprintf("%s-%s-%s", prefix, date.Format("20060102"), suffix)
}

func lineLabel(line trade.InvoiceLine) string {
	if line.ItemName != "" {
		return line.ItemName
	}
	return line.ItemID.String()
}
