package returns

import (
	"time"

	"github.com/erp/returns/internal/domain/inventory"
	"github.com/erp/returns/internal/domain/shared"
	"github.com/erp/returns/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ValidationResult is the go/no-go answer of a validation check
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Valid returns a passing result
func Valid() ValidationResult {
	return ValidationResult{Valid: true}
}

// Invalid returns a failing result with a domain error code
func Invalid(code, message string) ValidationResult {
	return ValidationResult{Valid: false, Code: code, Message: message}
}

// Err converts a failing result into a domain error, nil when valid
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	code := r.Code
	if code == "" {
		code = shared.CodeValidationFailed
	}
	return shared.NewDomainError(code, r.Message)
}

// ReturnForm is the submitted return form before a draft exists
type ReturnForm struct {
	InvoiceID  *uuid.UUID       `json:"invoice_id"`
	ReturnType trade.ReturnType `json:"return_type,omitempty"`
	Date       time.Time        `json:"date"`
	Notes      string           `json:"notes"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Items      []FormItem       `json:"items"`
}

// FormItem is one selectable invoice line on the return form
type FormItem struct {
	ItemID      uuid.UUID          `json:"item_id"`
	ItemType    inventory.ItemType `json:"item_type"`
	ItemName    string             `json:"item_name,omitempty"`
	Selected    bool               `json:"selected"`
	Quantity    decimal.Decimal    `json:"quantity"`
	MaxQuantity decimal.Decimal    `json:"max_quantity"`
	UnitPrice   decimal.Decimal    `json:"unit_price"`
}

// SelectedItems returns the selected items with a positive quantity
func (f ReturnForm) SelectedItems() []FormItem {
	selected := make([]FormItem, 0, len(f.Items))
	for _, item := range f.Items {
		if item.Selected && item.Quantity.IsPositive() {
			selected = append(selected, item)
		}
	}
	return selected
}

// BalanceDrift describes a cached balance that disagreed with the ledger
type BalanceDrift struct {
	PartyID  uuid.UUID       `json:"party_id"`
	Cached   decimal.Decimal `json:"cached"`
	Replayed decimal.Decimal `json:"replayed"`
	Missing  bool            `json:"missing"`
}

// PostingRepair describes a ledger posting added for a processed return
type PostingRepair struct {
	ReturnID uuid.UUID       `json:"return_id"`
	PartyID  uuid.UUID       `json:"party_id"`
	Action   trade.Action    `json:"action"`
	Amount   decimal.Decimal `json:"amount"`
}

// ReconciliationReport summarizes one reconciliation run
type ReconciliationReport struct {
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
	ReturnsChecked   int             `json:"returns_checked"`
	ReturnsSkipped   int             `json:"returns_skipped"`
	PartiesChecked   int             `json:"parties_checked"`
	PostingsRepaired []PostingRepair `json:"postings_repaired"`
	BalancesRepaired []BalanceDrift  `json:"balances_repaired"`
	ChainBreaks      int             `json:"chain_breaks"`
	Errors           []string        `json:"errors,omitempty"`
}
