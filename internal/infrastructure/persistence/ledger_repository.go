package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/returns/internal/domain/finance"
	"github.com/erp/returns/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedgerRepository implements finance.LedgerStore using GORM
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// AppendEntry inserts a ledger entry
func (r *GormLedgerRepository) AppendEntry(ctx context.Context, entry *finance.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(models.LedgerEntryModelFromDomain(entry)).Error
}

// GetPartyBalance returns the cached balance, or nil when none was ever written
func (r *GormLedgerRepository) GetPartyBalance(ctx context.Context, partyID uuid.UUID) (*finance.PartyBalance, error) {
	var model models.PartyBalanceModel
	err := r.db.WithContext(ctx).Where("party_id = ? AND has_balance = ?", partyID, true).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// SetPartyBalance creates or overwrites the cached balance
func (r *GormLedgerRepository) SetPartyBalance(ctx context.Context, partyID uuid.UUID, balance decimal.Decimal, at time.Time) error {
	model := &models.PartyBalanceModel{
		PartyID:     partyID,
		Balance:     balance,
		HasBalance:  true,
		LastUpdated: at,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "party_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance", "has_balance", "last_updated"}),
	}).Create(model).Error
}

// CountEntries returns how many entries a party has
func (r *GormLedgerRepository) CountEntries(ctx context.Context, partyID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.LedgerEntryModel{}).Where("party_id = ?", partyID).Count(&count).Error
	return count, err
}

// FindEntriesByParty returns a party's entries in sequence order
func (r *GormLedgerRepository) FindEntriesByParty(ctx context.Context, partyID uuid.UUID) ([]finance.LedgerEntry, error) {
	return r.findEntries(ctx, "party_id = ?", partyID)
}

// FindEntriesByTransaction returns the entries posted for a transaction in insertion order
func (r *GormLedgerRepository) FindEntriesByTransaction(ctx context.Context, transactionID uuid.UUID) ([]finance.LedgerEntry, error) {
	return r.findEntries(ctx, "transaction_id = ?", transactionID)
}

func (r *GormLedgerRepository) findEntries(ctx context.Context, query string, arg any) ([]finance.LedgerEntry, error) {
	var rows []models.LedgerEntryModel
	if err := r.db.WithContext(ctx).Where(query, arg).Order("sequence ASC, created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]finance.LedgerEntry, len(rows))
	for i := range rows {
		result[i] = rows[i].ToDomain()
	}
	return result, nil
}

// ListPartyIDs returns every party with entries or a cached balance
func (r *GormLedgerRepository) ListPartyIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Raw(
		`SELECT party_id FROM ledger_entries
		 UNION
		 SELECT party_id FROM party_balances WHERE has_balance = ?
		 ORDER BY party_id`, true,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// WithPartyLock runs fn in a transaction holding a row lock on the party's balance.
// The balance row is created first if the party has none, so the lock always has a target.
func (r *GormLedgerRepository) WithPartyLock(ctx context.Context, partyID uuid.UUID, fn func(ctx context.Context, store finance.LedgerStore) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		placeholder := &models.PartyBalanceModel{
			PartyID:     partyID,
			Balance:     decimal.Zero,
			LastUpdated: time.Now(),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "party_id"}},
			DoNothing: true,
		}).Create(placeholder).Error; err != nil {
			return err
		}

		var locked models.PartyBalanceModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&locked, "party_id = ?", partyID).Error; err != nil {
			return err
		}

		return fn(ctx, NewGormLedgerRepository(tx))
	})
}
