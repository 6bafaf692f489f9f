package returns

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/erp/returns/internal/domain/finance"
	"github.com/erp/returns/internal/domain/inventory"
	"github.com/erp/returns/internal/domain/shared"
	"github.com/erp/returns/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memReturnRepository is an in-memory ReturnRepository with conditional status writes
type memReturnRepository struct {
	mu      sync.Mutex
	returns map[uuid.UUID]*trade.Return

	// failStatusTo makes UpdateStatus fail when writing the given target status
	failStatusTo map[trade.ReturnStatus]error
	// afterUpdate runs after every successful status write
	afterUpdate func()
	findErr     error
}

func newMemReturnRepository() *memReturnRepository {
	return &memReturnRepository{
		returns:      make(map[uuid.UUID]*trade.Return),
		failStatusTo: make(map[trade.ReturnStatus]error),
	}
}

func copyReturn(r *trade.Return) *trade.Return {
	c := *r
	c.ClearEvents()
	c.Items = append([]trade.ReturnItem(nil), r.Items...)
	if r.PartyID != nil {
		id := *r.PartyID
		c.PartyID = &id
	}
	if r.InvoiceID != nil {
		id := *r.InvoiceID
		c.InvoiceID = &id
	}
	return &c
}

func (m *memReturnRepository) FindByID(_ context.Context, id uuid.UUID) (*trade.Return, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	r, ok := m.returns[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return copyReturn(r), nil
}

func (m *memReturnRepository) Save(_ context.Context, r *trade.Return) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returns[r.ID] = copyReturn(r)
	return nil
}

func (m *memReturnRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to trade.ReturnStatus, expectedVersion int) error {
	m.mu.Lock()
	if err := m.failStatusTo[to]; err != nil {
		m.mu.Unlock()
		return err
	}
	r, ok := m.returns[id]
	if !ok {
		m.mu.Unlock()
		return shared.ErrNotFound
	}
	if r.Status != from || r.Version != expectedVersion {
		m.mu.Unlock()
		return shared.ErrAlreadyProcessed
	}
	r.Status = to
	r.Version++
	r.UpdatedAt = time.Now()
	hook := m.afterUpdate
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (m *memReturnRepository) DeleteDraft(_ context.Context, id uuid.UUID, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.returns[id]
	if !ok {
		return shared.ErrNotFound
	}
	if !r.IsDraft() || r.Version != expectedVersion {
		return shared.ErrAlreadyProcessed
	}
	delete(m.returns, id)
	return nil
}

func (m *memReturnRepository) FindWithPartyByStatus(_ context.Context, statuses ...trade.ReturnStatus) ([]trade.Return, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]trade.Return, 0)
	for _, r := range m.returns {
		if !r.HasParty() {
			continue
		}
		for _, s := range statuses {
			if r.Status == s {
				result = append(result, *copyReturn(r))
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ReturnNumber < result[j].ReturnNumber })
	return result, nil
}

func (m *memReturnRepository) SumReturnedQuantity(_ context.Context, invoiceID, itemID uuid.UUID) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, r := range m.returns {
		if r.InvoiceID == nil || *r.InvoiceID != invoiceID || r.IsCancelled() {
			continue
		}
		for _, item := range r.Items {
			if item.ItemID == itemID {
				total = total.Add(item.Quantity)
			}
		}
	}
	return total, nil
}

func (m *memReturnRepository) status(id uuid.UUID) trade.ReturnStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.returns[id].Status
}

// memCategoryStore is an in-memory CategoryStore
type memCategoryStore struct {
	mu         sync.Mutex
	quantities map[uuid.UUID]decimal.Decimal

	// casHook may fail a compare-and-swap for an item before it is applied
	casHook func(itemID uuid.UUID, next decimal.Decimal) error
	// conflicts makes the next n compare-and-swaps lose without writing
	conflicts int
	casCalls  int
}

func newMemCategoryStore() *memCategoryStore {
	return &memCategoryStore{quantities: make(map[uuid.UUID]decimal.Decimal)}
}

func (s *memCategoryStore) put(itemID uuid.UUID, qty string) {
	s.quantities[itemID] = decimal.RequireFromString(qty)
}

func (s *memCategoryStore) get(itemID uuid.UUID) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quantities[itemID]
}

func (s *memCategoryStore) GetQuantity(ctx context.Context, itemID uuid.UUID) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quantities[itemID]
	if !ok {
		return decimal.Zero, shared.ErrNotFound
	}
	return q, nil
}

func (s *memCategoryStore) SetQuantity(_ context.Context, itemID uuid.UUID, quantity decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quantities[itemID] = quantity
	return nil
}

func (s *memCategoryStore) CompareAndSetQuantity(ctx context.Context, itemID uuid.UUID, expected, next decimal.Decimal) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.casCalls++
	if s.casHook != nil {
		if err := s.casHook(itemID, next); err != nil {
			return false, err
		}
	}
	if s.conflicts > 0 {
		s.conflicts--
		return false, nil
	}
	current, ok := s.quantities[itemID]
	if !ok {
		return false, shared.ErrNotFound
	}
	if !current.Equal(expected) {
		return false, nil
	}
	s.quantities[itemID] = next
	return true, nil
}

// memMovements records movements in order
type memMovements struct {
	mu        sync.Mutex
	movements []inventory.Movement
	err       error
}

func (m *memMovements) Append(_ context.Context, movement *inventory.Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.movements = append(m.movements, *movement)
	return nil
}

func (m *memMovements) all() []inventory.Movement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]inventory.Movement(nil), m.movements...)
}

// memLedger is an in-memory LedgerStore; WithPartyLock is a single global lock
type memLedger struct {
	lock     sync.Mutex
	mu       sync.Mutex
	entries  []finance.LedgerEntry
	balances map[uuid.UUID]*finance.PartyBalance

	appendErr error
}

func newMemLedger() *memLedger {
	return &memLedger{balances: make(map[uuid.UUID]*finance.PartyBalance)}
}

func (l *memLedger) AppendEntry(_ context.Context, entry *finance.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appendErr != nil {
		return l.appendErr
	}
	for _, e := range l.entries {
		if e.TransactionID == entry.TransactionID && e.TransactionType == entry.TransactionType {
			return errors.New("duplicate posting")
		}
	}
	l.entries = append(l.entries, *entry)
	return nil
}

func (l *memLedger) GetPartyBalance(_ context.Context, partyID uuid.UUID) (*finance.PartyBalance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.balances[partyID]
	if !ok {
		return nil, nil
	}
	c := *b
	return &c, nil
}

func (l *memLedger) SetPartyBalance(_ context.Context, partyID uuid.UUID, balance decimal.Decimal, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[partyID] = &finance.PartyBalance{PartyID: partyID, Balance: balance, LastUpdated: at}
	return nil
}

func (l *memLedger) CountEntries(_ context.Context, partyID uuid.UUID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for _, e := range l.entries {
		if e.PartyID == partyID {
			n++
		}
	}
	return n, nil
}

func (l *memLedger) FindEntriesByParty(_ context.Context, partyID uuid.UUID) ([]finance.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]finance.LedgerEntry, 0)
	for _, e := range l.entries {
		if e.PartyID == partyID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (l *memLedger) FindEntriesByTransaction(_ context.Context, transactionID uuid.UUID) ([]finance.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]finance.LedgerEntry, 0)
	for _, e := range l.entries {
		if e.TransactionID == transactionID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (l *memLedger) ListPartyIDs(_ context.Context) ([]uuid.UUID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	ids := make([]uuid.UUID, 0)
	for _, e := range l.entries {
		if !seen[e.PartyID] {
			seen[e.PartyID] = true
			ids = append(ids, e.PartyID)
		}
	}
	for id := range l.balances {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (l *memLedger) WithPartyLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context, store finance.LedgerStore) error) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	return fn(ctx, l)
}

func (l *memLedger) balance(partyID uuid.UUID) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.balances[partyID]; ok {
		return b.Balance
	}
	return decimal.Zero
}

func (l *memLedger) all() []finance.LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]finance.LedgerEntry(nil), l.entries...)
}

// memInvoices is an in-memory InvoiceReader
type memInvoices map[uuid.UUID]*trade.Invoice

func (m memInvoices) FindInvoiceByID(_ context.Context, id uuid.UUID) (*trade.Invoice, error) {
	inv, ok := m[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return inv, nil
}

// recordingMetrics captures measurements for assertions
type recordingMetrics struct {
	mu            sync.Mutex
	outcomes      []string
	compensations map[string]bool
	auditFailures int
	repairs       int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{compensations: make(map[string]bool)}
}

func (m *recordingMetrics) RecordTransition(_ context.Context, _ trade.Action, _ trade.ReturnType, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *recordingMetrics) RecordCompensation(_ context.Context, step string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compensations[step] = ok
}

func (m *recordingMetrics) RecordAuditWriteFailure(context.Context, inventory.ItemType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditFailures++
}

func (m *recordingMetrics) RecordBalanceRepairs(_ context.Context, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repairs += n
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// MockTransitionLocker is a mock implementation of TransitionLocker
type MockTransitionLocker struct {
	mock.Mock
}

func (m *MockTransitionLocker) Acquire(ctx context.Context, returnID uuid.UUID) (func(), error) {
	args := m.Called(ctx, returnID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

// memLocker is an in-process TransitionLocker that never waits
type memLocker struct {
	mu   sync.Mutex
	held map[uuid.UUID]bool
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[uuid.UUID]bool)}
}

func (l *memLocker) Acquire(_ context.Context, returnID uuid.UUID) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[returnID] {
		return nil, shared.ErrAlreadyProcessed
	}
	l.held[returnID] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, returnID)
	}, nil
}

// fixture wires every service over in-memory stores
type fixture struct {
	repo       *memReturnRepository
	invoices   memInvoices
	stores     map[inventory.ItemType]*memCategoryStore
	movements  *memMovements
	ledger     *memLedger
	metrics    *recordingMetrics
	adjuster   *InventoryAdjuster
	validator  *ValidationService
	bridge     *FinancialBridge
	processing *ProcessingService
	drafts     *DraftService
	recon      *ReconciliationService
}

func newFixture() *fixture {
	f := &fixture{
		repo:      newMemReturnRepository(),
		invoices:  make(memInvoices),
		stores:    make(map[inventory.ItemType]*memCategoryStore),
		movements: &memMovements{},
		ledger:    newMemLedger(),
		metrics:   newRecordingMetrics(),
	}
	stores := make(inventory.Stores)
	for _, t := range inventory.AllItemTypes() {
		s := newMemCategoryStore()
		f.stores[t] = s
		stores[t] = s
	}

	f.adjuster = NewInventoryAdjuster(stores, f.movements, nil)
	f.adjuster.SetMetrics(f.metrics)
	f.validator = NewValidationService(f.repo, f.invoices, f.adjuster, nil)
	f.bridge = NewFinancialBridge(f.ledger, nil)
	f.processing = NewProcessingService(f.repo, f.validator, f.adjuster, f.bridge, nil)
	f.processing.SetMetrics(f.metrics)
	f.drafts = NewDraftService(f.repo, f.invoices, f.validator, nil)
	f.recon = NewReconciliationService(f.repo, f.ledger, f.bridge, nil, f.metrics)
	f.recon.SetSettleWindow(0)
	return f
}

type itemSpec struct {
	itemType inventory.ItemType
	qty      string
	price    string
	stock    string
}

// draft stores a draft return with one item per itemSpec and seeds its stock
func (f *fixture) draft(t *testing.T, returnType trade.ReturnType, partyID *uuid.UUID, specs ...itemSpec) *trade.Return {
	t.Helper()
	r, err := trade.NewReturn(returnType, "RT-"+uuid.New().String()[:8], time.Now())
	require.NoError(t, err)
	require.NoError(t, r.SetInvoice(uuid.New(), partyID))
	for _, s := range specs {
		itemID := uuid.New()
		f.stores[s.itemType].put(itemID, s.stock)
		item, err := trade.NewReturnItem(itemID, s.itemType, "item", decimal.RequireFromString(s.qty), decimal.RequireFromString(s.price))
		require.NoError(t, err)
		require.NoError(t, r.AddItem(item))
	}
	require.NoError(t, f.repo.Save(context.Background(), r))
	return r
}

func (f *fixture) stock(item trade.ReturnItem) decimal.Decimal {
	return f.stores[item.ItemType].get(item.ItemID)
}

func partyPtr() *uuid.UUID {
	id := uuid.New()
	return &id
}
