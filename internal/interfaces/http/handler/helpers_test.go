package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/returns/internal/application/returns"
	"github.com/erp/returns/internal/domain/inventory"
	"github.com/erp/returns/internal/domain/trade"
	"github.com/erp/returns/internal/infrastructure/logger"
	"github.com/erp/returns/internal/infrastructure/persistence"
	"github.com/erp/returns/internal/infrastructure/persistence/models"
	"github.com/erp/returns/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// testEnv wires the real services over an in-memory database
type testEnv struct {
	db     *gorm.DB
	ledger *persistence.GormLedgerRepository
	engine *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, persistence.AutoMigrate(db))

	returnRepo := persistence.NewGormReturnRepository(db)
	invoices := persistence.NewGormInvoiceRepository(db)
	ledger := persistence.NewGormLedgerRepository(db)
	movements := persistence.NewGormMovementRepository(db)

	log := zap.NewNop()
	adjuster := returns.NewInventoryAdjuster(persistence.NewGormStockStores(db), movements, log)
	validator := returns.NewValidationService(returnRepo, invoices, adjuster, log)
	bridge := returns.NewFinancialBridge(ledger, log)
	processing := returns.NewProcessingService(returnRepo, validator, adjuster, bridge, log)
	drafts := returns.NewDraftService(returnRepo, invoices, validator, log)
	recon := returns.NewReconciliationService(returnRepo, ledger, bridge, log, nil)

	rh := NewReturnHandler(drafts, validator, processing, returnRepo, movements)
	ph := NewPartyHandler(ledger)
	reconH := NewReconciliationHandler(recon, time.Minute)

	engine := gin.New()
	engine.Use(logger.RequestID())
	engine.GET("/returns", rh.List)
	engine.POST("/returns", rh.Create)
	engine.POST("/returns/validate", rh.ValidateForm)
	engine.GET("/returns/:id", rh.Get)
	engine.DELETE("/returns/:id", rh.Delete)
	engine.GET("/returns/:id/checks/:action", rh.Check)
	engine.POST("/returns/:id/confirm", rh.Confirm)
	engine.POST("/returns/:id/cancel", rh.Cancel)
	engine.GET("/returns/:id/movements", rh.Movements)
	engine.GET("/invoices/:id/return-form", rh.ReturnForm)
	engine.GET("/parties/:id/ledger", ph.Ledger)
	engine.POST("/reconciliation/run", reconH.Run)

	return &testEnv{db: db, ledger: ledger, engine: engine}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *testEnv) seedStock(t *testing.T, itemType inventory.ItemType, qty string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, e.db.Table(models.StockTables[itemType]).Create(&models.StockItemModel{
		ID:        id,
		Name:      "item " + id.String()[:8],
		Quantity:  decimal.RequireFromString(qty),
		UpdatedAt: time.Now(),
	}).Error)
	return id
}

func (e *testEnv) seedInvoice(t *testing.T, invoiceType trade.InvoiceType, partyID *uuid.UUID, lines ...models.InvoiceLineModel) uuid.UUID {
	t.Helper()
	inv := &models.InvoiceModel{
		BaseModel:     models.BaseModel{ID: uuid.New(), CreatedAt: time.Now(), UpdatedAt: time.Now()},
		InvoiceNumber: "INV-" + uuid.NewString()[:6],
		InvoiceType:   invoiceType,
		PartyID:       partyID,
		Date:          time.Now(),
	}
	require.NoError(t, e.db.Create(inv).Error)
	for i := range lines {
		lines[i].ID = uuid.New()
		lines[i].InvoiceID = inv.ID
	}
	if len(lines) > 0 {
		require.NoError(t, e.db.Create(&lines).Error)
	}
	return inv.ID
}

// apiResponse is the response envelope with the payload left raw
type apiResponse = APIResponse[json.RawMessage]

func decode(t *testing.T, w *httptest.ResponseRecorder, data any) apiResponse {
	t.Helper()
	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	if data != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp
}

func requireError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) *dto.ErrorInfo {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	resp := decode(t, w, nil)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	require.Equal(t, code, resp.Error.Code)
	return resp.Error
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// formFor builds a create request selecting qty of every invoice line
func formFor(invoiceID uuid.UUID, items []returns.FormItem, qty string) ReturnFormRequest {
	req := ReturnFormRequest{InvoiceID: invoiceID.String()}
	for _, item := range items {
		req.Items = append(req.Items, ReturnFormItemRequest{
			ItemID:      item.ItemID.String(),
			ItemType:    item.ItemType.String(),
			ItemName:    item.ItemName,
			Selected:    true,
			Quantity:    dec(qty),
			MaxQuantity: item.MaxQuantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return req
}

func returnForm(t *testing.T, e *testEnv, invoiceID uuid.UUID) []returns.FormItem {
	t.Helper()
	w := e.do(t, http.MethodGet, "/invoices/"+invoiceID.String()+"/return-form", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var form ReturnFormResponse
	decode(t, w, &form)
	return form.Items
}

func createReturn(t *testing.T, e *testEnv, req ReturnFormRequest) ReturnResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, "/returns", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var r ReturnResponse
	decode(t, w, &r)
	return r
}
