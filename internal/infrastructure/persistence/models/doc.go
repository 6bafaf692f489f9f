// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns.
//
// Structure:
//   - base.go: BaseModel and AggregateModel
//   - returns.go: returns and return_items
//   - invoice.go: read-only invoices and invoice_lines
//   - stock.go: the four stock category tables and stock_movements
//   - ledger.go: ledger_entries and party_balances
package models
