package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReturnOrder_Direction(t *testing.T) {
	tests := []struct {
		input string
		desc  bool
	}{
		{"asc", false},
		{"ASC", false},
		{"  Asc ", false},
		{"desc", true},
		{"DESC", true},
		{"", true},
		{"sideways", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.desc, ReturnOrder("amount", tt.input).Desc)
		})
	}
}

func TestReturnOrder_Column(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"whitelisted column", "return_number", "return_number"},
		{"surrounding spaces", "  amount ", "amount"},
		{"empty falls back", "", DefaultReturnSortField},
		{"unknown column falls back", "notes", DefaultReturnSortField},
		{"case sensitive", "Status", DefaultReturnSortField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ReturnOrder(tt.input, "").Column.Name)
		})
	}
}

func TestReturnOrder_RejectsInjection(t *testing.T) {
	payloads := []string{
		"id; DROP TABLE returns;--",
		"id' OR '1'='1",
		"id\"; DROP TABLE returns;--",
		"id UNION SELECT * FROM ledger_entries",
		"id ORDER BY 1",
		"id, (SELECT amount FROM returns)",
		"CASE WHEN 1=1 THEN id ELSE status END",
		"id/**/;DROP TABLE returns",
		"id\n; DROP TABLE returns",
		"' OR ''='",
	}

	for _, payload := range payloads {
		t.Run(payload[:min(len(payload), 30)], func(t *testing.T) {
			order := ReturnOrder(payload, payload)
			assert.Equal(t, DefaultReturnSortField, order.Column.Name)
			assert.True(t, order.Desc)
		})
	}
}
