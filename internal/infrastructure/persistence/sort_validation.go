package persistence

import (
	"slices"
	"strings"

	"gorm.io/gorm/clause"
)

// DefaultReturnSortField orders listings newest first
const DefaultReturnSortField = "created_at"

// returnSortColumns are the returns columns a listing may be ordered by
var returnSortColumns = []string{
	"id", "created_at", "updated_at", "return_number", "return_type",
	"date", "status", "amount", "party_id",
}

// ReturnOrder builds the ORDER BY column for a listing. field must name a
// whitelisted column exactly, anything else sorts by DefaultReturnSortField.
// dir is ascending only for "asc" in any case; the default is descending.
func ReturnOrder(field, dir string) clause.OrderByColumn {
	field = strings.TrimSpace(field)
	if !slices.Contains(returnSortColumns, field) {
		field = DefaultReturnSortField
	}
	return clause.OrderByColumn{
		Column: clause.Column{Name: field},
		Desc:   !strings.EqualFold(strings.TrimSpace(dir), "asc"),
	}
}
