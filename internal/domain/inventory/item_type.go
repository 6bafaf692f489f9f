package inventory

import (
	"fmt"

	"github.com/erp/returns/internal/domain/shared"
)

// ItemType is the closed set of stock categories a return item can belong to.
// Each category is held by its own CategoryStore.
type ItemType string

const (
	ItemTypeRawMaterial       ItemType = "raw_material"
	ItemTypePackagingMaterial ItemType = "packaging_material"
	ItemTypeSemiFinished      ItemType = "semi_finished"
	ItemTypeFinishedProduct   ItemType = "finished_product"
)

// AllItemTypes returns every supported category in a stable order
func AllItemTypes() []ItemType {
	return []ItemType{
		ItemTypeRawMaterial,
		ItemTypePackagingMaterial,
		ItemTypeSemiFinished,
		ItemTypeFinishedProduct,
	}
}

// String returns the string representation of ItemType
func (t ItemType) String() string {
	return string(t)
}

// IsValid returns true if the item type is one of the four categories
func (t ItemType) IsValid() bool {
	switch t {
	case ItemTypeRawMaterial,
		ItemTypePackagingMaterial,
		ItemTypeSemiFinished,
		ItemTypeFinishedProduct:
		return true
	}
	return false
}

// ParseItemType converts a raw string into an ItemType
func ParseItemType(s string) (ItemType, error) {
	t := ItemType(s)
	if !t.IsValid() {
		return "", shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Unknown item type: %q", s))
	}
	return t, nil
}
