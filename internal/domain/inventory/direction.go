package inventory

import "github.com/shopspring/decimal"

// Direction is the sign of a stock movement
type Direction string

const (
	// DirectionIn increases stock
	DirectionIn Direction = "in"
	// DirectionOut decreases stock
	DirectionOut Direction = "out"
)

// String returns the string representation of Direction
func (d Direction) String() string {
	return string(d)
}

// IsValid returns true for in or out
func (d Direction) IsValid() bool {
	return d == DirectionIn || d == DirectionOut
}

// IsDecrease returns true if the direction removes stock
func (d Direction) IsDecrease() bool {
	return d == DirectionOut
}

// Inverse returns the opposite direction
func (d Direction) Inverse() Direction {
	if d == DirectionIn {
		return DirectionOut
	}
	return DirectionIn
}

// Apply returns current moved by quantity in this direction
func (d Direction) Apply(current, quantity decimal.Decimal) decimal.Decimal {
	if d == DirectionOut {
		return current.Sub(quantity)
	}
	return current.Add(quantity)
}
