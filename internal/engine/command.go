package engine

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Command is the closed set of operations the engine accepts. Go has no
// tagged-union sum type, so Command is an interface with an unexported
// marker method; the set of implementations below is the complete set by
// construction.
type Command interface {
	isCommand()
}

// BuyCommand mints a fresh buy order at qty/price and runs it through
// matching.
type BuyCommand struct {
	Quantity uint32
	Price    decimal.Decimal
}

// SellCommand mints a fresh sell order at qty/price and runs it through
// matching.
type SellCommand struct {
	Quantity uint32
	Price    decimal.Decimal
}

// CancelCommand removes an existing order by id.
type CancelCommand struct {
	ID uuid.UUID
}

// UpdateCommand cancels ID and re-inserts a fresh order with new
// quantity/price on the same side, with a new id and fresh timestamp.
type UpdateCommand struct {
	ID          uuid.UUID
	NewQuantity uint32
	NewPrice    decimal.Decimal
}

// GetStateCommand requests a consistent snapshot of both sides. It does not
// mutate the book or advance the timestamp watermark.
type GetStateCommand struct{}

func (BuyCommand) isCommand()      {}
func (SellCommand) isCommand()     {}
func (CancelCommand) isCommand()   {}
func (UpdateCommand) isCommand()   {}
func (GetStateCommand) isCommand() {}
