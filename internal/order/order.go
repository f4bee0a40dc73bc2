// Package order holds the order-book's core entity types: the Order itself,
// the per-side comparators that establish price-time priority, and the
// Event union the matching engine emits.
package order

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// MarshalJSON renders a Side as its lowercase name rather than its
// underlying int, so the REST surface never leaks the enum's numbering.
func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the lowercase names produced by MarshalJSON.
func (s *Side) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "buy":
		*s = Buy
	case "sell":
		*s = Sell
	default:
		return fmt.Errorf("order: unknown side %q", str)
	}
	return nil
}

// Order is a single resting or aggressing order for the book's one ticker.
// Quantity and Price are strictly positive at construction time; partial
// fills replace an Order with a new value of smaller Quantity rather than
// mutating it in place (see WithQuantity).
type Order struct {
	ID        uuid.UUID       `json:"id"`
	Side      Side            `json:"side"`
	Timestamp time.Time       `json:"timestamp"`
	Quantity  uint32          `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// New mints a fresh order with a newly allocated id.
func New(side Side, ts time.Time, qty uint32, price decimal.Decimal) *Order {
	return &Order{
		ID:        uuid.New(),
		Side:      side,
		Timestamp: ts.UTC(),
		Quantity:  qty,
		Price:     price,
	}
}

// NewBuy mints a fresh buy order.
func NewBuy(ts time.Time, qty uint32, price decimal.Decimal) *Order {
	return New(Buy, ts, qty, price)
}

// NewSell mints a fresh sell order.
func NewSell(ts time.Time, qty uint32, price decimal.Decimal) *Order {
	return New(Sell, ts, qty, price)
}

// WithQuantity returns a copy of o with a reduced quantity, same id/ts/side/price.
// Used for the partial-fill leftover on the resting side.
func (o *Order) WithQuantity(qty uint32) *Order {
	cp := *o
	cp.Quantity = qty
	return &cp
}

// consumedPortion returns a synthetic order carrying o's identity but a
// quantity equal to qty, for recording the sweep-consumed slice of an
// aggressor in a Filled event.
func (o *Order) consumedPortion(qty uint32) *Order {
	return o.WithQuantity(qty)
}

// ConsumedPortion is the exported form of consumedPortion, for callers
// outside the package that need to record a partial-consumption Filled event
// (e.g. tests building expected event batches).
func (o *Order) ConsumedPortion(qty uint32) *Order {
	return o.consumedPortion(qty)
}

// LessSell is the sell-side total order: ascending price, then ascending
// timestamp, then id as a stable tiebreaker. Used as the btree Less function
// for the sell side.
func LessSell(a, b *Order) bool {
	if !a.Price.Equal(b.Price) {
		return a.Price.LessThan(b.Price)
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return lessID(a.ID, b.ID)
}

// LessBuy is the buy-side total order: descending price, then ascending
// timestamp, then id.
func LessBuy(a, b *Order) bool {
	if !a.Price.Equal(b.Price) {
		return a.Price.GreaterThan(b.Price)
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return lessID(a.ID, b.ID)
}

func lessID(a, b uuid.UUID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Crosses reports whether an aggressor at this side/price crosses the
// opposite side's resting head: a buy aggressor crosses a sell head at
// price <= aggressor price; a sell aggressor crosses a buy head at
// price >= aggressor price.
func Crosses(aggressorSide Side, aggressorPrice, headPrice decimal.Decimal) bool {
	switch aggressorSide {
	case Buy:
		return aggressorPrice.GreaterThanOrEqual(headPrice)
	case Sell:
		return aggressorPrice.LessThanOrEqual(headPrice)
	default:
		return false
	}
}
