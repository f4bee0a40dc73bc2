// Package book holds the order book's core data structures: one ordered
// collection per side plus an id index per side.
//
// Each side is a github.com/tidwall/btree.BTreeG[*order.Order], comparing
// individual orders directly via the per-side total order from
// internal/order.
package book

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tidwall/btree"

	"github.com/0xledger/fenbook/internal/order"
)

// Book is the per-ticker order book: two ordered sides plus their id
// indices. Book is not safe for concurrent use; the engine is its sole
// owner and mutates it only from its single dispatch goroutine.
type Book struct {
	Ticker string

	buys  *btree.BTreeG[*order.Order]
	sells *btree.BTreeG[*order.Order]

	buyIndex  map[uuid.UUID]*order.Order
	sellIndex map[uuid.UUID]*order.Order
}

// New creates an empty book for the given ticker.
func New(ticker string) *Book {
	return &Book{
		Ticker:    ticker,
		buys:      btree.NewBTreeG(order.LessBuy),
		sells:     btree.NewBTreeG(order.LessSell),
		buyIndex:  make(map[uuid.UUID]*order.Order),
		sellIndex: make(map[uuid.UUID]*order.Order),
	}
}

// side returns the ordered collection and index for s.
func (b *Book) side(s order.Side) (*btree.BTreeG[*order.Order], map[uuid.UUID]*order.Order) {
	if s == order.Buy {
		return b.buys, b.buyIndex
	}
	return b.sells, b.sellIndex
}

// opposite returns the ordered collection and index for the side opposite s.
func (b *Book) opposite(s order.Side) (*btree.BTreeG[*order.Order], map[uuid.UUID]*order.Order) {
	if s == order.Buy {
		return b.sells, b.sellIndex
	}
	return b.buys, b.buyIndex
}

// Head returns the best resting order on s (the ordered minimum by the
// side's comparator), or false if s is empty.
func (b *Book) Head(s order.Side) (*order.Order, bool) {
	tree, _ := b.side(s)
	return tree.Min()
}

// OppositeHead returns the best resting order on the side opposite s.
func (b *Book) OppositeHead(s order.Side) (*order.Order, bool) {
	tree, _ := b.opposite(s)
	return tree.Min()
}

// Insert adds o to its own side's collection and index.
func (b *Book) Insert(o *order.Order) {
	tree, index := b.side(o.Side)
	tree.Set(o)
	index[o.ID] = o
}

// Replace swaps an existing resting order for a new value with the same
// id/ts/side/price but a reduced quantity (the partial-fill leftover case).
func (b *Book) Replace(old, updated *order.Order) {
	tree, index := b.side(old.Side)
	tree.Delete(old)
	tree.Set(updated)
	index[updated.ID] = updated
}

// RemoveHead removes o (expected to be the side's current head) from its
// side's collection and index.
func (b *Book) RemoveHead(o *order.Order) {
	tree, index := b.side(o.Side)
	tree.Delete(o)
	delete(index, o.ID)
}

// ErrOnBothSides signals a fatal invariant violation: an id was found
// indexed on both the buy and sell side simultaneously. This can only
// happen if the engine itself has a bug; it is never a reachable outcome
// of well-formed commands.
var ErrOnBothSides = errors.New("order id present on both sides of the book")

// Lookup finds id on either side. It returns the order and the side it was
// found on if present on exactly one side, or panics if present on both.
func (b *Book) Lookup(id uuid.UUID) (o *order.Order, side order.Side, found bool) {
	buyOrder, onBuy := b.buyIndex[id]
	sellOrder, onSell := b.sellIndex[id]
	switch {
	case onBuy && onSell:
		panic(fmt.Errorf("%w: id=%s", ErrOnBothSides, id))
	case onBuy:
		return buyOrder, order.Buy, true
	case onSell:
		return sellOrder, order.Sell, true
	default:
		return nil, 0, false
	}
}

// Remove deletes id from whichever side it's indexed on. The caller must
// already know the side (normally from a prior Lookup).
func (b *Book) Remove(o *order.Order) {
	b.RemoveHead(o)
}

// Snapshot returns a consistent copy of both sides in priority order, for
// the GetState command.
func (b *Book) Snapshot() order.StateSnapshot {
	return order.StateSnapshot{
		Buy:  append([]*order.Order(nil), b.buys.Items()...),
		Sell: append([]*order.Order(nil), b.sells.Items()...),
	}
}

// CheckInvariants verifies index/side consistency, exclusivity, ordering,
// and absence of crossing. It is not called on any production code path;
// the engine maintains these invariants by construction, but tests use it
// as a cheap correctness oracle.
func (b *Book) CheckInvariants() error {
	if len(b.buyIndex) != b.buys.Len() {
		return fmt.Errorf("buy index size %d != buy side size %d", len(b.buyIndex), b.buys.Len())
	}
	if len(b.sellIndex) != b.sells.Len() {
		return fmt.Errorf("sell index size %d != sell side size %d", len(b.sellIndex), b.sells.Len())
	}
	for id, o := range b.buyIndex {
		if _, onSell := b.sellIndex[id]; onSell {
			return fmt.Errorf("%w: id=%s", ErrOnBothSides, id)
		}
		if o.ID != id {
			return fmt.Errorf("buy index key %s does not match order id %s", id, o.ID)
		}
	}
	for id, o := range b.sellIndex {
		if o.ID != id {
			return fmt.Errorf("sell index key %s does not match order id %s", id, o.ID)
		}
	}
	if bestBuy, ok := b.Head(order.Buy); ok {
		if bestSell, ok := b.Head(order.Sell); ok && bestBuy.Price.GreaterThanOrEqual(bestSell.Price) {
			return fmt.Errorf("crossing book: best buy %s >= best sell %s", bestBuy.Price, bestSell.Price)
		}
	}
	prev := map[order.Side]*order.Order{}
	for _, o := range b.buys.Items() {
		if p, ok := prev[order.Buy]; ok && p.Price.Equal(o.Price) && o.Timestamp.Before(p.Timestamp) {
			return fmt.Errorf("buy side time priority violated at price %s", o.Price)
		}
		prev[order.Buy] = o
	}
	for _, o := range b.sells.Items() {
		if p, ok := prev[order.Sell]; ok && p.Price.Equal(o.Price) && o.Timestamp.Before(p.Timestamp) {
			return fmt.Errorf("sell side time priority violated at price %s", o.Price)
		}
		prev[order.Sell] = o
	}
	return nil
}
