// Package engine implements the single-book matching state machine: one
// Process(command) -> []Event entry point, mutating the book and returning
// the events that describe what happened.
//
// An Engine owns one Book and drives matching as an iterative sweep of the
// opposite side rather than recursion; observable events are identical
// either way.
package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/0xledger/fenbook/internal/book"
	"github.com/0xledger/fenbook/internal/order"
)

// Engine is the sole owner of one ticker's book. It is driven by exactly one
// goroutine, the gateway's dispatch loop; Engine itself holds no locks
// because nothing else may touch it concurrently.
type Engine struct {
	book *book.Book

	// clock is sampled once per non-GetState command and reused for every
	// event that command emits. Defaults to time.Now().UTC but is
	// overridden in tests for determinism.
	clock func() time.Time

	// tsLast is the watermark updated at each mutating command, observable
	// only indirectly through event ordering.
	tsLast time.Time

	// version counts processed commands, for debug logging only.
	version uint64
}

// New creates an engine for ticker with the system clock.
func New(ticker string) *Engine {
	return &Engine{
		book:  book.New(ticker),
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the engine's time source, for deterministic tests.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// Ticker returns the instrument symbol this engine instance serves.
func (e *Engine) Ticker() string {
	return e.book.Ticker
}

// Process is the engine's single public operation: one command in, one
// event batch out, atomically.
func (e *Engine) Process(cmd Command) []order.Event {
	e.version++
	log.Debug().Str("ticker", e.book.Ticker).Uint64("version", e.version).Msgf("engine: processing %T", cmd)

	switch c := cmd.(type) {
	case BuyCommand:
		ts := e.tick()
		return e.processIncoming(order.NewBuy(ts, c.Quantity, c.Price))
	case SellCommand:
		ts := e.tick()
		return e.processIncoming(order.NewSell(ts, c.Quantity, c.Price))
	case CancelCommand:
		e.tick()
		events, _, _ := e.cancel(c.ID)
		return events
	case UpdateCommand:
		e.tick()
		return e.update(c.ID, c.NewQuantity, c.NewPrice)
	case GetStateCommand:
		return []order.Event{order.State(e.tsLast, e.book.Snapshot())}
	default:
		panic(fmt.Sprintf("engine: unhandled command type %T", cmd))
	}
}

// tick samples the clock once and records it as the watermark for the
// command currently being processed.
func (e *Engine) tick() time.Time {
	e.tsLast = e.clock()
	return e.tsLast
}

// processIncoming runs the full Buy/Sell matching procedure for a freshly
// minted order: emit Accepted for the original, then sweep the opposite
// side while it crosses, and emit a final Accepted only if a remainder
// ultimately rests.
func (e *Engine) processIncoming(incoming *order.Order) []order.Event {
	ts := incoming.Timestamp
	events := []order.Event{order.Accepted(ts, incoming)}

	remaining := incoming
	matched := false

	for {
		head, ok := e.book.OppositeHead(remaining.Side)
		if !ok || !order.Crosses(remaining.Side, remaining.Price, head.Price) {
			e.book.Insert(remaining)
			if matched {
				events = append(events, order.Accepted(ts, remaining))
			}
			return events
		}

		switch {
		case remaining.Quantity < head.Quantity:
			updatedHead := head.WithQuantity(head.Quantity - remaining.Quantity)
			e.book.Replace(head, updatedHead)
			events = append(events, order.Filled(ts, remaining, head))
			return events

		case remaining.Quantity == head.Quantity:
			e.book.RemoveHead(head)
			events = append(events, order.Filled(ts, remaining, head))
			return events

		default: // remaining.Quantity > head.Quantity
			e.book.RemoveHead(head)
			consumed := remaining.ConsumedPortion(head.Quantity)
			events = append(events, order.Filled(ts, consumed, head))
			matched = true
			remaining = remaining.WithQuantity(remaining.Quantity - head.Quantity)
		}
	}
}

// cancel removes id from whichever side it rests on. It returns the events,
// the side the order was found on, and whether it was found at all; Update
// needs the side to know where to re-insert after canceling.
func (e *Engine) cancel(id uuid.UUID) (events []order.Event, side order.Side, found bool) {
	o, side, found := e.book.Lookup(id)
	if !found {
		reason := fmt.Sprintf("Order %s not found in sell or buy side", id)
		log.Debug().Str("id", id.String()).Msg("cancel rejected: order not found")
		return []order.Event{order.Rejected(e.tsLast, reason)}, 0, false
	}
	e.book.Remove(o)
	return []order.Event{order.Canceled(e.tsLast, o)}, side, true
}

// update cancels id and re-inserts a fresh order with new quantity/price on
// the same side, driving the full matching procedure. The new order's
// fresh id means the caller must observe the Accepted event to learn it;
// the old id is terminal after a successful update.
func (e *Engine) update(id uuid.UUID, newQty uint32, newPrice decimal.Decimal) []order.Event {
	events, side, found := e.cancel(id)
	if !found {
		return events
	}
	incoming := order.New(side, e.tsLast, newQty, newPrice)
	return append(events, e.processIncoming(incoming)...)
}
