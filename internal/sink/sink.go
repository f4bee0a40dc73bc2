// Package sink durably records the events a matching engine emits. An
// engine's in-memory book is reconstructible from nothing but its event
// log, so commit failures are treated as unrecoverable: a process that
// kept serving orders without a durable record of what it did would be
// lying to every client asking for state afterward.
package sink

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/0xledger/fenbook/internal/order"
)

// Sink persists a batch of events produced by a single command, ticker by
// ticker.
type Sink interface {
	Commit(ctx context.Context, ticker string, events []order.Event) error
	Close() error
}

// Filter drops events that carry nothing worth persisting: State is a
// read-only projection of already-persisted facts, and Rejected describes
// a command that never touched the book.
func Filter(events []order.Event) []order.Event {
	out := make([]order.Event, 0, len(events))
	for _, ev := range events {
		switch ev.Kind {
		case order.EventState, order.EventRejected:
			continue
		default:
			out = append(out, ev)
		}
	}
	return out
}

// fatalExit lets tests override the process-terminating side effect of
// Fatal without actually killing the test binary.
var fatalExit = func(err error) {
	log.Fatal().Err(err).Msg("sink: commit failed, exiting")
	os.Exit(1)
}

// Fatal reports an unrecoverable persistence failure and terminates the
// process. There is no retry path: by the time Fatal is called the engine
// has already mutated its in-memory book past the point the caller can
// roll back to.
func Fatal(err error) {
	fatalExit(err)
}

// SetFatalExitForTesting swaps out Fatal's process-terminating side effect
// for fn, returning a function that restores the previous behavior. Tests
// exercising commit-failure handling call this so Fatal can be observed
// without killing the test binary.
func SetFatalExitForTesting(fn func(error)) (restore func()) {
	prev := fatalExit
	fatalExit = fn
	return func() { fatalExit = prev }
}
