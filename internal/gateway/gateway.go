// Package gateway funnels concurrent command submissions down to the one
// goroutine allowed to touch an engine.Engine, and relays each command's
// event batch back to its submitter once the events have been durably
// recorded.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"github.com/0xledger/fenbook/internal/engine"
	"github.com/0xledger/fenbook/internal/order"
	"github.com/0xledger/fenbook/internal/sink"
)

// ErrClosed is returned by Submit once the gateway's dispatch loop has
// stopped accepting new work.
var ErrClosed = errors.New("gateway: closed")

// request couples a command with the one-shot channel its result is
// delivered on.
type request struct {
	cmd   engine.Command
	reply chan result
}

type result struct {
	events []order.Event
	err    error
}

// Gateway is the single entry point multiple producers submit commands
// through. Exactly one goroutine, run by Start, drains the queue and
// drives the engine; Gateway itself holds no book state.
type Gateway struct {
	engine  *engine.Engine
	sink    sink.Sink
	queue   chan request
	closing chan struct{}
}

// New builds a gateway over e, persisting committed events through s.
// buffer sizes the command queue; commands submitted once it is full block
// until a slot frees up.
func New(e *engine.Engine, s sink.Sink, buffer int) *Gateway {
	return &Gateway{
		engine:  e,
		sink:    s,
		queue:   make(chan request, buffer),
		closing: make(chan struct{}),
	}
}

// Submit enqueues cmd and blocks until the engine has processed it and its
// non-rejected events have been committed to the sink, or ctx is canceled.
func (g *Gateway) Submit(ctx context.Context, cmd engine.Command) ([]order.Event, error) {
	select {
	case <-g.closing:
		return nil, ErrClosed
	default:
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := request{cmd: cmd, reply: make(chan result, 1)}

	select {
	case g.queue <- req:
	case <-g.closing:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-req.reply:
		return res.events, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Start launches the dispatch loop under t and returns immediately. The loop
// processes exactly one command at a time until t starts dying, then drains
// the queue and stops.
func (g *Gateway) Start(t *tomb.Tomb) {
	t.Go(func() error {
		return g.run(t)
	})
}

func (g *Gateway) run(t *tomb.Tomb) error {
	log.Info().Str("ticker", g.engine.Ticker()).Msg("gateway dispatch loop starting")

	for {
		select {
		case <-t.Dying():
			log.Info().Str("ticker", g.engine.Ticker()).Msg("gateway draining queue before stopping")
			// Stop accepting new submissions first, then drain whatever is
			// already queued — a command accepted into the queue must still
			// be applied even once shutdown has begun.
			close(g.closing)
			g.drain(t.Context(nil))
			log.Info().Str("ticker", g.engine.Ticker()).Msg("gateway dispatch loop stopped")
			return nil
		case req := <-g.queue:
			g.dispatch(t.Context(nil), req)
		}
	}
}

// drain processes every command already sitting in the queue at shutdown
// time, without blocking for new arrivals.
func (g *Gateway) drain(ctx context.Context) {
	for {
		select {
		case req := <-g.queue:
			g.dispatch(ctx, req)
		default:
			return
		}
	}
}

// dispatch runs one command through the engine and, unless it is a
// read-only GetState, commits the resulting events before replying. A
// commit failure is treated as fatal: the process cannot continue serving
// state that outlives its own durable record of how it got there.
func (g *Gateway) dispatch(ctx context.Context, req request) {
	events := g.engine.Process(req.cmd)

	if _, isGetState := req.cmd.(engine.GetStateCommand); !isGetState {
		toCommit := sink.Filter(events)
		if len(toCommit) > 0 {
			if err := g.sink.Commit(ctx, g.engine.Ticker(), toCommit); err != nil {
				sink.Fatal(fmt.Errorf("gateway: commit failed for ticker %s: %w", g.engine.Ticker(), err))
				// Fatal never returns in production. It only returns here
				// under a test override, and in that case the caller must
				// still see no reply, matching what would happen if the
				// process had actually exited.
				return
			}
		}
	}

	g.reply(req, result{events: events})
}

func (g *Gateway) reply(req request, res result) {
	select {
	case req.reply <- res:
	default:
		log.Warn().Msg("gateway: reply dropped, submitter already gone")
	}
}
