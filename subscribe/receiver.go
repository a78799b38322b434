package subscribe

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// ErrSubscriptionDone is returned by Receiver.Next once the event sequence is
// exhausted.
var ErrSubscriptionDone = errors.New("subscription done")

// Receiver is a pull based view of a subscription. Every source goroutine
// pushes into one unbounded FIFO queue, which preserves per-source order and
// never drops events.
type Receiver struct {
	mux *multiplexer

	queue *fn.ConcurrentQueue[Event]

	// stopQueue stops the queue once. The forwarder calls it after the
	// last event, Close calls it otherwise.
	stopQueue func()

	// updates is closed after the last source's terminal event has been
	// delivered, or on Close.
	updates chan Event

	// cause is why updates was closed early, nil on exhaustion. It is
	// written before updates is closed.
	cause error
}

// SubscribeReceiver subscribes to the endpoints and returns a Receiver
// delivering their merged events. Failing to open any endpoint returns an
// error and no Receiver. Cancelling ctx tears the subscription down, after
// which Next returns ctx.Err().
//
// Once the sequence is exhausted no goroutines remain. In every other case,
// cancellation included, Close must be called to release them.
func SubscribeReceiver(ctx context.Context, endpoints []string,
	opts ...Option) (*Receiver, error) {

	cfg := newConfig(opts)
	sources, _, err := openSources(ctx, cfg, endpoints, cfg.dialer.Dial)
	if err != nil {
		return nil, err
	}

	r := &Receiver{
		mux:     newMultiplexer(sources),
		queue:   fn.NewConcurrentQueue[Event](cfg.queueSize),
		updates: make(chan Event),
	}
	r.stopQueue = sync.OnceFunc(r.queue.Stop)
	r.queue.Start()

	r.mux.start(ctx, func(ev Event) {
		select {
		case r.queue.ChanIn() <- ev:
		case <-r.mux.quit:
		}
	})

	forwarding := r.mux.gm.Go(ctx, func(gctx context.Context) {
		r.forward(ctx, gctx, len(sources))
	})
	if !forwarding {
		r.cause = ctx.Err()
		close(r.updates)
	}

	return r, nil
}

// forward moves events from the queue to the updates channel, closing it
// after the final terminal event. Every source emits exactly one terminal
// event as its last item, so after seeing all of them nothing is left. gctx
// ends on either cancellation of ctx or Close.
func (r *Receiver) forward(ctx, gctx context.Context, numSources int) {
	defer close(r.updates)

	for closed := 0; closed < numSources; {
		var ev Event
		select {
		case ev = <-r.queue.ChanOut():
		case <-gctx.Done():
			r.cause = ctx.Err()
			return
		}

		select {
		case r.updates <- ev:
		case <-gctx.Done():
			r.cause = ctx.Err()
			return
		}

		if ev.IsTerminal() {
			closed++
		}
	}

	// Every source has returned, nothing can be pushed anymore.
	r.stopQueue()

	log.Debugf("Receiver exhausted after %d sources ended", numSources)
}

// Updates returns the channel the merged events are delivered on. It is
// closed once every source has ended or the Receiver is closed. Any number of
// goroutines may receive from it.
func (r *Receiver) Updates() <-chan Event {
	return r.updates
}

// Quit returns a channel that is closed once teardown has started.
func (r *Receiver) Quit() <-chan struct{} {
	return r.mux.quit
}

// Next blocks until an event is available. It returns ErrSubscriptionDone
// once the sequence is exhausted or the Receiver was closed, the error of the
// subscription context if that was cancelled, or ctx.Err() if ctx is done
// first.
func (r *Receiver) Next(ctx context.Context) (Event, error) {
	select {
	case ev, ok := <-r.updates:
		if !ok {
			if r.cause != nil {
				return Event{}, r.cause
			}

			return Event{}, ErrSubscriptionDone
		}

		return ev, nil

	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// All returns an iterator over the remaining events. It ends when the
// sequence is exhausted or the Receiver is closed.
func (r *Receiver) All() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for ev := range r.updates {
			if !yield(ev) {
				return
			}
		}
	}
}

// Close tears down every source and waits for all goroutines to exit. No
// events are delivered after Close returns.
func (r *Receiver) Close() error {
	r.mux.stop()
	r.stopQueue()

	return nil
}
