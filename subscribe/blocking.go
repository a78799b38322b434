package subscribe

import (
	"context"
	"errors"
)

// ErrNilCallback is returned by SubscribeBlocking when no callback is given.
var ErrNilCallback = errors.New("nil callback")

// SubscribeBlocking subscribes to the endpoints and invokes callback for every
// event until all sources have ended or ctx is cancelled.
//
// The callback runs on the goroutine reading the event's source, so events
// from one source are delivered in order while events from different sources
// may be delivered concurrently; callers sharing state across sources must
// synchronize. Once teardown starts no further callbacks are made.
//
// Failing to open any endpoint returns an error before any callback. The
// return value is nil when every source ended on its own, and ctx.Err() when
// the subscription was cancelled.
func SubscribeBlocking(ctx context.Context, endpoints []string,
	callback func(Event), opts ...Option) error {

	if callback == nil {
		return ErrNilCallback
	}

	cfg := newConfig(opts)
	sources, _, err := openSources(ctx, cfg, endpoints, cfg.dialer.Dial)
	if err != nil {
		return err
	}

	m := newMultiplexer(sources)
	defer m.stop()

	m.start(ctx, func(ev Event) {
		if m.stopping() {
			return
		}

		callback(ev)
	})

	select {
	case <-m.done:
	case <-m.quit:
	}

	if m.stopping() {
		return ctx.Err()
	}

	return nil
}
