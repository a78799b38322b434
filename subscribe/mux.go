package subscribe

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// multiplexer drives a set of sources concurrently, one goroutine each, and
// hands their events to a shared emit function. It is the engine behind the
// blocking and receiver adapters.
type multiplexer struct {
	sources []*source

	// remaining counts sources that have not finished yet.
	remaining atomic.Int32

	gm *fn.GoroutineManager

	// done is closed once every source has finished.
	done chan struct{}

	// quit is closed on teardown. Emit functions must not block past it.
	quit     chan struct{}
	quitOnce sync.Once
}

func newMultiplexer(sources []*source) *multiplexer {
	m := &multiplexer{
		sources: sources,
		gm:      fn.NewGoroutineManager(),
		done:    make(chan struct{}),
		quit:    make(chan struct{}),
	}
	m.remaining.Store(int32(len(sources)))

	return m
}

// start launches the source goroutines plus a watcher that tears everything
// down when ctx is cancelled.
func (m *multiplexer) start(ctx context.Context, emit func(Event)) {
	for _, src := range m.sources {
		ok := m.gm.Go(ctx, func(context.Context) {
			defer m.sourceDone()

			src.run(emit)
		})
		// Only fails once ctx is done, so the subscription is being
		// torn down anyway.
		if !ok {
			m.shutdown()
			m.sourceDone()
		}
	}

	m.gm.Go(ctx, func(ctx context.Context) {
		select {
		case <-ctx.Done():
			log.Debugf("Subscription context done: %v", ctx.Err())
			m.shutdown()

		case <-m.done:
		case <-m.quit:
		}
	})
}

// sourceDone marks one source as finished.
func (m *multiplexer) sourceDone() {
	if m.remaining.Add(-1) == 0 {
		log.Debugf("All %d sources finished", len(m.sources))
		close(m.done)
	}
}

// shutdown closes quit and every connection so blocked reads return. It does
// not wait and may be called from any goroutine, any number of times.
func (m *multiplexer) shutdown() {
	m.quitOnce.Do(func() {
		close(m.quit)
		for _, src := range m.sources {
			src.close()
		}
	})
}

// stop tears down the sources and waits for every goroutine to exit.
func (m *multiplexer) stop() {
	m.shutdown()
	m.gm.Stop()
}

// stopping reports whether teardown has begun.
func (m *multiplexer) stopping() bool {
	select {
	case <-m.quit:
		return true
	default:
		return false
	}
}
