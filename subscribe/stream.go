package subscribe

import (
	"context"
	"errors"

	"github.com/lightningnetwork/zmqsub/transport"
)

// PollStatus is the outcome of Stream.Poll.
type PollStatus uint8

const (
	// PollReady means an event was returned.
	PollReady PollStatus = iota

	// PollPending means no source has a complete message yet. Poll
	// again once Ready fires.
	PollPending

	// PollFinished means every source has ended. No further events will
	// be returned.
	PollFinished
)

// String returns the name of the status.
func (p PollStatus) String() string {
	switch p {
	case PollReady:
		return "ready"
	case PollPending:
		return "pending"
	default:
		return "finished"
	}
}

// pollSource is a source read without blocking.
type pollSource struct {
	*source

	conn transport.PollConn

	// announced is set once the connected event was returned.
	announced bool

	// ended is set once the terminal event was returned.
	ended bool
}

// Stream is a non-blocking, poll driven view of a subscription. It starts no
// goroutines of its own: readiness comes from the transport's notification
// primitive, so it can be driven from any event loop. A Stream is not safe
// for concurrent use.
//
// Connections that can only block, such as the gozmq backed ZMQConn, are
// wrapped by transport.NewPollConn, which owns one reader goroutine per
// connection as its readiness primitive. Natively pollable connections need
// none.
type Stream struct {
	sources []*pollSource

	// cursor is where the next Poll starts scanning, so that one busy
	// source cannot starve the others.
	cursor int

	// live counts sources that have not returned their terminal event.
	live int

	// ready receives a token whenever any source may have become
	// readable.
	ready chan struct{}

	closed bool

	// ctx is the subscription context. Once it is done the stream closes
	// itself on the next Poll.
	ctx context.Context

	// stopWake unregisters the wakeup of Ready on cancellation.
	stopWake func() bool
}

// SubscribeStream subscribes to the endpoints and returns a Stream over their
// merged events. Failing to open any endpoint returns an error and no Stream.
// Cancelling ctx wakes Ready, and the next Poll closes every connection and
// reports PollFinished.
func SubscribeStream(ctx context.Context, endpoints []string,
	opts ...Option) (*Stream, error) {

	cfg := newConfig(opts)

	dial := func(ctx context.Context,
		endpoint string) (transport.PollConn, error) {

		if pd, ok := cfg.dialer.(transport.PollDialer); ok {
			return pd.DialPoll(ctx, endpoint)
		}

		conn, err := cfg.dialer.Dial(ctx, endpoint)
		if err != nil {
			return nil, err
		}

		return transport.NewPollConn(conn), nil
	}

	sources, conns, err := openSources(ctx, cfg, endpoints, dial)
	if err != nil {
		return nil, err
	}

	s := &Stream{
		sources: make([]*pollSource, len(sources)),
		live:    len(sources),
		ready:   make(chan struct{}, 1),
		ctx:     ctx,
	}
	for i, src := range sources {
		s.sources[i] = &pollSource{
			source: src,
			conn:   conns[i],
		}
		conns[i].SetNotify(s.ready)
	}

	// The connected events are available right away. SetNotify may have
	// queued a token already.
	wake(s.ready)

	s.stopWake = context.AfterFunc(ctx, func() {
		wake(s.ready)
	})

	return s, nil
}

// Poll returns the next event if one is available without blocking. When it
// returns PollPending the caller should wait on Ready before polling again.
func (s *Stream) Poll() (Event, PollStatus) {
	if !s.closed && s.ctx.Err() != nil {
		log.Debugf("Stream context done: %v", s.ctx.Err())
		_ = s.Close()
	}

	if s.closed || s.live == 0 {
		return Event{}, PollFinished
	}

	n := len(s.sources)
	for i := 0; i < n; i++ {
		idx := (s.cursor + i) % n
		src := s.sources[idx]
		if src.ended {
			continue
		}

		if !src.announced {
			src.announced = true
			s.cursor = (idx + 1) % n

			return src.connected(), PollReady
		}

		frames, err := src.conn.TryReadMultipart()
		if errors.Is(err, transport.ErrWouldBlock) {
			continue
		}

		s.cursor = (idx + 1) % n

		if err != nil {
			src.ended = true
			src.close()
			s.live--

			return src.closed(err), PollReady
		}

		return src.decode(frames), PollReady
	}

	return Event{}, PollPending
}

// Err returns the subscription context's error once it caused the stream to
// finish, nil otherwise.
func (s *Stream) Err() error {
	if !s.closed {
		return nil
	}

	return s.ctx.Err()
}

// Ready returns the readiness channel. A receive on it means some source may
// have something to read; spurious wakeups are possible.
func (s *Stream) Ready() <-chan struct{} {
	return s.ready
}

// Next drives Poll until an event is available. It returns
// ErrSubscriptionDone once every source has ended or the stream was closed,
// the subscription context's error if that was cancelled, or ctx.Err() if
// ctx is done first.
func (s *Stream) Next(ctx context.Context) (Event, error) {
	for {
		ev, status := s.Poll()
		switch status {
		case PollReady:
			return ev, nil

		case PollFinished:
			if err := s.Err(); err != nil {
				return Event{}, err
			}

			return Event{}, ErrSubscriptionDone
		}

		select {
		case <-s.ready:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Close closes every connection. Poll reports PollFinished afterwards.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.stopWake()

	for _, src := range s.sources {
		if !src.ended {
			src.close()
		}
	}

	return nil
}

// wake leaves a token on ch unless one is already pending.
func wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
