package transport

import (
	"errors"
	"sync"
)

// pumpConn turns a blocking Conn into a PollConn. A single reader goroutine
// moves complete messages from the connection into an unbounded buffer and
// signals the registered notification channel; this is the readiness
// primitive for transports that only offer blocking reads.
type pumpConn struct {
	Conn

	startOnce sync.Once

	mu      sync.Mutex
	pending [][][]byte
	termErr error
	notify  chan<- struct{}

	done chan struct{}
}

// A compile time check to ensure pumpConn implements PollConn.
var _ PollConn = (*pumpConn)(nil)

// NewPollConn wraps a Conn so it can be polled. The reader goroutine starts on
// the first call to TryReadMultipart or SetNotify and exits once the wrapped
// connection ends.
func NewPollConn(conn Conn) PollConn {
	if pc, ok := conn.(PollConn); ok {
		return pc
	}

	return &pumpConn{
		Conn: conn,
		done: make(chan struct{}),
	}
}

func (p *pumpConn) start() {
	p.startOnce.Do(func() {
		go p.pump()
	})
}

// pump reads messages until the connection ends.
//
// NOTE: This must be run as a goroutine.
func (p *pumpConn) pump() {
	defer close(p.done)

	for {
		frames, err := p.Conn.ReadMultipart()

		p.mu.Lock()
		if err != nil {
			p.termErr = err
		} else {
			p.pending = append(p.pending, frames)
		}
		notify := p.notify
		p.mu.Unlock()

		signal(notify)

		if err != nil {
			return
		}
	}
}

// TryReadMultipart returns the oldest buffered message. Buffered messages
// are delivered before a terminal error from the remote end, but a local
// Close discards them.
func (p *pumpConn) TryReadMultipart() ([][]byte, error) {
	p.start()

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.pending) > 0 && !errors.Is(p.termErr, ErrConnClosed) {
		frames := p.pending[0]
		p.pending[0] = nil
		p.pending = p.pending[1:]

		return frames, nil
	}

	if p.termErr != nil {
		return nil, p.termErr
	}

	return nil, ErrWouldBlock
}

// ReadMultipart blocks until a message is buffered or the connection ends.
func (p *pumpConn) ReadMultipart() ([][]byte, error) {
	wake := make(chan struct{}, 1)
	p.SetNotify(wake)

	for {
		frames, err := p.TryReadMultipart()
		if !errors.Is(err, ErrWouldBlock) {
			return frames, err
		}

		<-wake
	}
}

// SetNotify registers the readiness channel. If data is already buffered the
// channel is signalled right away so no wakeup is lost.
func (p *pumpConn) SetNotify(ch chan<- struct{}) {
	p.start()

	p.mu.Lock()
	p.notify = ch
	ready := len(p.pending) > 0 || p.termErr != nil
	p.mu.Unlock()

	if ready {
		signal(ch)
	}
}

// Close closes the wrapped connection and waits for the reader goroutine to
// exit if it was started.
func (p *pumpConn) Close() error {
	err := p.Conn.Close()

	started := true
	p.startOnce.Do(func() {
		started = false
	})
	if started {
		<-p.done
	}

	return err
}
