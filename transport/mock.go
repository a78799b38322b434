package transport

import (
	"context"
	"errors"
	"sync"
)

// MockConn is an in-memory PollConn. Messages are queued with Push and the
// remote end is ended with Fail or Hangup. It never starts goroutines.
type MockConn struct {
	endpoint string

	mu          sync.Mutex
	pending     [][][]byte
	remoteErr   error
	localClosed bool
	notify      chan<- struct{}

	// wake is signalled on every state change for blocking readers.
	wake chan struct{}
}

// A compile time check to ensure MockConn implements PollConn.
var _ PollConn = (*MockConn)(nil)

// NewMockConn returns an empty, open mock connection.
func NewMockConn(endpoint string) *MockConn {
	return &MockConn{
		endpoint: endpoint,
		wake:     make(chan struct{}, 1),
	}
}

// Push queues multipart messages for the reader.
func (m *MockConn) Push(msgs ...[][]byte) {
	m.mu.Lock()
	m.pending = append(m.pending, msgs...)
	notify := m.notify
	m.mu.Unlock()

	signal(m.wake)
	signal(notify)
}

// Fail ends the connection from the remote side with err once the queued
// messages have been read.
func (m *MockConn) Fail(err error) {
	m.mu.Lock()
	if m.remoteErr == nil {
		m.remoteErr = err
	}
	notify := m.notify
	m.mu.Unlock()

	signal(m.wake)
	signal(notify)
}

// Hangup ends the connection cleanly from the remote side.
func (m *MockConn) Hangup() {
	m.Fail(ErrConnClosed)
}

// Closed reports whether Close was called.
func (m *MockConn) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.localClosed
}

// TryReadMultipart implements PollConn.
func (m *MockConn) TryReadMultipart() ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.localClosed:
		return nil, ErrConnClosed

	case len(m.pending) > 0:
		frames := m.pending[0]
		m.pending = m.pending[1:]

		return frames, nil

	case m.remoteErr != nil:
		return nil, m.remoteErr

	default:
		return nil, ErrWouldBlock
	}
}

// ReadMultipart implements Conn.
func (m *MockConn) ReadMultipart() ([][]byte, error) {
	for {
		frames, err := m.TryReadMultipart()
		if !errors.Is(err, ErrWouldBlock) {
			return frames, err
		}

		<-m.wake
	}
}

// SetNotify implements PollConn.
func (m *MockConn) SetNotify(ch chan<- struct{}) {
	m.mu.Lock()
	m.notify = ch
	ready := m.localClosed || len(m.pending) > 0 || m.remoteErr != nil
	m.mu.Unlock()

	if ready {
		signal(ch)
	}
}

// RemoteAddr implements Conn.
func (m *MockConn) RemoteAddr() string {
	return m.endpoint
}

// Close implements Conn.
func (m *MockConn) Close() error {
	m.mu.Lock()
	m.localClosed = true
	notify := m.notify
	m.mu.Unlock()

	signal(m.wake)
	signal(notify)

	return nil
}

// MockDialer hands out MockConns keyed by endpoint.
type MockDialer struct {
	mu       sync.Mutex
	conns    map[string]*MockConn
	failures map[string]error
	dialed   []string
}

// A compile time check to ensure MockDialer implements PollDialer.
var _ PollDialer = (*MockDialer)(nil)

// NewMockDialer returns a dialer with no connections.
func NewMockDialer() *MockDialer {
	return &MockDialer{
		conns:    make(map[string]*MockConn),
		failures: make(map[string]error),
	}
}

// Conn returns the connection for the endpoint, creating it if needed, so
// tests can queue messages before or after dialing.
func (d *MockDialer) Conn(endpoint string) *MockConn {
	d.mu.Lock()
	defer d.mu.Unlock()

	conn, ok := d.conns[endpoint]
	if !ok {
		conn = NewMockConn(endpoint)
		d.conns[endpoint] = conn
	}

	return conn
}

// FailDial makes dialing the endpoint return err.
func (d *MockDialer) FailDial(endpoint string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.failures[endpoint] = err
}

// Dialed returns the endpoints dialed so far, in order.
func (d *MockDialer) Dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string(nil), d.dialed...)
}

// Dial implements Dialer.
func (d *MockDialer) Dial(ctx context.Context, endpoint string) (Conn,
	error) {

	return d.DialPoll(ctx, endpoint)
}

// DialPoll implements PollDialer.
func (d *MockDialer) DialPoll(ctx context.Context,
	endpoint string) (PollConn, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.dialed = append(d.dialed, endpoint)
	err := d.failures[endpoint]
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}

	return d.Conn(endpoint), nil
}
