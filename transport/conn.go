package transport

import (
	"context"
	"errors"
)

var (
	// ErrConnClosed is returned by reads on a connection that has been
	// closed, either locally or by the remote end shutting down cleanly.
	ErrConnClosed = errors.New("connection closed")

	// ErrWouldBlock is returned by TryReadMultipart when no complete
	// multipart message is buffered yet.
	ErrWouldBlock = errors.New("no complete message available")
)

// Conn is a single subscribed publish/subscribe connection. A Conn has one
// reader: ReadMultipart must not be called concurrently, and must not be mixed
// with the PollConn methods on the same connection.
type Conn interface {
	// ReadMultipart blocks until the next complete multipart message is
	// received and returns its frames in order. It returns ErrConnClosed
	// once the connection has ended cleanly; any other error means the
	// connection failed and no further messages will be delivered.
	ReadMultipart() ([][]byte, error)

	// RemoteAddr returns the endpoint the connection was opened to.
	RemoteAddr() string

	// Close releases the connection. A blocked ReadMultipart returns
	// promptly, without cooperation from the remote end.
	Close() error
}

// PollConn is a Conn that can be read without blocking, with readiness
// reported through a notification channel.
type PollConn interface {
	Conn

	// TryReadMultipart returns the next complete multipart message if one
	// is available and ErrWouldBlock otherwise. Terminal errors follow
	// the same rules as ReadMultipart.
	TryReadMultipart() ([][]byte, error)

	// SetNotify registers a channel that receives a non-blocking send
	// every time the connection may have become readable: a message was
	// buffered or the connection ended.
	SetNotify(ch chan<- struct{})
}

// Dialer opens connections to publish/subscribe endpoints.
type Dialer interface {
	// Dial connects to the endpoint and subscribes to its notifications.
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// PollDialer is a Dialer that can hand out pollable connections.
type PollDialer interface {
	Dialer

	// DialPoll connects to the endpoint like Dial, returning a
	// connection that supports non-blocking reads.
	DialPoll(ctx context.Context, endpoint string) (PollConn, error)
}

// signal performs a non-blocking send on a notification channel.
func signal(ch chan<- struct{}) {
	if ch == nil {
		return
	}

	select {
	case ch <- struct{}{}:
	default:
	}
}
