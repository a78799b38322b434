package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/lightninglabs/gozmq"
)

const (
	// DefaultReadDeadline is the default interval after which a pending
	// read on an idle socket times out. Timeouts are not surfaced: the read
	// is simply retried, which gives Close a bounded window to be noticed.
	DefaultReadDeadline = 5 * time.Second
)

var (
	// ErrInvalidEndpoint is returned when an endpoint is not a tcp://
	// address with a host and port.
	ErrInvalidEndpoint = errors.New("invalid zmq endpoint")

	// DefaultTopics is the full set of notification topics published by
	// the node.
	DefaultTopics = []string{
		"hashblock", "hashtx", "rawblock", "rawtx", "sequence",
	}
)

// ZMQConfig holds the options of the gozmq backed dialer.
type ZMQConfig struct {
	// Topics is the list of topics to subscribe to on every endpoint.
	Topics []string

	// ReadDeadline is the read timeout on the underlying socket.
	ReadDeadline time.Duration
}

// DefaultZMQConfig returns a config subscribing to every topic.
func DefaultZMQConfig() *ZMQConfig {
	return &ZMQConfig{
		Topics:       DefaultTopics,
		ReadDeadline: DefaultReadDeadline,
	}
}

// ValidateEndpoint checks that the endpoint is a tcp:// URL with a host and
// port, the only transport gozmq speaks.
func ValidateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidEndpoint, endpoint,
			err)
	}
	if u.Scheme != "tcp" {
		return fmt.Errorf("%w %q: unsupported scheme %q",
			ErrInvalidEndpoint, endpoint, u.Scheme)
	}
	if u.Hostname() == "" || u.Port() == "" {
		return fmt.Errorf("%w %q: host and port required",
			ErrInvalidEndpoint, endpoint)
	}

	return nil
}

// ZMQDialer opens SUB connections using gozmq.
type ZMQDialer struct {
	cfg ZMQConfig
}

// A compile time check to ensure ZMQDialer implements PollDialer.
var _ PollDialer = (*ZMQDialer)(nil)

// NewZMQDialer returns a dialer using the given config, falling back to the
// defaults for unset fields.
func NewZMQDialer(cfg *ZMQConfig) *ZMQDialer {
	d := DefaultZMQConfig()
	if cfg != nil {
		if len(cfg.Topics) != 0 {
			d.Topics = cfg.Topics
		}
		if cfg.ReadDeadline != 0 {
			d.ReadDeadline = cfg.ReadDeadline
		}
	}

	return &ZMQDialer{cfg: *d}
}

// Dial connects to the endpoint and completes the ZMTP handshake and
// subscription before returning.
func (d *ZMQDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	return d.dial(ctx, endpoint)
}

// DialPoll connects like Dial and returns a pollable connection.
func (d *ZMQDialer) DialPoll(ctx context.Context,
	endpoint string) (PollConn, error) {

	conn, err := d.dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	return NewPollConn(conn), nil
}

func (d *ZMQDialer) dial(ctx context.Context, endpoint string) (*ZMQConn,
	error) {

	if err := ValidateEndpoint(endpoint); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	zc, err := gozmq.Subscribe(endpoint, d.cfg.Topics, d.cfg.ReadDeadline)
	if err != nil {
		return nil, fmt.Errorf("unable to subscribe to %s: %w",
			endpoint, err)
	}

	// The caller may have given up while we were connecting.
	if err := ctx.Err(); err != nil {
		zc.Close()
		return nil, err
	}

	log.Infof("Subscribed to %v on %v (%v)", d.cfg.Topics, endpoint,
		zc.RemoteAddr())

	return newZMQConn(endpoint, zc), nil
}

// zmqSocket is the part of a gozmq connection ZMQConn reads from.
type zmqSocket interface {
	Receive(bufs [][]byte) ([][]byte, error)
	Close() error
}

// A compile time check to ensure gozmq.Conn implements zmqSocket.
var _ zmqSocket = (*gozmq.Conn)(nil)

func newZMQConn(endpoint string, sock zmqSocket) *ZMQConn {
	return &ZMQConn{
		endpoint: endpoint,
		conn:     sock,
		quit:     make(chan struct{}),
	}
}

// ZMQConn is a Conn over a gozmq SUB socket.
type ZMQConn struct {
	endpoint string
	conn     zmqSocket

	closeOnce sync.Once
	quit      chan struct{}
}

// A compile time check to ensure ZMQConn implements Conn.
var _ Conn = (*ZMQConn)(nil)

// ReadMultipart reads the next multipart message. Read deadline timeouts on
// an idle socket are retried transparently.
func (c *ZMQConn) ReadMultipart() ([][]byte, error) {
	for {
		select {
		case <-c.quit:
			return nil, ErrConnClosed
		default:
		}

		frames, err := c.conn.Receive(nil)
		if err == nil {
			log.Tracef("Received %d frames from %v: %v",
				len(frames), c.endpoint, spewFrames(frames))

			return frames, nil
		}

		// EOF is returned once the connection was explicitly closed.
		if errors.Is(err, io.EOF) {
			return nil, ErrConnClosed
		}

		select {
		case <-c.quit:
			return nil, ErrConnClosed
		default:
		}

		// The socket timing out just means the node had nothing to
		// say. Don't spam the logs with it.
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			log.Tracef("Re-establishing timed out ZMQ read on %v",
				c.endpoint)

			continue
		}

		return nil, fmt.Errorf("zmq receive from %s: %w", c.endpoint,
			err)
	}
}

// RemoteAddr returns the endpoint URL.
func (c *ZMQConn) RemoteAddr() string {
	return c.endpoint
}

// Close closes the socket. It is safe to call more than once.
func (c *ZMQConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.quit)
		err = c.conn.Close()

		log.Debugf("Closed ZMQ connection to %v", c.endpoint)
	})

	return err
}
