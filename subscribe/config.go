package subscribe

import (
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/zmqsub/transport"
	"github.com/lightningnetwork/zmqsub/zmqmsg"
)

const (
	// DefaultQueueSize is the default channel buffer of the merge queue.
	// The queue overflows into an unbounded list, so this is not a
	// capacity limit.
	DefaultQueueSize = 20
)

// config holds the collaborators used by a subscription.
type config struct {
	dialer    transport.Dialer
	decoder   *zmqmsg.Decoder
	clock     clock.Clock
	queueSize int
}

// Option customizes a subscription.
type Option func(*config)

// WithDialer sets the transport used to open endpoints. The default is a
// gozmq dialer subscribed to every topic.
func WithDialer(d transport.Dialer) Option {
	return func(c *config) {
		c.dialer = d
	}
}

// WithDecoder sets the consensus decoder used for raw blocks and
// transactions.
func WithDecoder(d zmqmsg.ConsensusDecoder) Option {
	return func(c *config) {
		c.decoder = zmqmsg.NewDecoder(d)
	}
}

// WithClock sets the clock used to timestamp events.
func WithClock(clk clock.Clock) Option {
	return func(c *config) {
		c.clock = clk
	}
}

// WithQueueSize sets the channel buffer of the merge queue.
func WithQueueSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

func newConfig(opts []Option) *config {
	cfg := &config{
		decoder:   zmqmsg.NewDecoder(nil),
		clock:     clock.NewDefaultClock(),
		queueSize: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.dialer == nil {
		cfg.dialer = transport.NewZMQDialer(nil)
	}

	return cfg
}
