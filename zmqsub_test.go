package zmqsub

import (
	"context"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/ticker"
	"github.com/lightningnetwork/zmqsub/monitoring"
	"github.com/lightningnetwork/zmqsub/subscribe"
	"github.com/lightningnetwork/zmqsub/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// hashTxFrames builds a hashtx notification with the given counter.
func hashTxFrames(counter byte) [][]byte {
	return [][]byte{
		[]byte("hashtx"), make([]byte, 32), {counter, 0, 0, 0},
	}
}

func newTestHandler(t *testing.T) *eventHandler {
	t.Helper()

	metrics, err := monitoring.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	return newEventHandler(metrics, true)
}

// TestRunModes checks every consumption mode delivers the same totals.
func TestRunModes(t *testing.T) {
	t.Parallel()

	for _, mode := range []string{ModeBlocking, ModeReceiver, ModeStream} {
		t.Run(mode, func(t *testing.T) {
			t.Parallel()

			dialer := transport.NewMockDialer()
			dialer.Conn(testPubA).Push(
				hashTxFrames(1), hashTxFrames(2),
				hashTxFrames(5), [][]byte{[]byte("hashtx")},
			)
			dialer.Conn(testPubA).Hangup()
			dialer.Conn(testPubB).Push(hashTxFrames(9))
			dialer.Conn(testPubB).Hangup()

			cfg := DefaultConfig()
			cfg.ZMQPub = []string{testPubA, testPubB}
			cfg.Mode = mode

			h := newTestHandler(t)
			err := run(
				t.Context(), &cfg, h,
				subscribe.WithDialer(dialer),
			)
			require.NoError(t, err)

			require.Equal(t, eventStats{
				messages:     4,
				decodeErrors: 1,
				missed:       2,
				closed:       2,
			}, h.totals())
		})
	}
}

// TestRunCancel checks a cancelled context ends every mode.
func TestRunCancel(t *testing.T) {
	t.Parallel()

	for _, mode := range []string{ModeBlocking, ModeReceiver, ModeStream} {
		t.Run(mode, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			cfg.ZMQPub = []string{testPubA}
			cfg.Mode = mode

			ctx, cancel := context.WithCancel(t.Context())
			cancel()

			err := run(
				ctx, &cfg, newTestHandler(t),
				subscribe.WithDialer(transport.NewMockDialer()),
			)
			require.ErrorIs(t, err, context.Canceled)
		})
	}
}

// TestLogStats checks every tick starts a new stats window.
func TestLogStats(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)
	h.handle(subscribe.Event{Source: testPubA, Kind: subscribe.EventClosed})

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	statTicker := ticker.NewForce(time.Hour)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.logStats(ctx, statTicker)
	}()

	statTicker.Force <- time.Now()

	// The force channel is unbuffered, so the second tick is only taken
	// once the first one was handled.
	statTicker.Force <- time.Now()

	stats := h.snapshot()
	require.True(t, stats.Empty())
	require.EqualValues(t, 1, h.totals().closed)

	cancel()
	<-done
}
