package zmqsub

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/btcsuite/btclog/v2"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/lightningnetwork/zmqsub/build"
	"github.com/lightningnetwork/zmqsub/monitoring"
	"github.com/lightningnetwork/zmqsub/signal"
	"github.com/lightningnetwork/zmqsub/subscribe"
	"github.com/lightningnetwork/zmqsub/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// exporterShutdownTimeout bounds how long stopping the metrics exporter may
// take.
const exporterShutdownTimeout = 5 * time.Second

// Main is the true entry point for zmqsub. It sets up logging, subscribes to
// the configured endpoints and consumes their events until every source has
// ended or a shutdown is requested through the interceptor.
func Main(cfg *Config, interceptor signal.Interceptor) error {
	logWriter := &build.LogWriter{}
	rotator, err := build.NewRotatingLogWriter(
		cfg.LogConfig, filepath.Join(cfg.LogDir, defaultLogFilename),
	)
	if err != nil {
		return err
	}
	defer func() {
		_ = rotator.Close()
	}()
	logWriter.Rotator = rotator

	handler := btclog.NewDefaultHandler(
		logWriter, cfg.LogConfig.HandlerOptions()...,
	)
	logMgr := build.NewSubLoggerManager(handler)
	SetupLoggers(logMgr, interceptor)

	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", logMgr.SupportedSubsystems())
		return nil
	}
	err = build.ParseAndSetDebugLevels(cfg.DebugLevel, logMgr)
	if err != nil {
		return err
	}

	zsubLog.Infof("Version: %s commit=%s, logging=%v", build.Version(),
		build.Commit, build.LoggingType)
	if cfg.configFileError != nil {
		zsubLog.Warnf("%v", cfg.configFileError)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-interceptor.ShutdownChannel():
			cancel()
		case <-ctx.Done():
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics, err := monitoring.NewMetrics(reg)
	if err != nil {
		return err
	}

	if cfg.Prometheus.Enabled() {
		exporter, err := monitoring.StartExporter(cfg.Prometheus, reg)
		if err != nil {
			return fmt.Errorf("unable to start prometheus "+
				"exporter: %w", err)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(
				context.Background(), exporterShutdownTimeout,
			)
			defer stopCancel()

			_ = exporter.Stop(stopCtx)
		}()
	}

	dialer := transport.NewZMQDialer(&transport.ZMQConfig{
		Topics:       cfg.topics(),
		ReadDeadline: cfg.ZMQReadDeadline,
	})

	h := newEventHandler(metrics, cfg.ShowRaw)

	if cfg.StatsInterval > 0 {
		go h.logStats(ctx, ticker.New(cfg.StatsInterval))
	}

	zsubLog.Infof("Subscribing to %v in %s mode", cfg.ZMQPub, cfg.Mode)

	err = run(ctx, cfg, h, subscribe.WithDialer(dialer))
	switch {
	// A requested shutdown is a clean exit.
	case errors.Is(err, context.Canceled):
		zsubLog.Infof("Shutdown complete")
		return nil

	case err != nil:
		return err
	}

	zsubLog.Infof("All sources ended, %v", h.totals())

	return nil
}

// run consumes the subscription in the configured mode, handing every event to
// h, until all sources ended or ctx is done.
func run(ctx context.Context, cfg *Config, h *eventHandler,
	opts ...subscribe.Option) error {

	switch cfg.Mode {
	case ModeBlocking:
		return subscribe.SubscribeBlocking(
			ctx, cfg.ZMQPub, h.handle, opts...,
		)

	case ModeReceiver:
		return runReceiver(ctx, cfg, h, opts)

	case ModeStream:
		return runStream(ctx, cfg, h, opts)

	default:
		return fmt.Errorf("unknown mode: %v", cfg.Mode)
	}
}

// runReceiver consumes a receiver with cfg.Workers goroutines.
func runReceiver(ctx context.Context, cfg *Config, h *eventHandler,
	opts []subscribe.Option) error {

	r, err := subscribe.SubscribeReceiver(ctx, cfg.ZMQPub, opts...)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.Close()
	}()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for ev := range r.All() {
				h.handle(ev)
			}
		}()
	}
	wg.Wait()

	return ctx.Err()
}

// runStream drives a poll based stream from a single goroutine.
func runStream(ctx context.Context, cfg *Config, h *eventHandler,
	opts []subscribe.Option) error {

	s, err := subscribe.SubscribeStream(ctx, cfg.ZMQPub, opts...)
	if err != nil {
		return err
	}
	defer func() {
		_ = s.Close()
	}()

	for {
		ev, err := s.Next(ctx)
		switch {
		case errors.Is(err, subscribe.ErrSubscriptionDone):
			return nil

		case err != nil:
			return err
		}

		h.handle(ev)
	}
}

// eventStats counts the events seen since the last stats line.
type eventStats struct {
	messages     uint64
	decodeErrors uint64
	missed       uint64
	closed       uint64
}

// Empty returns true if nothing was counted.
func (s *eventStats) Empty() bool {
	return s.messages == 0 && s.decodeErrors == 0 && s.missed == 0 &&
		s.closed == 0
}

// Reset clears the counters.
func (s *eventStats) Reset() {
	*s = eventStats{}
}

// String returns a human readable summary.
func (s eventStats) String() string {
	return fmt.Sprintf("messages=%d decode_errors=%d missed=%d "+
		"sources_closed=%d", s.messages, s.decodeErrors, s.missed,
		s.closed)
}

// eventHandler logs events, tracks counter gaps and feeds the metrics. It is
// safe for concurrent use.
type eventHandler struct {
	metrics *monitoring.Metrics
	showRaw bool
	clock   clock.Clock

	mu    sync.Mutex
	gaps  *subscribe.GapTracker
	stats eventStats
	total eventStats
}

func newEventHandler(metrics *monitoring.Metrics, showRaw bool) *eventHandler {
	return &eventHandler{
		metrics: metrics,
		showRaw: showRaw,
		clock:   clock.NewDefaultClock(),
		gaps:    subscribe.NewGapTracker(),
	}
}

// handle processes a single event.
func (h *eventHandler) handle(ev subscribe.Event) {
	h.metrics.ObserveEvent(ev)

	h.mu.Lock()
	missed := h.gaps.Observe(ev)
	h.count(&h.stats, ev, missed)
	h.count(&h.total, ev, missed)
	h.mu.Unlock()

	h.metrics.ObserveMissed(ev, missed)

	switch ev.Kind {
	case subscribe.EventConnected:
		zsubLog.Infof("Connected to %v", ev.Source)

	case subscribe.EventMessage:
		zsubLog.Infof("%v", ev)

		if h.showRaw {
			zsubLog.Debugf("Raw frames from %v: %x", ev.Source,
				ev.Message.Frames())
		}

	case subscribe.EventDecodeError:
		zsubLog.Warnf("%v", ev)

	case subscribe.EventClosed:
		if ev.Err != nil {
			zsubLog.Errorf("Source %v failed: %v", ev.Source,
				ev.Err)
			return
		}
		zsubLog.Infof("Source %v closed", ev.Source)
	}
}

// count adds ev to s.
func (h *eventHandler) count(s *eventStats, ev subscribe.Event,
	missed uint32) {

	s.missed += uint64(missed)

	switch ev.Kind {
	case subscribe.EventMessage:
		s.messages++
	case subscribe.EventDecodeError:
		s.decodeErrors++
	case subscribe.EventClosed:
		s.closed++
	}
}

// snapshot returns the stats of the current window and starts a new one.
func (h *eventHandler) snapshot() eventStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.stats
	h.stats.Reset()

	return s
}

// totals returns the stats since startup.
func (h *eventHandler) totals() eventStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.total
}

// logStats logs a summary of the events seen in every ticker interval that
// had any.
func (h *eventHandler) logStats(ctx context.Context, t ticker.Ticker) {
	t.Resume()
	defer t.Stop()

	last := h.clock.Now()
	for {
		select {
		case <-t.Ticks():
			now := h.clock.Now()
			if s := h.snapshot(); !s.Empty() {
				zsubLog.Infof("Processed %v in last %v", s,
					now.Sub(last).Round(time.Second))
			}
			last = now

		case <-ctx.Done():
			return
		}
	}
}
