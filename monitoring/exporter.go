package monitoring

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// readHeaderTimeout bounds how long a scrape may take to send its headers.
const readHeaderTimeout = 10 * time.Second

// PrometheusConfig is the config for the Prometheus exporter.
//
//nolint:lll
type PrometheusConfig struct {
	Listen string `long:"listen" description:"The interface/port to export Prometheus metrics on, disabled when empty"`
}

// Enabled returns true if an exporter address is configured.
func (c *PrometheusConfig) Enabled() bool {
	return c.Listen != ""
}

// Exporter serves the metrics of a gatherer on /metrics.
type Exporter struct {
	listener net.Listener
	server   *http.Server
	done     chan struct{}
}

// StartExporter binds the configured address and starts serving metrics from
// gatherer in the background.
func StartExporter(cfg *PrometheusConfig,
	gatherer prometheus.Gatherer) (*Exporter, error) {

	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		gatherer, promhttp.HandlerOpts{},
	))

	e := &Exporter{
		listener: listener,
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		done: make(chan struct{}),
	}

	log.Infof("Prometheus exporter started on %v/metrics", listener.Addr())

	go func() {
		defer close(e.done)

		err := e.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Prometheus exporter stopped: %v", err)
		}
	}()

	return e, nil
}

// Addr returns the address the exporter is listening on.
func (e *Exporter) Addr() net.Addr {
	return e.listener.Addr()
}

// Stop shuts the exporter down and waits for it to exit.
func (e *Exporter) Stop(ctx context.Context) error {
	err := e.server.Shutdown(ctx)
	<-e.done

	return err
}
