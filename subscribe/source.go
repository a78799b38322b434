package subscribe

import (
	"context"
	"errors"
	"fmt"

	"github.com/lightningnetwork/zmqsub/transport"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoEndpoints is returned when a subscription names no endpoints.
	ErrNoEndpoints = errors.New("no endpoints to subscribe to")

	// ErrInvalidEndpoint is returned for an empty endpoint string.
	ErrInvalidEndpoint = errors.New("invalid endpoint")
)

// source owns the connection to one endpoint and turns what it reads into
// events. Reads and decodes happen strictly in arrival order.
type source struct {
	endpoint string
	conn     transport.Conn
	cfg      *config
}

// event stamps a new event from this source.
func (s *source) event(kind EventKind) Event {
	return Event{
		Source:     s.endpoint,
		Kind:       kind,
		ReceivedAt: s.cfg.clock.Now(),
	}
}

// connected returns the source's first event.
func (s *source) connected() Event {
	return s.event(EventConnected)
}

// decode turns one multipart message into a message or decode error event.
func (s *source) decode(frames [][]byte) Event {
	msg, err := s.cfg.decoder.Decode(frames)
	if err != nil {
		log.Debugf("Unable to decode message from %v: %v", s.endpoint,
			err)

		ev := s.event(EventDecodeError)
		ev.Err = err

		return ev
	}

	ev := s.event(EventMessage)
	ev.Message = msg

	return ev
}

// closed returns the source's terminal event for a read error. A clean close
// is reported without an error.
func (s *source) closed(err error) Event {
	ev := s.event(EventClosed)
	if !errors.Is(err, transport.ErrConnClosed) {
		log.Errorf("Connection to %v failed: %v", s.endpoint, err)
		ev.Err = err
	} else {
		log.Infof("Connection to %v closed", s.endpoint)
	}

	return ev
}

// run reads from the connection until it ends, handing every event to emit.
// The connection is closed on return.
func (s *source) run(emit func(Event)) {
	defer s.close()

	emit(s.connected())

	for {
		frames, err := s.conn.ReadMultipart()
		if err != nil {
			emit(s.closed(err))
			return
		}

		emit(s.decode(frames))
	}
}

// close releases the connection.
func (s *source) close() {
	if err := s.conn.Close(); err != nil {
		log.Debugf("Error closing connection to %v: %v", s.endpoint,
			err)
	}
}

// dedupEndpoints validates the endpoint list and drops repeats, keeping
// first occurrence order.
func dedupEndpoints(endpoints []string) ([]string, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	seen := make(map[string]struct{}, len(endpoints))
	unique := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		if e == "" {
			return nil, ErrInvalidEndpoint
		}
		if _, ok := seen[e]; ok {
			continue
		}

		seen[e] = struct{}{}
		unique = append(unique, e)
	}

	return unique, nil
}

// openSources dials every endpoint concurrently. If any dial fails, the
// connections already opened are closed and the first error is returned.
func openSources[C transport.Conn](ctx context.Context, cfg *config,
	endpoints []string,
	dial func(context.Context, string) (C, error)) ([]*source, []C,
	error) {

	endpoints, err := dedupEndpoints(endpoints)
	if err != nil {
		return nil, nil, err
	}

	conns := make([]C, len(endpoints))
	opened := make([]bool, len(endpoints))

	g, gctx := errgroup.WithContext(ctx)
	for i, endpoint := range endpoints {
		g.Go(func() error {
			conn, err := dial(gctx, endpoint)
			if err != nil {
				return fmt.Errorf("unable to open %s: %w",
					endpoint, err)
			}

			conns[i] = conn
			opened[i] = true

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for i, conn := range conns {
			if opened[i] {
				_ = conn.Close()
			}
		}

		return nil, nil, err
	}

	sources := make([]*source, len(endpoints))
	for i, endpoint := range endpoints {
		sources[i] = &source{
			endpoint: endpoint,
			conn:     conns[i],
			cfg:      cfg,
		}
	}

	log.Debugf("Opened %d sources: %v", len(sources), endpoints)

	return sources, conns, nil
}
