package monitoring

import (
	"errors"

	"github.com/lightningnetwork/zmqsub/subscribe"
	"github.com/lightningnetwork/zmqsub/zmqmsg"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "zmqsub"

// noTopic is the topic label of events that carry no message.
const noTopic = "none"

// Metrics holds the Prometheus collectors fed from a merged event sequence.
type Metrics struct {
	events        *prometheus.CounterVec
	decodeErrors  *prometheus.CounterVec
	missed        *prometheus.CounterVec
	connected     *prometheus.GaugeVec
	lastMessageAt *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Events received, by source, kind and topic.",
			},
			[]string{"source", "kind", "topic"},
		),
		decodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decode_errors_total",
				Help:      "Undecodable messages, by source and error kind.",
			},
			[]string{"source", "kind"},
		),
		missed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "missed_notifications_total",
				Help:      "Notifications skipped according to the message counter.",
			},
			[]string{"source", "topic"},
		),
		connected: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "source_connected",
				Help:      "Whether the source is currently being read from.",
			},
			[]string{"source"},
		),
		lastMessageAt: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_message_timestamp_seconds",
				Help:      "Receive time of the last decoded message.",
			},
			[]string{"source"},
		),
	}

	collectors := []prometheus.Collector{
		m.events, m.decodeErrors, m.missed, m.connected,
		m.lastMessageAt,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// ObserveEvent updates the collectors for a single event.
func (m *Metrics) ObserveEvent(ev subscribe.Event) {
	topic := noTopic
	if ev.Message != nil {
		topic = ev.Message.Topic().String()
	}
	m.events.WithLabelValues(ev.Source, ev.Kind.String(), topic).Inc()

	switch ev.Kind {
	case subscribe.EventConnected:
		m.connected.WithLabelValues(ev.Source).Set(1)

	case subscribe.EventMessage:
		m.lastMessageAt.WithLabelValues(ev.Source).Set(
			float64(ev.ReceivedAt.UnixNano()) / 1e9,
		)

	case subscribe.EventDecodeError:
		kind := "unknown"

		var decodeErr *zmqmsg.DecodeError
		if errors.As(ev.Err, &decodeErr) {
			kind = decodeErr.Kind.String()
		}
		m.decodeErrors.WithLabelValues(ev.Source, kind).Inc()

	case subscribe.EventClosed:
		m.connected.WithLabelValues(ev.Source).Set(0)
	}
}

// ObserveMissed records missed notifications reported by a gap tracker for
// the given message event.
func (m *Metrics) ObserveMissed(ev subscribe.Event, missed uint32) {
	if missed == 0 || ev.Message == nil {
		return
	}

	m.missed.WithLabelValues(
		ev.Source, ev.Message.Topic().String(),
	).Add(float64(missed))
}
