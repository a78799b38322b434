package subscribe

import (
	"math"
	"sync"

	"github.com/lightningnetwork/zmqsub/zmqmsg"
)

// gapKey identifies one publisher. bitcoind keeps a separate message counter
// for every topic on every endpoint.
type gapKey struct {
	source string
	topic  zmqmsg.Topic
}

// GapTracker detects dropped notifications from the message counters of
// consecutive messages. It only reports, it never reorders or buffers. It is
// safe for concurrent use.
type GapTracker struct {
	mu   sync.Mutex
	last map[gapKey]uint32
}

// NewGapTracker returns an empty tracker.
func NewGapTracker() *GapTracker {
	return &GapTracker{
		last: make(map[gapKey]uint32),
	}
}

// Observe records an event and returns how many notifications were missed
// between it and the previous message of the same source and topic. Events
// without a counter, first messages, and counters that went backwards (the
// node restarted) report zero. A terminal event forgets its source.
func (g *GapTracker) Observe(ev Event) uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ev.Kind == EventClosed {
		for k := range g.last {
			if k.source == ev.Source {
				delete(g.last, k)
			}
		}

		return 0
	}

	if ev.Kind != EventMessage || ev.Message.Counter.IsNone() {
		return 0
	}

	key := gapKey{source: ev.Source, topic: ev.Message.Topic()}
	counter := ev.Message.Counter.UnwrapOr(0)

	prev, ok := g.last[key]
	g.last[key] = counter
	if !ok {
		return 0
	}

	// Modular arithmetic handles the counter wrapping around. A distance
	// of more than half the counter space is a reset, not a gap.
	missed := counter - prev - 1
	if missed > math.MaxUint32/2 {
		log.Debugf("Message counter for %v on %v reset from %d to %d",
			key.topic, key.source, prev, counter)

		return 0
	}

	if missed > 0 {
		log.Warnf("Missed %d %v notifications from %v (counter %d "+
			"-> %d)", missed, key.topic, key.source, prev, counter)
	}

	return missed
}
