package subscribe

import (
	"fmt"
	"time"

	"github.com/lightningnetwork/zmqsub/zmqmsg"
)

// EventKind is the type of an item in a merged event sequence.
type EventKind uint8

const (
	// EventConnected is emitted once per source before any other item
	// from that source.
	EventConnected EventKind = iota

	// EventMessage carries a successfully decoded message.
	EventMessage

	// EventDecodeError carries a *zmqmsg.DecodeError. The source keeps
	// reading after it.
	EventDecodeError

	// EventClosed is the last item of a source. Its Err is nil when the
	// connection ended cleanly and the transport error otherwise.
	EventClosed
)

// String returns a short name for the kind.
func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventMessage:
		return "message"
	case EventDecodeError:
		return "decode_error"
	case EventClosed:
		return "closed"
	default:
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
}

// Event is one item of a merged event sequence, tagged with the endpoint it
// came from.
type Event struct {
	// Source is the endpoint the event was read from.
	Source string

	// Kind selects which of the remaining fields are set.
	Kind EventKind

	// Message is set for EventMessage.
	Message *zmqmsg.Message

	// Err is set for EventDecodeError, and for EventClosed when the
	// connection failed.
	Err error

	// ReceivedAt is when the event was produced by its source.
	ReceivedAt time.Time
}

// IsTerminal returns true if no more events will follow from the event's
// source.
func (e Event) IsTerminal() bool {
	return e.Kind == EventClosed
}

// String renders the event for logs.
func (e Event) String() string {
	switch e.Kind {
	case EventMessage:
		return fmt.Sprintf("%s: %v", e.Source, e.Message)

	case EventDecodeError:
		return fmt.Sprintf("%s: decode error: %v", e.Source, e.Err)

	case EventClosed:
		if e.Err != nil {
			return fmt.Sprintf("%s: closed: %v", e.Source, e.Err)
		}

		return fmt.Sprintf("%s: closed", e.Source)

	default:
		return fmt.Sprintf("%s: %v", e.Source, e.Kind)
	}
}
