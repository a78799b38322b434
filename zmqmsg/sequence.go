package zmqmsg

import (
	"encoding/binary"
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// sequenceBlockLen is the body length of a block (dis)connect
	// sequence notification: hash plus label.
	sequenceBlockLen = HashSize + 1

	// sequenceMempoolLen is the body length of a mempool acceptance or
	// removal sequence notification: hash, label, and an 8 byte mempool
	// sequence number.
	sequenceMempoolLen = sequenceBlockLen + 8
)

// SequenceLabel is the single ASCII byte following the hash in a sequence
// notification body.
type SequenceLabel byte

const (
	// BlockConnected is published when a block is connected to the tip.
	BlockConnected SequenceLabel = 'C'

	// BlockDisconnected is published when a block is disconnected from
	// the tip during a reorg.
	BlockDisconnected SequenceLabel = 'D'

	// TransactionRemoved is published when a transaction leaves the
	// mempool for any reason other than block inclusion.
	TransactionRemoved SequenceLabel = 'R'

	// TransactionAdded is published when a transaction enters the
	// mempool.
	TransactionAdded SequenceLabel = 'A'
)

// String returns the variant name of the label.
func (l SequenceLabel) String() string {
	switch l {
	case BlockConnected:
		return "BlockConnected"
	case BlockDisconnected:
		return "BlockDisconnected"
	case TransactionRemoved:
		return "TransactionRemoved"
	case TransactionAdded:
		return "TransactionAdded"
	default:
		return fmt.Sprintf("SequenceLabel(0x%02x)", byte(l))
	}
}

// IsMempool returns true for the labels that carry a mempool sequence
// number.
func (l SequenceLabel) IsMempool() bool {
	return l == TransactionRemoved || l == TransactionAdded
}

// SequenceEvent is the decoded body of a sequence notification.
type SequenceEvent struct {
	// Hash is the block hash for BlockConnected and BlockDisconnected, and
	// the txid otherwise.
	Hash Hash

	// Label selects the variant.
	Label SequenceLabel

	// MempoolSequence is always set for TransactionRemoved and
	// TransactionAdded, and never for the block variants.
	MempoolSequence fn.Option[uint64]
}

// NewBlockSequence builds a BlockConnected or BlockDisconnected event.
func NewBlockSequence(label SequenceLabel, hash Hash) SequenceEvent {
	return SequenceEvent{
		Hash:            hash,
		Label:           label,
		MempoolSequence: fn.None[uint64](),
	}
}

// NewMempoolSequence builds a TransactionAdded or TransactionRemoved event.
func NewMempoolSequence(label SequenceLabel, txid Hash,
	mempoolSeq uint64) SequenceEvent {

	return SequenceEvent{
		Hash:            txid,
		Label:           label,
		MempoolSequence: fn.Some(mempoolSeq),
	}
}

// String renders the event with its hash in display order.
func (s SequenceEvent) String() string {
	return fn.ElimOption(
		s.MempoolSequence,
		func() string {
			return fmt.Sprintf("%v(%v)", s.Label, s.Hash)
		},
		func(seq uint64) string {
			return fmt.Sprintf("%v(%v, mempool_sequence=%d)",
				s.Label, s.Hash, seq)
		},
	)
}

// bytes serializes the event into a sequence notification body.
func (s SequenceEvent) bytes() []byte {
	body := make([]byte, 0, sequenceMempoolLen)
	body = append(body, s.Hash[:]...)
	body = append(body, byte(s.Label))
	s.MempoolSequence.WhenSome(func(seq uint64) {
		body = binary.LittleEndian.AppendUint64(body, seq)
	})

	return body
}

// decodeSequence interprets a sequence notification body.
func decodeSequence(body []byte) (SequenceEvent, error) {
	if len(body) < sequenceBlockLen {
		return SequenceEvent{}, &DecodeError{
			Kind:   InvalidSequenceLength,
			Topic:  TopicSequence.Bytes(),
			Length: len(body),
		}
	}

	var hash Hash
	copy(hash[:], body[:HashSize])

	label := SequenceLabel(body[HashSize])
	switch label {
	case BlockConnected, BlockDisconnected:
		if len(body) != sequenceBlockLen {
			return SequenceEvent{}, &DecodeError{
				Kind:   InvalidSequenceLength,
				Topic:  TopicSequence.Bytes(),
				Length: len(body),
			}
		}

		return NewBlockSequence(label, hash), nil

	case TransactionRemoved, TransactionAdded:
		if len(body) != sequenceMempoolLen {
			return SequenceEvent{}, &DecodeError{
				Kind:   InvalidSequenceLength,
				Topic:  TopicSequence.Bytes(),
				Length: len(body),
			}
		}

		seq := binary.LittleEndian.Uint64(body[sequenceBlockLen:])

		return NewMempoolSequence(label, hash, seq), nil

	default:
		return SequenceEvent{}, &DecodeError{
			Kind:  UnknownSequenceLabel,
			Topic: TopicSequence.Bytes(),
			Label: byte(label),
		}
	}
}
