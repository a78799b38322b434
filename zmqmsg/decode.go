package zmqmsg

import (
	"encoding/binary"
	"slices"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Decoder validates and interprets multipart messages. It holds no state
// besides its consensus collaborator and is safe for concurrent use.
type Decoder struct {
	consensus ConsensusDecoder
}

// NewDecoder returns a Decoder that hands raw block and transaction bodies to
// the given consensus decoder. A nil decoder selects WireDecoder.
func NewDecoder(consensus ConsensusDecoder) *Decoder {
	if consensus == nil {
		consensus = WireDecoder{}
	}

	return &Decoder{consensus: consensus}
}

// Decode decodes one multipart message using WireDecoder.
func Decode(frames [][]byte) (*Message, error) {
	return NewDecoder(nil).Decode(frames)
}

// Decode turns the frames of one multipart message into a Message. Every
// malformed input yields a *DecodeError; Decode never panics on remote data.
func (d *Decoder) Decode(frames [][]byte) (*Message, error) {
	if len(frames) != 2 && len(frames) != 3 {
		return nil, &DecodeError{
			Kind:   InvalidFrameCount,
			Length: len(frames),
		}
	}

	topic, ok := ParseTopic(frames[0])
	if !ok {
		return nil, &DecodeError{
			Kind:  UnknownTopic,
			Topic: slices.Clone(frames[0]),
		}
	}

	counter := fn.None[uint32]()
	if len(frames) == 3 {
		if len(frames[2]) != CounterSize {
			return nil, &DecodeError{
				Kind:   InvalidCounterFrame,
				Topic:  topic.Bytes(),
				Length: len(frames[2]),
			}
		}

		counter = fn.Some(binary.LittleEndian.Uint32(frames[2]))
	}

	content, err := d.decodeBody(topic, frames[1])
	if err != nil {
		return nil, err
	}

	return &Message{
		Content: content,
		Counter: counter,
	}, nil
}

// decodeBody applies the topic's decoding rule to the body frame.
func (d *Decoder) decodeBody(topic Topic, body []byte) (Content, error) {
	switch topic {
	case TopicHashBlock, TopicHashTx:
		if len(body) != HashSize {
			return nil, &DecodeError{
				Kind:   InvalidHashLength,
				Topic:  topic.Bytes(),
				Length: len(body),
			}
		}

		var hash Hash
		copy(hash[:], body)
		if topic == TopicHashBlock {
			return &HashBlock{Hash: hash}, nil
		}

		return &HashTx{Hash: hash}, nil

	case TopicRawBlock:
		block, err := d.consensus.DecodeBlock(body)
		if err != nil {
			return nil, &DecodeError{
				Kind:  ConsensusDecodeError,
				Topic: topic.Bytes(),
				Err:   err,
			}
		}

		return &Block{Raw: body, Block: block}, nil

	case TopicRawTx:
		tx, err := d.consensus.DecodeTx(body)
		if err != nil {
			return nil, &DecodeError{
				Kind:  ConsensusDecodeError,
				Topic: topic.Bytes(),
				Err:   err,
			}
		}

		return &Tx{Raw: body, Tx: tx}, nil

	default:
		event, err := decodeSequence(body)
		if err != nil {
			return nil, err
		}

		return &Sequence{SequenceEvent: event}, nil
	}
}
