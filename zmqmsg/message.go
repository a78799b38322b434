package zmqmsg

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// CounterSize is the length of the optional trailing message counter frame.
const CounterSize = 4

// Content is the topic specific payload of a Message. The set of
// implementations is closed: *HashBlock, *HashTx, *Block, *Tx and *Sequence.
type Content interface {
	// Topic returns the topic the content was published under.
	Topic() Topic

	// body returns the wire form of the content.
	body() []byte
}

// HashBlock is the content of a hashblock notification.
type HashBlock struct {
	Hash Hash
}

// Topic returns TopicHashBlock.
func (*HashBlock) Topic() Topic { return TopicHashBlock }

func (c *HashBlock) body() []byte { return c.Hash[:] }

// HashTx is the content of a hashtx notification.
type HashTx struct {
	Hash Hash
}

// Topic returns TopicHashTx.
func (*HashTx) Topic() Topic { return TopicHashTx }

func (c *HashTx) body() []byte { return c.Hash[:] }

// Block is the content of a rawblock notification.
type Block struct {
	// Raw is the block exactly as received.
	Raw []byte

	// Block is the consensus decoded form of Raw.
	Block *wire.MsgBlock
}

// Topic returns TopicRawBlock.
func (*Block) Topic() Topic { return TopicRawBlock }

func (c *Block) body() []byte { return c.Raw }

// Tx is the content of a rawtx notification.
type Tx struct {
	// Raw is the transaction exactly as received.
	Raw []byte

	// Tx is the consensus decoded form of Raw.
	Tx *wire.MsgTx
}

// Topic returns TopicRawTx.
func (*Tx) Topic() Topic { return TopicRawTx }

func (c *Tx) body() []byte { return c.Raw }

// Sequence is the content of a sequence notification.
type Sequence struct {
	SequenceEvent
}

// Topic returns TopicSequence.
func (*Sequence) Topic() Topic { return TopicSequence }

func (c *Sequence) body() []byte { return c.SequenceEvent.bytes() }

// Message is a decoded notification.
type Message struct {
	// Content is the topic specific payload.
	Content Content

	// Counter is the publisher's message counter, present only when the
	// multipart message carried the trailing counter frame. It can be used
	// to detect dropped notifications, and is never used to reorder.
	Counter fn.Option[uint32]
}

// Topic returns the topic of the message content.
func (m *Message) Topic() Topic {
	return m.Content.Topic()
}

// Frames serializes the message back into its multipart form: the topic, the
// body, and the counter frame if the message has a counter.
func (m *Message) Frames() [][]byte {
	frames := [][]byte{m.Topic().Bytes(), m.Content.body()}
	m.Counter.WhenSome(func(c uint32) {
		frames = append(
			frames, binary.LittleEndian.AppendUint32(nil, c),
		)
	})

	return frames
}

// String renders the message for logs.
func (m *Message) String() string {
	var s string
	switch c := m.Content.(type) {
	case *HashBlock:
		s = fmt.Sprintf("HashBlock(%v)", c.Hash)
	case *HashTx:
		s = fmt.Sprintf("HashTx(%v)", c.Hash)
	case *Block:
		s = fmt.Sprintf("Block(%v, txns=%d)", c.Block.BlockHash(),
			len(c.Block.Transactions))
	case *Tx:
		s = fmt.Sprintf("Tx(%v)", c.Tx.TxHash())
	case *Sequence:
		s = fmt.Sprintf("Sequence(%v)", c.SequenceEvent)
	default:
		s = fmt.Sprintf("%T", c)
	}

	return fn.ElimOption(
		m.Counter,
		func() string { return s },
		func(c uint32) string {
			return fmt.Sprintf("%s counter=%d", s, c)
		},
	)
}
