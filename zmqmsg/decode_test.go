package zmqmsg

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// hashGen draws a 32 byte hash.
func hashGen() *rapid.Generator[Hash] {
	return rapid.Custom(func(t *rapid.T) Hash {
		var h Hash
		b := rapid.SliceOfN(rapid.Byte(), HashSize, HashSize).Draw(
			t, "hash",
		)
		copy(h[:], b)

		return h
	})
}

// requireKind asserts err is a *DecodeError of the given kind that also
// matches the kind's sentinel.
func requireKind(t require.TestingT, err error, kind DecodeErrorKind) {
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	require.Equal(t, kind, decErr.Kind)
	require.ErrorIs(t, err, kind.sentinel())
}

// TestDecodeHashProperty checks that every 32 byte body decodes verbatim
// into a hash message without a counter.
func TestDecodeHashProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		h := hashGen().Draw(t, "h")

		msg, err := Decode([][]byte{[]byte("hashblock"), h[:]})
		require.NoError(t, err)
		require.Equal(t, &HashBlock{Hash: h}, msg.Content)
		require.True(t, msg.Counter.IsNone())

		msg, err = Decode([][]byte{[]byte("hashtx"), h[:]})
		require.NoError(t, err)
		require.Equal(t, &HashTx{Hash: h}, msg.Content)
	})
}

// TestDecodeHashLengthProperty checks that any body length other than 32 is
// rejected, never truncated or padded.
func TestDecodeHashLengthProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 128).Filter(func(n int) bool {
			return n != HashSize
		}).Draw(t, "len")
		body := rapid.SliceOfN(rapid.Byte(), n, n).Draw(t, "body")
		topic := rapid.SampledFrom(
			[]string{"hashblock", "hashtx"},
		).Draw(t, "topic")

		_, err := Decode([][]byte{[]byte(topic), body})
		requireKind(t, err, InvalidHashLength)

		var decErr *DecodeError
		require.ErrorAs(t, err, &decErr)
		require.Equal(t, n, decErr.Length)
	})
}

// TestDecodeSequenceBlockProperty checks block connect and disconnect
// notifications never carry a mempool sequence number.
func TestDecodeSequenceBlockProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		h := hashGen().Draw(t, "h")
		label := rapid.SampledFrom(
			[]SequenceLabel{BlockConnected, BlockDisconnected},
		).Draw(t, "label")

		body := append(h[:], byte(label))
		msg, err := Decode([][]byte{[]byte("sequence"), body})
		require.NoError(t, err)

		seq, ok := msg.Content.(*Sequence)
		require.True(t, ok)
		require.Equal(t, h, seq.Hash)
		require.Equal(t, label, seq.Label)
		require.True(t, seq.MempoolSequence.IsNone())
	})
}

// TestDecodeSequenceMempoolProperty checks that mempool notifications carry
// the little endian mempool sequence number.
func TestDecodeSequenceMempoolProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		h := hashGen().Draw(t, "h")
		n := rapid.Uint64().Draw(t, "n")
		label := rapid.SampledFrom(
			[]SequenceLabel{TransactionAdded, TransactionRemoved},
		).Draw(t, "label")

		body := append(h[:], byte(label))
		body = binary.LittleEndian.AppendUint64(body, n)

		msg, err := Decode([][]byte{[]byte("sequence"), body})
		require.NoError(t, err)
		require.Equal(t, &Sequence{
			SequenceEvent: NewMempoolSequence(label, h, n),
		}, msg.Content)
	})
}

// TestDecodeSequenceUnknownLabelProperty checks every label outside C, D, R
// and A is rejected.
func TestDecodeSequenceUnknownLabelProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		h := hashGen().Draw(t, "h")
		label := rapid.Byte().Filter(func(b byte) bool {
			switch SequenceLabel(b) {
			case BlockConnected, BlockDisconnected,
				TransactionAdded, TransactionRemoved:

				return false
			}

			return true
		}).Draw(t, "label")

		body := append(h[:], label)
		_, err := Decode([][]byte{[]byte("sequence"), body})
		requireKind(t, err, UnknownSequenceLabel)

		var decErr *DecodeError
		require.ErrorAs(t, err, &decErr)
		require.Equal(t, label, decErr.Label)
	})
}

// TestDecodeFrameCountProperty checks that frame sets with the wrong number
// of frames never decode into a message.
func TestDecodeFrameCountProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.SampledFrom([]int{0, 1, 4, 5, 8}).Draw(t, "n")
		frames := make([][]byte, n)
		for i := range frames {
			frames[i] = rapid.SliceOfN(rapid.Byte(), 0, 40).Draw(
				t, "frame",
			)
		}

		msg, err := Decode(frames)
		require.Nil(t, msg)
		requireKind(t, err, InvalidFrameCount)
	})
}

// TestDecodeFramesRoundTrip checks that re-serializing a decoded message
// reproduces the frames it was decoded from.
func TestDecodeFramesRoundTrip(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		h := hashGen().Draw(t, "h")

		var body []byte
		topic := rapid.SampledFrom([]Topic{
			TopicHashBlock, TopicHashTx, TopicSequence,
		}).Draw(t, "topic")
		switch topic {
		case TopicSequence:
			body = append(h[:], byte(TransactionAdded))
			body = binary.LittleEndian.AppendUint64(
				body, rapid.Uint64().Draw(t, "n"),
			)
		default:
			body = h[:]
		}

		frames := [][]byte{topic.Bytes(), body}
		if rapid.Bool().Draw(t, "counter") {
			frames = append(frames, binary.LittleEndian.AppendUint32(
				nil, rapid.Uint32().Draw(t, "c"),
			))
		}

		msg, err := Decode(frames)
		require.NoError(t, err)
		require.Equal(t, frames, msg.Frames())
	})
}

// TestDecodeErrors exercises each decode failure with a concrete input.
func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	var h Hash
	h[0] = 0xaa

	testCases := []struct {
		name   string
		frames [][]byte
		kind   DecodeErrorKind
	}{
		{
			name:   "no frames",
			frames: nil,
			kind:   InvalidFrameCount,
		},
		{
			name:   "topic only",
			frames: [][]byte{[]byte("hashtx")},
			kind:   InvalidFrameCount,
		},
		{
			name:   "unknown topic",
			frames: [][]byte{[]byte("rawblockx"), h[:]},
			kind:   UnknownTopic,
		},
		{
			name:   "topic is case sensitive",
			frames: [][]byte{[]byte("HASHTX"), h[:]},
			kind:   UnknownTopic,
		},
		{
			name:   "non utf8 topic",
			frames: [][]byte{{0xff, 0xfe}, h[:]},
			kind:   UnknownTopic,
		},
		{
			name: "short counter",
			frames: [][]byte{
				[]byte("hashtx"), h[:], {1, 2, 3},
			},
			kind: InvalidCounterFrame,
		},
		{
			name: "long counter",
			frames: [][]byte{
				[]byte("hashtx"), h[:], {1, 2, 3, 4, 5},
			},
			kind: InvalidCounterFrame,
		},
		{
			name:   "empty hash",
			frames: [][]byte{[]byte("hashblock"), {}},
			kind:   InvalidHashLength,
		},
		{
			name: "hash too long",
			frames: [][]byte{
				[]byte("hashblock"), append(h[:], 0),
			},
			kind: InvalidHashLength,
		},
		{
			name:   "sequence too short",
			frames: [][]byte{[]byte("sequence"), h[:]},
			kind:   InvalidSequenceLength,
		},
		{
			name: "block sequence with mempool number",
			frames: [][]byte{
				[]byte("sequence"),
				append(append(h[:], 'C'), make([]byte, 8)...),
			},
			kind: InvalidSequenceLength,
		},
		{
			name: "mempool sequence without number",
			frames: [][]byte{
				[]byte("sequence"), append(h[:], 'A'),
			},
			kind: InvalidSequenceLength,
		},
		{
			name: "unknown label",
			frames: [][]byte{
				[]byte("sequence"), append(h[:], 'X'),
			},
			kind: UnknownSequenceLabel,
		},
		{
			name:   "garbage raw tx",
			frames: [][]byte{[]byte("rawtx"), {0x01, 0x02}},
			kind:   ConsensusDecodeError,
		},
		{
			name:   "empty raw block",
			frames: [][]byte{[]byte("rawblock"), {}},
			kind:   ConsensusDecodeError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			msg, err := Decode(tc.frames)
			require.Nil(t, msg)
			requireKind(t, err, tc.kind)
			require.NotEmpty(t, err.Error())
		})
	}
}

// TestDecodeCounter checks the counter frame is parsed little endian and
// attached to the message.
func TestDecodeCounter(t *testing.T) {
	t.Parallel()

	var h Hash
	msg, err := Decode([][]byte{
		[]byte("sequence"), append(h[:], 'D'), {0x05, 0x01, 0, 0},
	})
	require.NoError(t, err)
	require.Equal(t, fn.Some(uint32(261)), msg.Counter)
	require.Equal(t, TopicSequence, msg.Topic())
	require.Contains(t, msg.String(), "BlockDisconnected")
	require.Contains(t, msg.String(), "counter=261")
}

// failingDecoder is a ConsensusDecoder that rejects everything.
type failingDecoder struct {
	err error
}

func (f *failingDecoder) DecodeBlock([]byte) (*wire.MsgBlock, error) {
	return nil, f.err
}

func (f *failingDecoder) DecodeTx([]byte) (*wire.MsgTx, error) {
	return nil, f.err
}

// TestDecodeConsensusCause checks the collaborator's error stays reachable.
func TestDecodeConsensusCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("bad script")
	dec := NewDecoder(&failingDecoder{err: cause})

	_, err := dec.Decode([][]byte{[]byte("rawtx"), {0x00}})
	requireKind(t, err, ConsensusDecodeError)
	require.ErrorIs(t, err, cause)
}
