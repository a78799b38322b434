package zmqmsg

import (
	"bytes"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// testTx returns a small transaction with one input, one output and a
// witness.
func testTx(witness bool) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{
			Hash:  chainhash.Hash{0x01, 0x02},
			Index: 3,
		},
		SignatureScript: []byte{0x51},
		Sequence:        wire.MaxTxInSequenceNum,
	})
	if witness {
		tx.TxIn[0].SignatureScript = nil
		tx.TxIn[0].Witness = wire.TxWitness{{0xde, 0xad}, {0xbe}}
	}
	tx.AddTxOut(wire.NewTxOut(5000, []byte{0x00, 0x14}))

	return tx
}

// testBlock returns a block holding the given transactions.
func testBlock(txns ...*wire.MsgTx) *wire.MsgBlock {
	block := wire.NewMsgBlock(wire.NewBlockHeader(
		4, &chainhash.Hash{0x0a}, &chainhash.Hash{0x0b}, 0x1d00ffff, 7,
	))
	block.Header.Timestamp = time.Unix(1700000000, 0)
	for _, tx := range txns {
		_ = block.AddTransaction(tx)
	}

	return block
}

// TestRawRoundTrip checks raw bodies pass through the decoder unmodified and
// re-serialize to the same bytes.
func TestRawRoundTrip(t *testing.T) {
	t.Parallel()

	for _, witness := range []bool{false, true} {
		var txBuf bytes.Buffer
		require.NoError(t, testTx(witness).Serialize(&txBuf))
		rawTx := txBuf.Bytes()

		msg, err := Decode([][]byte{[]byte("rawtx"), rawTx})
		require.NoError(t, err)

		tx, ok := msg.Content.(*Tx)
		require.True(t, ok)
		require.Equal(t, rawTx, tx.Raw)
		require.Equal(t, testTx(witness).TxHash(), tx.Tx.TxHash())

		var reTx bytes.Buffer
		require.NoError(t, tx.Tx.Serialize(&reTx))
		require.Equal(t, rawTx, reTx.Bytes())
		require.Equal(t, rawTx, msg.Frames()[1])
	}

	block := testBlock(testTx(false), testTx(true))
	var blockBuf bytes.Buffer
	require.NoError(t, block.Serialize(&blockBuf))
	rawBlock := blockBuf.Bytes()

	msg, err := Decode([][]byte{
		[]byte("rawblock"), rawBlock, {9, 0, 0, 0},
	})
	require.NoError(t, err)

	b, ok := msg.Content.(*Block)
	require.True(t, ok)
	require.Equal(t, block.BlockHash(), b.Block.BlockHash())
	require.Len(t, b.Block.Transactions, 2)

	var reBlock bytes.Buffer
	require.NoError(t, b.Block.Serialize(&reBlock))
	require.Equal(t, rawBlock, reBlock.Bytes())
	require.Equal(t, [][]byte{
		[]byte("rawblock"), rawBlock, {9, 0, 0, 0},
	}, msg.Frames())
}

// TestWireDecoderTrailingBytes checks that extra bytes after a valid
// transaction are rejected instead of silently ignored.
func TestWireDecoderTrailingBytes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, testTx(false).Serialize(&buf))
	raw := append(buf.Bytes(), 0x00)

	_, err := WireDecoder{}.DecodeTx(raw)
	require.ErrorIs(t, err, ErrTrailingBytes)

	_, err = Decode([][]byte{[]byte("rawtx"), raw})
	requireKind(t, err, ConsensusDecodeError)
	require.ErrorIs(t, err, ErrTrailingBytes)
}

// TestHashByteOrder checks the conversion between received and chainhash
// byte order.
func TestHashByteOrder(t *testing.T) {
	t.Parallel()

	var h Hash
	for i := range h {
		h[i] = byte(i)
	}

	ch := h.ChainHash()
	require.Equal(t, byte(31), ch[0])
	require.Equal(t, byte(0), ch[31])
	require.Equal(t, h, HashFromChainHash(ch))

	// chainhash renders in reversed order, so it matches the received
	// order rendering.
	require.Equal(t, h.String(), ch.String())
}
