package zmqmsg

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// ErrTrailingBytes is returned by WireDecoder when a body holds more bytes
// than the decoded block or transaction consumed.
var ErrTrailingBytes = errors.New("trailing bytes after consensus object")

// ConsensusDecoder turns raw block and transaction bodies into domain values.
// It owns every consensus format rule; the message decoder only frames the
// bytes and hands them over untouched.
type ConsensusDecoder interface {
	// DecodeBlock deserializes a raw block.
	DecodeBlock(raw []byte) (*wire.MsgBlock, error)

	// DecodeTx deserializes a raw transaction.
	DecodeTx(raw []byte) (*wire.MsgTx, error)
}

// WireDecoder is the ConsensusDecoder backed by btcd's wire package. Bodies
// must be consumed exactly; trailing bytes are rejected.
type WireDecoder struct{}

// A compile time check to ensure WireDecoder implements ConsensusDecoder.
var _ ConsensusDecoder = (*WireDecoder)(nil)

// DecodeBlock deserializes a raw block using the witness encoding.
func (WireDecoder) DecodeBlock(raw []byte) (*wire.MsgBlock, error) {
	r := bytes.NewReader(raw)

	block := &wire.MsgBlock{}
	if err := block.Deserialize(r); err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d", ErrTrailingBytes, r.Len())
	}

	return block, nil
}

// DecodeTx deserializes a raw transaction using the witness encoding.
func (WireDecoder) DecodeTx(raw []byte) (*wire.MsgTx, error) {
	r := bytes.NewReader(raw)

	tx := &wire.MsgTx{}
	if err := tx.Deserialize(r); err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d", ErrTrailingBytes, r.Len())
	}

	return tx, nil
}
