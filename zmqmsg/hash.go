package zmqmsg

import (
	"encoding/hex"
	"slices"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// HashSize is the length in bytes of a block hash or transaction id.
const HashSize = chainhash.HashSize

// Hash is a 32-byte block hash or transaction id, stored exactly in the byte
// order it was received in. bitcoind publishes hashes in display order, i.e.
// reversed relative to the internal order used by chainhash.Hash.
type Hash [HashSize]byte

// String returns the hex encoding of the hash bytes as received.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ChainHash converts the received display-order bytes into a chainhash.Hash,
// whose own String method renders the familiar block explorer form.
func (h Hash) ChainHash() chainhash.Hash {
	var ch chainhash.Hash
	copy(ch[:], h[:])
	slices.Reverse(ch[:])

	return ch
}

// HashFromChainHash is the inverse of ChainHash.
func HashFromChainHash(ch chainhash.Hash) Hash {
	var h Hash
	copy(h[:], ch[:])
	slices.Reverse(h[:])

	return h
}
