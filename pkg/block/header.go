// Package block implements the Block record: the unit of consensus
// agreement binding a previous block, a VRF proof, and the transactions
// and stakes it carries.
package block

import (
	"encoding/binary"

	"github.com/tofuri-net/tofuri/pkg/crypto"
	"github.com/tofuri-net/tofuri/pkg/types"
)

// Header is the hashed portion of a block: everything except the
// forger's signature over that hash. It is computed on demand from a
// Block's fields rather than stored, since the merkle roots are
// derivable from Transactions/Stakes.
type Header struct {
	PreviousHash    types.Hash
	TransactionRoot types.Hash
	StakeRoot       types.Hash
	Timestamp       uint32
	Pi              crypto.Pi
}

// signingBytes returns the canonical preimage:
// previous_hash ‖ transaction_root ‖ stake_root ‖ timestamp_be ‖ pi.
func (h Header) signingBytes() []byte {
	buf := make([]byte, 0, types.HashSize*3+4+crypto.PiSize)
	buf = append(buf, h.PreviousHash[:]...)
	buf = append(buf, h.TransactionRoot[:]...)
	buf = append(buf, h.StakeRoot[:]...)
	ts := make([]byte, 4)
	binary.BigEndian.PutUint32(ts, h.Timestamp)
	buf = append(buf, ts...)
	buf = append(buf, h.Pi[:]...)
	return buf
}

// Hash is the block identity hash: SHA-256 over the header fields.
// Excludes the forger's signature so the hash is stable under signing.
func (h Header) Hash() types.Hash {
	return crypto.Hash(h.signingBytes())
}
