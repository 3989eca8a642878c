package block

import (
	"encoding/binary"
	"fmt"

	"github.com/tofuri-net/tofuri/pkg/crypto"
	"github.com/tofuri-net/tofuri/pkg/stake"
	"github.com/tofuri-net/tofuri/pkg/tx"
	"github.com/tofuri-net/tofuri/pkg/types"
)

const txSize = types.AddressSize + 4 + 4 + 4 + crypto.SignatureSize
const stakeSize = 4 + 4 + 1 + 4 + crypto.SignatureSize

// Marshal serializes the block to its canonical binary form (§6.1):
// field order as declared, fixed arrays verbatim, vectors prefixed with
// an 8-byte little-endian length.
func (b *Block) Marshal() []byte {
	buf := make([]byte, 0, types.HashSize+4+crypto.PiSize+crypto.SignatureSize+64)
	buf = append(buf, b.PreviousHash[:]...)
	ts := make([]byte, 4)
	binary.LittleEndian.PutUint32(ts, b.Timestamp)
	buf = append(buf, ts...)
	buf = append(buf, b.Pi[:]...)
	buf = append(buf, b.Signature[:]...)

	txLen := make([]byte, 8)
	binary.LittleEndian.PutUint64(txLen, uint64(len(b.Transactions)))
	buf = append(buf, txLen...)
	for _, t := range b.Transactions {
		buf = append(buf, t.Marshal()...)
	}

	stakeLen := make([]byte, 8)
	binary.LittleEndian.PutUint64(stakeLen, uint64(len(b.Stakes)))
	buf = append(buf, stakeLen...)
	for _, s := range b.Stakes {
		buf = append(buf, s.Marshal()...)
	}

	return buf
}

// Unmarshal parses a block from its canonical binary form.
func Unmarshal(b []byte) (*Block, error) {
	const headSize = types.HashSize + 4 + crypto.PiSize + crypto.SignatureSize
	if len(b) < headSize+8 {
		return nil, fmt.Errorf("block: too short, got %d bytes", len(b))
	}
	blk := &Block{}
	off := 0
	copy(blk.PreviousHash[:], b[off:off+types.HashSize])
	off += types.HashSize
	blk.Timestamp = binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	copy(blk.Pi[:], b[off:off+crypto.PiSize])
	off += crypto.PiSize
	copy(blk.Signature[:], b[off:off+crypto.SignatureSize])
	off += crypto.SignatureSize

	if off+8 > len(b) {
		return nil, fmt.Errorf("block: truncated transaction count")
	}
	txCount := binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	blk.Transactions = make([]*tx.Transaction, 0, txCount)
	for i := uint64(0); i < txCount; i++ {
		if off+txSize > len(b) {
			return nil, fmt.Errorf("block: truncated transaction %d", i)
		}
		t, err := tx.Unmarshal(b[off : off+txSize])
		if err != nil {
			return nil, fmt.Errorf("block: transaction %d: %w", i, err)
		}
		blk.Transactions = append(blk.Transactions, t)
		off += txSize
	}

	if off+8 > len(b) {
		return nil, fmt.Errorf("block: truncated stake count")
	}
	stakeCount := binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	blk.Stakes = make([]*stake.Stake, 0, stakeCount)
	for i := uint64(0); i < stakeCount; i++ {
		if off+stakeSize > len(b) {
			return nil, fmt.Errorf("block: truncated stake %d", i)
		}
		s, err := stake.Unmarshal(b[off : off+stakeSize])
		if err != nil {
			return nil, fmt.Errorf("block: stake %d: %w", i, err)
		}
		blk.Stakes = append(blk.Stakes, s)
		off += stakeSize
	}

	if off != len(b) {
		return nil, fmt.Errorf("block: %d trailing bytes", len(b)-off)
	}

	return blk, nil
}
