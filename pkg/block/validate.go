package block

// BlockSizeLimit is the maximum serialized block size (§6.2 BLOCK_SIZE_LIMIT).
const BlockSizeLimit = 57797

// emptyBlockSize is the serialized size of a block carrying no
// transactions or stakes — the fixed header/signature/length-prefix
// overhead every block pays regardless of contents.
var emptyBlockSize = len((&Block{}).Marshal())

// Size returns the block's serialized size in bytes.
func (b *Block) Size() int {
	return emptyBlockSize + txSize*len(b.Transactions) + stakeSize*len(b.Stakes)
}

// WithinSizeLimit reports whether the block satisfies the §4.B size
// bound (EMPTY_BLOCK_SIZE + TRANSACTION_SIZE·|tx| + STAKE_SIZE·|stake|
// ≤ BLOCK_SIZE_LIMIT).
func (b *Block) WithinSizeLimit() bool {
	return b.Size() <= BlockSizeLimit
}

// IsValid checks the block's stand-alone structural invariants: it is
// within the size bound, its signature recovers to a forger address,
// and every transaction and stake it carries is individually valid.
// It does not check VRF proof validity, staker-schedule legality, or
// any property that depends on chain state — those belong to the fork
// engine and coordinator (§4.E, §4.F), which have that state.
func (b *Block) IsValid() bool {
	if !b.WithinSizeLimit() {
		return false
	}
	if _, err := b.InputAddress(); err != nil {
		return false
	}
	for _, t := range b.Transactions {
		if !t.IsValid() {
			return false
		}
	}
	for _, s := range b.Stakes {
		if !s.IsValid() {
			return false
		}
	}
	return true
}
