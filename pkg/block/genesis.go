package block

import "github.com/tofuri-net/tofuri/pkg/types"

// GenesisTimestamp is the fixed timestamp of the network's genesis
// block, taken from the reference implementation's GENESIS_BLOCK_TIMESTAMP.
const GenesisTimestamp uint32 = 1680000000

// Genesis builds the network's genesis block: zero previous_hash, the
// fixed genesis timestamp, and a zero beta seed (so the first real
// block's VRF proof is taken over the all-zero alpha). It carries no
// transactions or stakes and is never signed — nodes load it by
// construction rather than by verifying a forger signature.
func Genesis() *Block {
	return &Block{
		PreviousHash: types.Hash{},
		Timestamp:    GenesisTimestamp,
	}
}
