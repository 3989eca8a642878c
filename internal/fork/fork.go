// Package fork implements the two views of chain state that sit above
// the tree: a committed Stable prefix and a tentative Unstable suffix,
// sharing one replay routine (§4.E). Both track account balances,
// staked amounts, the staker round-robin deque, and a sliding window of
// recent blocks used to reject replayed transactions and stakes.
package fork

import (
	"github.com/tofuri-net/tofuri/pkg/block"
	"github.com/tofuri-net/tofuri/pkg/types"
)

// BlockTime is the fixed spacing between legal block slots, in seconds
// (§6.2 BLOCK_TIME).
const BlockTime = 60

// LatestBlocksWindow bounds how many recently-applied blocks a fork
// keeps for duplicate transaction/stake detection. It must cover at
// least the longest timestamp gap a block may legally have relative to
// "now" divided by BlockTime, so transaction_in_chain/stake_in_chain
// can't miss a recent inclusion (§4.E step 6). ElapsedSeconds (the
// pending-pool retention horizon) divided by BlockTime, rounded up to
// whole blocks (90/60 -> 2), is that bound; doubled (to 4) for margin
// against slot-missing stakers stretching real time between blocks.
const LatestBlocksWindow = 2 * (90 / BlockTime + 1)

// Fork is the capability interface shared by Stable and Unstable
// (§9 design note: "a shared capability interface ... implemented by
// both; the replay routine is one function parameterised on that
// interface").
type Fork interface {
	GetHashes() []types.Hash
	GetStakers() []types.Address
	GetBalance(types.Address) uint64
	GetStaked(types.Address) uint64
	GetLatestBlock() *block.Block
	GetLatestBlocks() []*block.Block
	IsStable() bool
	AppendBlock(blk *block.Block, previousTimestamp uint32, loading bool) error
}

// RewardFunc computes the per-block reward for a given total staked
// amount (§4.E step 1, §4.E.2's Open Question 3): monotone-non-increasing,
// bounded, deterministic.
type RewardFunc func(totalStaked uint64) uint64

// state holds the fields common to both Stable and Unstable (§3):
// the ordered hash list for this branch above its base, the staker
// deque (oldest at front), balance/staked maps, and the latest block
// plus a sliding window of recently-applied blocks.
type state struct {
	Hashes       []types.Hash
	Stakers      []types.Address
	Balance      map[types.Address]uint64
	Staked       map[types.Address]uint64
	LatestBlock  *block.Block
	LatestBlocks []*block.Block
}

func newState() state {
	return state{
		Balance: make(map[types.Address]uint64),
		Staked:  make(map[types.Address]uint64),
	}
}

func (s *state) GetHashes() []types.Hash {
	out := make([]types.Hash, len(s.Hashes))
	copy(out, s.Hashes)
	return out
}

func (s *state) GetStakers() []types.Address {
	out := make([]types.Address, len(s.Stakers))
	copy(out, s.Stakers)
	return out
}

func (s *state) GetBalance(a types.Address) uint64 {
	return s.Balance[a]
}

func (s *state) GetStaked(a types.Address) uint64 {
	return s.Staked[a]
}

func (s *state) GetLatestBlock() *block.Block {
	return s.LatestBlock
}

func (s *state) GetLatestBlocks() []*block.Block {
	out := make([]*block.Block, len(s.LatestBlocks))
	copy(out, s.LatestBlocks)
	return out
}

// totalStaked sums every address's staked amount.
func totalStaked(staked map[types.Address]uint64) uint64 {
	var total uint64
	for _, v := range staked {
		total += v
	}
	return total
}

// containsHash reports whether any block in blocks carries a
// transaction or stake with the given hash — the check behind
// TransactionInChain/StakeInChain (§7), scoped to LatestBlocksWindow.
func containsHash(blocks []*block.Block, h types.Hash, stake bool) bool {
	for _, b := range blocks {
		if stake {
			for _, s := range b.Stakes {
				if s.Hash() == h {
					return true
				}
			}
		} else {
			for _, t := range b.Transactions {
				if t.Hash() == h {
					return true
				}
			}
		}
	}
	return false
}

// TransactionInChain reports whether a transaction with hash h already
// appears in the fork's recent block window.
func TransactionInChain(f Fork, h types.Hash) bool {
	return containsHash(f.GetLatestBlocks(), h, false)
}

// StakeInChain reports whether a stake with hash h already appears in
// the fork's recent block window.
func StakeInChain(f Fork, h types.Hash) bool {
	return containsHash(f.GetLatestBlocks(), h, true)
}
