package fork

import (
	"github.com/tofuri-net/tofuri/pkg/block"
	"github.com/tofuri-net/tofuri/pkg/types"
)

// Checkpoint summarizes Stable state below a fixed height, letting a
// restarted node skip replaying the entire committed prefix (§3, §9).
type Checkpoint struct {
	Height    uint64
	Balance   map[types.Address]uint64
	Staked    map[types.Address]uint64
	Stakers   []types.Address
	LastBlock types.Hash
}

// Stable is the committed prefix of the chain: the same replay state
// as Unstable, plus an optional checkpoint enabling faster cold start.
type Stable struct {
	state
	reward     RewardFunc
	Checkpoint *Checkpoint
}

// NewStable creates an empty Stable view — the state at the genesis
// previous-hash, before any block has been applied.
func NewStable(reward RewardFunc) *Stable {
	return &Stable{state: newState(), reward: reward}
}

// NewStableFromCheckpoint seeds a Stable view from a checkpoint instead
// of replaying from genesis.
func NewStableFromCheckpoint(cp *Checkpoint, reward RewardFunc) *Stable {
	s := &Stable{state: newState(), reward: reward, Checkpoint: cp}
	s.Balance = cloneBalances(cp.Balance)
	s.Staked = cloneBalances(cp.Staked)
	s.Stakers = append([]types.Address(nil), cp.Stakers...)
	return s
}

// IsStable reports true: Stable is always the committed view.
func (s *Stable) IsStable() bool { return true }

// AppendBlock applies blk to this Stable view via the shared replay
// routine — used when an Unstable block graduates past the trust
// horizon and commits (§4.F.2).
func (s *Stable) AppendBlock(blk *block.Block, previousTimestamp uint32, loading bool) error {
	return appendBlock(&s.state, blk, previousTimestamp, s.reward, loading)
}

// Snapshot captures the current state as a new checkpoint.
func (s *Stable) Snapshot(height uint64) *Checkpoint {
	var last types.Hash
	if n := len(s.Hashes); n > 0 {
		last = s.Hashes[n-1]
	}
	return &Checkpoint{
		Height:    height,
		Balance:   cloneBalances(s.Balance),
		Staked:    cloneBalances(s.Staked),
		Stakers:   append([]types.Address(nil), s.Stakers...),
		LastBlock: last,
	}
}
