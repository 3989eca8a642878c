package fork

import "github.com/tofuri-net/tofuri/pkg/block"

// Unstable is the tentative suffix of a branch: a replay of blocks
// above the stable prefix, rebuilt wholesale on reorg rather than
// patched in place (§3, §9: "Unstable is rebuilt, never aliased").
type Unstable struct {
	state
	reward RewardFunc
}

// NewUnstable creates an Unstable view seeded from base's state: its
// own balance/staked maps, stakers deque, and block window start as a
// copy of the stable prefix it sits on top of (§4.F.2: rebuilt by
// re-reading blocks along the new main path starting from stable).
func NewUnstable(base *Stable, reward RewardFunc) *Unstable {
	u := &Unstable{state: newState(), reward: reward}
	u.Balance = cloneBalances(base.Balance)
	u.Staked = cloneBalances(base.Staked)
	u.Stakers = base.GetStakers()
	u.LatestBlock = base.GetLatestBlock()
	u.LatestBlocks = base.GetLatestBlocks()
	return u
}

// IsStable reports false: Unstable is always the tentative view.
func (u *Unstable) IsStable() bool { return false }

// AppendBlock applies blk to this Unstable view via the shared replay
// routine.
func (u *Unstable) AppendBlock(blk *block.Block, previousTimestamp uint32, loading bool) error {
	return appendBlock(&u.state, blk, previousTimestamp, u.reward, loading)
}
