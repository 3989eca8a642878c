package fork

import (
	"fmt"

	"github.com/tofuri-net/tofuri/pkg/block"
)

// appendBlock is the shared replay routine both Stable and Unstable
// drive their AppendBlock methods through (§4.E). loading is true when
// replaying previously-accepted blocks during startup/reorg rebuild,
// as opposed to applying a freshly-validated block; both paths run the
// identical state transition, so replay is deterministic regardless of
// when it runs.
func appendBlock(s *state, blk *block.Block, previousTimestamp uint32, rewardFn RewardFunc, loading bool) error {
	_ = loading // no special-casing today; kept for call-site clarity and future hooks (e.g. skipping re-verification while loading)

	// Reward is computed from total_staked as of the start of the block
	// (§4.E step 1), strictly before this block's own deposits and
	// withdrawals are applied below — snapshot it now.
	preBlockStaked := totalStaked(s.Staked)

	for _, t := range blk.Transactions {
		input, err := t.InputAddress()
		if err != nil {
			return fmt.Errorf("fork: transaction input: %w", err)
		}
		debit := t.Amount.Uint64() + t.Fee.Uint64()
		if s.Balance[input] < debit {
			return ErrOverflow
		}
		s.Balance[input] -= debit
		s.Balance[t.OutputAddress] += t.Amount.Uint64()
	}

	for _, st := range blk.Stakes {
		input, err := st.InputAddress()
		if err != nil {
			return fmt.Errorf("fork: stake input: %w", err)
		}
		if st.Deposit {
			debit := st.Amount.Uint64() + st.Fee.Uint64()
			if s.Balance[input] < debit {
				return ErrOverflow
			}
			s.Balance[input] -= debit
			wasNew := s.Staked[input] == 0
			s.Staked[input] += st.Amount.Uint64()
			if wasNew {
				s.Stakers = AddStaker(s.Stakers, input)
			}
		} else {
			if s.Balance[input] < st.Fee.Uint64() {
				return ErrOverflow
			}
			if s.Staked[input] < st.Amount.Uint64() {
				return ErrOverflow
			}
			s.Balance[input] -= st.Fee.Uint64()
			s.Staked[input] -= st.Amount.Uint64()
			s.Balance[input] += st.Amount.Uint64()
			if s.Staked[input] == 0 {
				delete(s.Staked, input)
				s.Stakers = RemoveStaker(s.Stakers, input)
			}
		}
	}

	forger, err := blk.InputAddress()
	if err != nil {
		return fmt.Errorf("fork: block forger: %w", err)
	}
	reward := blk.Reward(rewardFn(preBlockStaked))
	s.Balance[forger] += reward

	s.Stakers = UpdateStakers(s.Stakers, previousTimestamp, blk.Timestamp, forger)

	s.LatestBlocks = append(s.LatestBlocks, blk)
	if len(s.LatestBlocks) > LatestBlocksWindow {
		s.LatestBlocks = s.LatestBlocks[len(s.LatestBlocks)-LatestBlocksWindow:]
	}

	s.LatestBlock = blk
	s.Hashes = append(s.Hashes, blk.Hash())
	return nil
}
