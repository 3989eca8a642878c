package chain

import (
	"fmt"

	"github.com/tofuri-net/tofuri/pkg/block"
	"github.com/tofuri-net/tofuri/pkg/stake"
	"github.com/tofuri-net/tofuri/pkg/tx"
)

// PendingTransactionsPush admits a gossiped or locally-submitted
// transaction into the pending pool (§4.F: pending_transactions_push).
// Admission is checked against BalancePendingMin so a spender cannot
// queue more than their pending-adjusted balance can cover, then the
// transaction runs the same shape/signature/future-timestamp/
// already-in-chain checks a block's transactions face at validate time.
func (c *Chain) PendingTransactionsPush(t *tx.Transaction, now, timeDelta uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := t.Hash()
	if c.pendingTx.has(h) {
		return ErrTransactionPending
	}
	input, err := t.InputAddress()
	if err != nil {
		return fmt.Errorf("transaction signature: %w", err)
	}
	if t.Amount.Uint64()+t.Fee.Uint64() > c.balancePendingMinLocked(input) {
		return ErrTransactionTooExpensive
	}
	if err := validateTransaction(c.unstable, t, now+timeDelta); err != nil {
		return err
	}
	c.pendingTx.push(t)
	return nil
}

// PendingStakesPush admits a stake deposit or withdrawal into the
// pending pool (§4.F: pending_stakes_push). A deposit is charged
// against BalancePendingMin; a withdrawal is charged its fee against
// BalancePendingMin and its amount against StakedPendingMin.
func (c *Chain) PendingStakesPush(s *stake.Stake, now, timeDelta uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := s.Hash()
	if c.pendingStake.has(h) {
		return ErrStakePending
	}
	input, err := s.InputAddress()
	if err != nil {
		return fmt.Errorf("stake signature: %w", err)
	}
	if s.Deposit {
		if s.Amount.Uint64()+s.Fee.Uint64() > c.balancePendingMinLocked(input) {
			return ErrStakeDepositTooExpensive
		}
	} else {
		if s.Fee.Uint64() > c.balancePendingMinLocked(input) {
			return ErrStakeWithdrawFeeTooExpensive
		}
		if s.Amount.Uint64() > c.stakedPendingMinLocked(input) {
			return ErrStakeWithdrawAmountTooExpensive
		}
	}
	if err := validateStake(c.unstable, s, now+timeDelta); err != nil {
		return err
	}
	c.pendingStake.push(s)
	return nil
}

// PendingBlocksPush runs a received block through the full validate_block
// sequence and, once it passes, queues it to execute once its timestamp
// arrives (§4.F: pending_blocks_push; blocks execute only when
// block.timestamp <= now, see SaveBlocks).
func (c *Chain) PendingBlocksPush(blk *block.Block, now, timeDelta uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := blk.Hash()
	if c.pendingBlock.has(h) {
		return ErrBlockPending
	}
	if _, err := c.validateBlockLocked(blk, now, timeDelta); err != nil {
		return err
	}
	c.pendingBlock.push(blk)
	return nil
}
