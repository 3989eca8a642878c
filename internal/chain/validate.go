package chain

import (
	"fmt"

	"github.com/tofuri-net/tofuri/internal/fork"
	"github.com/tofuri-net/tofuri/pkg/block"
	"github.com/tofuri-net/tofuri/pkg/crypto"
	"github.com/tofuri-net/tofuri/pkg/stake"
	"github.com/tofuri-net/tofuri/pkg/tx"
	"github.com/tofuri-net/tofuri/pkg/types"
)

// validateTransaction checks a transaction against a candidate fork view
// and the current time horizon (§4.F, validate_transaction). Standalone
// shape invariants (positive amount/fee, input != output) mirror
// tx.IsValid, broken out here so each failure maps to its own §7 error
// kind instead of one opaque bool.
func validateTransaction(f fork.Fork, t *tx.Transaction, now uint32) error {
	if t.Amount.IsZero() {
		return ErrTransactionAmountZero
	}
	if t.Fee.IsZero() {
		return ErrTransactionFeeZero
	}
	input, err := t.InputAddress()
	if err != nil {
		return fmt.Errorf("transaction signature: %w", err)
	}
	if input == t.OutputAddress {
		return ErrTransactionInputOutput
	}
	if t.Timestamp == 0 {
		return ErrTransactionTimestamp
	}
	if t.Timestamp > now {
		return ErrTransactionTimestampFuture
	}
	if fork.TransactionInChain(f, t.Hash()) {
		return ErrTransactionInChain
	}
	return nil
}

// validateStake is validateTransaction's stake-side twin.
func validateStake(f fork.Fork, s *stake.Stake, now uint32) error {
	if s.Amount.IsZero() {
		return ErrStakeAmountZero
	}
	if s.Fee.IsZero() {
		return ErrStakeFeeZero
	}
	if _, err := s.InputAddress(); err != nil {
		return fmt.Errorf("stake signature: %w", err)
	}
	if s.Timestamp == 0 {
		return ErrStakeTimestamp
	}
	if s.Timestamp > now {
		return ErrStakeTimestampFuture
	}
	if fork.StakeInChain(f, s.Hash()) {
		return ErrStakeInChain
	}
	return nil
}

// validateBlockTimestamp enforces §4.F.1 step 5: block.timestamp must be
// strictly after the previous block's timestamp, the gap must be a
// positive multiple of BlockTime, and it must not exceed the future
// tolerance.
func validateBlockTimestamp(timestamp, previousTimestamp, now uint32) error {
	if timestamp <= previousTimestamp {
		return ErrBlockTimestamp
	}
	delta := timestamp - previousTimestamp
	if delta%fork.BlockTime != 0 {
		return ErrBlockTimestamp
	}
	if timestamp > now {
		return ErrBlockTimestampFuture
	}
	return nil
}

// ValidateBlock runs the full §4.F.1 check sequence against a candidate
// branch anchored at block.PreviousHash, returning the built candidate
// view so a caller that will go on to accept the block doesn't have to
// replay it a second time.
func (c *Chain) ValidateBlock(blk *block.Block, now, timeDelta uint32) (*fork.Unstable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validateBlockLocked(blk, now, timeDelta)
}

func (c *Chain) validateBlockLocked(blk *block.Block, now, timeDelta uint32) (*fork.Unstable, error) {
	h := blk.Hash()
	if _, ok := c.tree.Get(h); ok {
		return nil, ErrBlockHashInTree
	}
	if !blk.PreviousHash.IsZero() {
		if _, ok := c.tree.Get(blk.PreviousHash); !ok {
			return nil, ErrBlockPreviousHashNotInTree
		}
	}
	deadline := now + timeDelta
	if blk.Timestamp > deadline {
		return nil, ErrBlockTimestampFuture
	}

	candidate, err := c.candidateAt(blk.PreviousHash)
	if err != nil {
		return nil, err
	}
	previousTimestamp := previousTimestampOf(candidate)

	if err := validateBlockTimestamp(blk.Timestamp, previousTimestamp, deadline); err != nil {
		return nil, err
	}

	forger, err := forgerAddress(blk)
	if err != nil {
		return nil, fmt.Errorf("block signature: %w", err)
	}

	var prevBeta types.Hash
	if prevBlock := candidate.GetLatestBlock(); prevBlock != nil {
		prevBeta = prevBlock.Beta()
	}
	pub, err := blk.InputPublicKey()
	if err != nil {
		return nil, fmt.Errorf("block signature: %w", err)
	}
	if !crypto.VRFVerify(pub, prevBeta[:], blk.Beta(), blk.Pi) {
		return nil, fmt.Errorf("vrf verify failed")
	}

	if staker, ok := fork.NextStaker(candidate.GetStakers(), previousTimestamp, blk.Timestamp); ok {
		if staker != forger {
			return nil, ErrBlockStakerAddress
		}
	}

	for _, t := range blk.Transactions {
		if err := validateTransaction(candidate, t, deadline); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", t.Hash(), err)
		}
	}
	for _, s := range blk.Stakes {
		if err := validateStake(candidate, s, deadline); err != nil {
			return nil, fmt.Errorf("stake %s: %w", s.Hash(), err)
		}
	}

	if err := fork.CheckOverflow(candidate.Balance, candidate.Staked, blk.Transactions, blk.Stakes); err != nil {
		if err == fork.ErrOverflow {
			return nil, ErrOverflow
		}
		return nil, err
	}

	return candidate, nil
}

// candidateAt builds the Unstable view anchored at ancestor (§4.F.1 step
// 4): reuses the current Unstable verbatim when ancestor is its tip
// (the common case — extending main), otherwise replays the ancestor's
// own branch on top of Stable from the first hash not already committed.
func (c *Chain) candidateAt(ancestor types.Hash) (*fork.Unstable, error) {
	if lb := c.unstable.GetLatestBlock(); lb != nil && lb.Hash() == ancestor {
		return c.unstable, nil
	}
	if ancestor.IsZero() || ancestor == c.genesisHash {
		return fork.NewUnstable(c.stable, c.reward), nil
	}

	path := c.dropGenesis(c.tree.PathToRoot(ancestor))
	stableHashes := c.stable.GetHashes()
	if len(path) < len(stableHashes) {
		return nil, fmt.Errorf("candidate: ancestor %s is below the stable horizon", ancestor)
	}
	for i, sh := range stableHashes {
		if path[i] != sh {
			return nil, fmt.Errorf("candidate: ancestor %s diverges from committed history", ancestor)
		}
	}

	candidate := fork.NewUnstable(c.stable, c.reward)
	for _, h := range path[len(stableHashes):] {
		blk, err := getBlock(c.store, h)
		if err != nil {
			return nil, fmt.Errorf("candidate: replay %s: %w", h, err)
		}
		prevTs := previousTimestampOf(candidate)
		if err := candidate.AppendBlock(blk, prevTs, true); err != nil {
			return nil, fmt.Errorf("candidate: replay %s: %w", h, err)
		}
	}
	return candidate, nil
}
