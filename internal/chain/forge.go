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

// ForgeBlock builds, signs, and accepts a block for slot t on top of the
// current main tip (§4.F.3: forge_block). Pending transactions and
// stakes are selected highest-fee-first and trimmed until the block
// satisfies its wire size bound, then the block runs through the same
// save_block path as any received block, so the forger is held to
// exactly the invariants it imposes on everyone else.
func (c *Chain) ForgeBlock(key *crypto.PrivateKey, t, timeDelta, now uint32) (*block.Block, error) {
	c.mu.Lock()

	tip, ok := c.tree.Main()
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("forge: empty tree")
	}
	previousHash := tip.Hash

	txs := c.pendingTx.eligible(t, func(h types.Hash) bool {
		return fork.TransactionInChain(c.unstable, h)
	})
	stakes := c.pendingStake.eligible(t, func(h types.Hash) bool {
		return fork.StakeInChain(c.unstable, h)
	})

	var prevBeta types.Hash
	if lb := c.unstable.GetLatestBlock(); lb != nil {
		prevBeta = lb.Beta()
	}
	c.mu.Unlock()

	_, pi, err := crypto.VRFProve(key, prevBeta[:])
	if err != nil {
		return nil, fmt.Errorf("forge: vrf prove: %w", err)
	}

	txs, stakes = trimToSizeLimit(previousHash, t, pi, txs, stakes)

	blk := block.New(previousHash, t, pi, txs, stakes)
	if err := blk.Sign(key); err != nil {
		return nil, fmt.Errorf("forge: sign: %w", err)
	}

	if err := c.Accept(blk, now, timeDelta); err != nil {
		return nil, fmt.Errorf("forge: %w", err)
	}
	return blk, nil
}

// trimToSizeLimit drops the lowest-fee item, transaction or stake
// whichever trails its list, until the assembled block satisfies
// block.WithinSizeLimit (§4.B). txs and stakes must already be sorted
// highest-fee-first.
func trimToSizeLimit(previousHash types.Hash, t uint32, pi crypto.Pi, txs []*tx.Transaction, stakes []*stake.Stake) ([]*tx.Transaction, []*stake.Stake) {
	for {
		if block.New(previousHash, t, pi, txs, stakes).WithinSizeLimit() {
			return txs, stakes
		}
		switch {
		case len(txs) == 0 && len(stakes) == 0:
			return txs, stakes
		case len(stakes) == 0:
			txs = txs[:len(txs)-1]
		case len(txs) == 0:
			stakes = stakes[:len(stakes)-1]
		case txs[len(txs)-1].Fee.Uint64() <= stakes[len(stakes)-1].Fee.Uint64():
			txs = txs[:len(txs)-1]
		default:
			stakes = stakes[:len(stakes)-1]
		}
	}
}
