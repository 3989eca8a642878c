package chain

import (
	"fmt"

	"github.com/tofuri-net/tofuri/pkg/block"
)

// Accept runs the full save_block path (§4.F.2): validate against a
// candidate view anchored at the block's parent (see candidateAt),
// write the block and its records to the store,
// insert it into the tree, and recompute the stable/unstable split.
// Used both for externally-received blocks once their slot has arrived
// and for freshly forged blocks (§4.F.3: "call the same save_block
// path so the forger is subject to the same validation invariants").
func (c *Chain) Accept(blk *block.Block, now, timeDelta uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acceptLocked(blk, now, timeDelta)
}

func (c *Chain) acceptLocked(blk *block.Block, now, timeDelta uint32) error {
	if _, err := c.validateBlockLocked(blk, now, timeDelta); err != nil {
		return err
	}
	if err := putBlock(c.store, blk); err != nil {
		return fmt.Errorf("accept: %w", err)
	}
	c.tree.Insert(blk.Hash(), blk.PreviousHash, blk.Timestamp)
	if err := c.rebuildFromTree(); err != nil {
		return fmt.Errorf("accept: %w", err)
	}
	for _, t := range blk.Transactions {
		c.pendingTx.remove(t.Hash())
	}
	for _, s := range blk.Stakes {
		c.pendingStake.remove(s.Hash())
	}
	return nil
}

// SaveBlocks applies every queued block whose slot has arrived (§4.F:
// save_blocks), in queue order, and drops the rest whose slot has since
// expired past ElapsedSeconds without being applied (§4.F.4).
func (c *Chain) SaveBlocks(now, timeDelta uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ready := c.pendingBlock.ready(now)
	for _, blk := range ready {
		if err := c.acceptLocked(blk, now, timeDelta); err != nil {
			return fmt.Errorf("save queued block %s: %w", blk.Hash(), err)
		}
	}
	c.pendingBlock.retain(now)
	return nil
}

// PendingRetain drops pending transactions and stakes whose timestamp
// has elapsed (§4.F.4: pending_retain).
func (c *Chain) PendingRetain(now uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingTx.retain(now)
	c.pendingStake.retain(now)
	c.pendingBlock.retain(now)
}
