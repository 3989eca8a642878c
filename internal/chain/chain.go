// Package chain implements the blockchain coordinator (§4.F): the
// pending transaction/stake/block pools, block validation and forging,
// and the load/save lifecycle binding the tree (internal/tree) and fork
// engine (internal/fork) to the byte store (internal/store).
package chain

import (
	"fmt"
	"sync"

	"github.com/tofuri-net/tofuri/internal/fork"
	"github.com/tofuri-net/tofuri/internal/store"
	"github.com/tofuri-net/tofuri/internal/tree"
	"github.com/tofuri-net/tofuri/pkg/block"
	"github.com/tofuri-net/tofuri/pkg/crypto"
	"github.com/tofuri-net/tofuri/pkg/stake"
	"github.com/tofuri-net/tofuri/pkg/tx"
	"github.com/tofuri-net/tofuri/pkg/types"
)

// TrustForkAfterBlocks bounds the unstable suffix length (§3 invariant 3,
// §6.2 TRUST_FORK_AFTER_BLOCKS): once the main branch's tentative tail
// grows past this many blocks, the oldest block graduates to Stable.
const TrustForkAfterBlocks = 100

// checkpointKey is the fixed single key the checkpoint namespace holds
// (§6.3: checkpoint summarizes state below a height, there is only ever
// the latest one).
var checkpointKey = []byte("latest")

// Chain is the blockchain coordinator: pending pools plus the
// tree/fork/store wiring needed to validate, accept, and forge blocks.
// All exported methods serialize through mu, matching the single-writer
// design the scheduler assumes (§5: "one task owns the coordinator").
type Chain struct {
	mu sync.Mutex

	store *store.Store
	tree  *tree.Tree

	stable   *fork.Stable
	unstable *fork.Unstable
	reward   fork.RewardFunc

	genesisHash types.Hash

	pendingTx    *pendingTx
	pendingStake *pendingStake
	pendingBlock *pendingBlock
}

// New wires a Chain over an already-constructed store, replaying its
// persisted blocks to rebuild the tree and fork state (§4.F load).
func New(s *store.Store, reward fork.RewardFunc) (*Chain, error) {
	if reward == nil {
		reward = fork.DefaultReward
	}
	c := &Chain{
		store:        s,
		tree:         tree.New(),
		reward:       reward,
		pendingTx:    newPendingTx(),
		pendingStake: newPendingStake(),
		pendingBlock: newPendingBlock(),
	}
	if err := c.load(); err != nil {
		return nil, fmt.Errorf("load chain: %w", err)
	}
	return c, nil
}

// load rebuilds the tree from every block in the store, splits the main
// branch into stable/unstable hash sets, restores Stable from its
// checkpoint if one exists, and replays the unstable suffix on top
// (§4.F load).
func (c *Chain) load() error {
	gen := block.Genesis()
	c.genesisHash = gen.Hash()

	if err := c.store.Block.ForEach(nil, func(_, raw []byte) error {
		blk, err := block.Unmarshal(raw)
		if err != nil {
			return fmt.Errorf("load: unmarshal stored block: %w", err)
		}
		c.tree.Insert(blk.Hash(), blk.PreviousHash, blk.Timestamp)
		return nil
	}); err != nil {
		return err
	}

	if _, ok := c.tree.Get(c.genesisHash); !ok {
		if err := c.acceptNew(gen); err != nil {
			return fmt.Errorf("load: insert genesis: %w", err)
		}
	}

	if cp, ok, err := c.loadCheckpoint(); err != nil {
		return err
	} else if ok {
		c.stable = fork.NewStableFromCheckpoint(cp, c.reward)
	} else {
		c.stable = fork.NewStable(c.reward)
	}

	return c.rebuildFromTree()
}

func (c *Chain) loadCheckpoint() (*fork.Checkpoint, bool, error) {
	has, err := c.store.Checkpoint.Has(checkpointKey)
	if err != nil {
		return nil, false, fmt.Errorf("load checkpoint: %w", err)
	}
	if !has {
		return nil, false, nil
	}
	raw, err := c.store.Checkpoint.Get(checkpointKey)
	if err != nil {
		return nil, false, fmt.Errorf("load checkpoint: %w", err)
	}
	cp, err := fork.UnmarshalCheckpoint(raw)
	if err != nil {
		return nil, false, fmt.Errorf("load checkpoint: %w", err)
	}
	return cp, true, nil
}

func (c *Chain) saveCheckpoint(cp *fork.Checkpoint) error {
	raw, err := fork.MarshalCheckpoint(cp)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if err := c.store.Checkpoint.Put(checkpointKey, raw); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// previousTimestampOf returns the timestamp to treat as "previous" when
// replaying the first hash of a sequence on top of base: the base
// fork's own latest block timestamp, or the genesis timestamp if base
// is still empty.
func previousTimestampOf(base fork.Fork) uint32 {
	if lb := base.GetLatestBlock(); lb != nil {
		return lb.Timestamp
	}
	return block.GenesisTimestamp
}

// rebuildFromTree recomputes the stable/unstable hash split from the
// tree's current main branch, commits any newly-crossed-the-horizon
// blocks into Stable, and rebuilds Unstable wholesale on top (§4.F.2:
// "Unstable is rebuilt, never aliased"; collapses the fast-path/reorg
// distinction into one replay since both produce the same state).
func (c *Chain) rebuildFromTree() error {
	stableHashes, unstableHashes := c.tree.StableAndUnstableHashes(TrustForkAfterBlocks)
	stableHashes = c.dropGenesis(stableHashes)
	unstableHashes = c.dropGenesis(unstableHashes)

	committed := len(c.stable.GetHashes())
	if committed > len(stableHashes) {
		return fmt.Errorf("rebuild: stable prefix shrank from %d to %d hashes", committed, len(stableHashes))
	}
	for i := committed; i < len(stableHashes); i++ {
		blk, err := getBlock(c.store, stableHashes[i])
		if err != nil {
			return fmt.Errorf("rebuild: stable block %d: %w", i, err)
		}
		prevTs := previousTimestampOf(c.stable)
		if err := c.stable.AppendBlock(blk, prevTs, true); err != nil {
			return fmt.Errorf("rebuild: commit stable block %d: %w", i, err)
		}
	}
	if committed < len(stableHashes) {
		if err := c.saveCheckpoint(c.stable.Snapshot(uint64(len(stableHashes)))); err != nil {
			return err
		}
	}

	unstable := fork.NewUnstable(c.stable, c.reward)
	for i, h := range unstableHashes {
		blk, err := getBlock(c.store, h)
		if err != nil {
			return fmt.Errorf("rebuild: unstable block %d: %w", i, err)
		}
		prevTs := previousTimestampOf(unstable)
		if err := unstable.AppendBlock(blk, prevTs, true); err != nil {
			return fmt.Errorf("rebuild: replay unstable block %d: %w", i, err)
		}
	}
	c.unstable = unstable
	return nil
}

// acceptNew inserts a block into the tree and store without going
// through validate_block — used only to seed genesis at load time.
func (c *Chain) acceptNew(blk *block.Block) error {
	if err := putBlock(c.store, blk); err != nil {
		return err
	}
	c.tree.Insert(blk.Hash(), blk.PreviousHash, blk.Timestamp)
	return nil
}

// dropGenesis removes the genesis hash from a root-first hash slice, if
// present. Genesis carries no signature (it is loaded by construction,
// never signed, §3/§4.D), so it cannot be replayed through appendBlock,
// which recovers the forger from the block's signature; it contributes
// no balance/staked/reward state and is excluded from every fork replay.
func (c *Chain) dropGenesis(hashes []types.Hash) []types.Hash {
	if len(hashes) > 0 && hashes[0] == c.genesisHash {
		return hashes[1:]
	}
	return hashes
}

// Height returns the current main-chain height (the genesis block is
// height 0).
func (c *Chain) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.tree.Main()
	if !ok {
		return 0
	}
	return n.Height
}

// HeightByHash returns the height of the block identified by h.
func (c *Chain) HeightByHash(h types.Hash) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.tree.Get(h)
	if !ok {
		return 0, ErrHeightByHash
	}
	return n.Height, nil
}

// HashByHeight returns the hash of the block at the given height along
// the current main branch.
func (c *Chain) HashByHeight(height uint64) (types.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hashByHeightLocked(height)
}

func (c *Chain) hashByHeightLocked(height uint64) (types.Hash, error) {
	tip, ok := c.tree.Main()
	if !ok {
		return types.Hash{}, ErrHashByHeight
	}
	path := c.tree.PathToRoot(tip.Hash)
	if height >= uint64(len(path)) {
		return types.Hash{}, ErrHashByHeight
	}
	return path[height], nil
}

// Balance returns a's confirmed-plus-tentative balance (the unstable
// view, the chain's current best estimate of settled state).
func (c *Chain) Balance(a types.Address) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unstable.GetBalance(a)
}

// Staked returns a's confirmed-plus-tentative staked amount.
func (c *Chain) Staked(a types.Address) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unstable.GetStaked(a)
}

// BalancePendingMin returns a's balance after subtracting every pending
// debit against it (worst case, used to admission-control new spends).
func (c *Chain) BalancePendingMin(a types.Address) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balancePendingMinLocked(a)
}

func (c *Chain) balancePendingMinLocked(a types.Address) uint64 {
	bal := c.unstable.GetBalance(a)
	for _, h := range c.pendingTx.order {
		t := c.pendingTx.byHash[h]
		if in, _ := t.InputAddress(); in == a {
			bal = subOrZero(bal, t.Amount.Uint64()+t.Fee.Uint64())
		}
	}
	for _, h := range c.pendingStake.order {
		s := c.pendingStake.byHash[h]
		in, _ := s.InputAddress()
		if in != a {
			continue
		}
		if s.Deposit {
			bal = subOrZero(bal, s.Amount.Uint64()+s.Fee.Uint64())
		} else {
			bal = subOrZero(bal, s.Fee.Uint64())
		}
	}
	return bal
}

// BalancePendingMax returns a's balance as if every pending credit to it
// had already landed (best case).
func (c *Chain) BalancePendingMax(a types.Address) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	bal := c.unstable.GetBalance(a)
	for _, h := range c.pendingTx.order {
		t := c.pendingTx.byHash[h]
		if t.OutputAddress == a {
			bal += t.Amount.Uint64()
		}
	}
	for _, h := range c.pendingStake.order {
		s := c.pendingStake.byHash[h]
		in, _ := s.InputAddress()
		if in == a && !s.Deposit {
			bal += s.Amount.Uint64()
		}
	}
	return bal
}

// StakedPendingMin returns a's staked amount after subtracting every
// pending withdrawal against it.
func (c *Chain) StakedPendingMin(a types.Address) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stakedPendingMinLocked(a)
}

func (c *Chain) stakedPendingMinLocked(a types.Address) uint64 {
	staked := c.unstable.GetStaked(a)
	for _, h := range c.pendingStake.order {
		s := c.pendingStake.byHash[h]
		in, _ := s.InputAddress()
		if in == a && !s.Deposit {
			staked = subOrZero(staked, s.Amount.Uint64())
		}
	}
	return staked
}

// StakedPendingMax returns a's staked amount as if every pending
// deposit to it had already landed.
func (c *Chain) StakedPendingMax(a types.Address) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	staked := c.unstable.GetStaked(a)
	for _, h := range c.pendingStake.order {
		s := c.pendingStake.byHash[h]
		in, _ := s.InputAddress()
		if in == a && s.Deposit {
			staked += s.Amount.Uint64()
		}
	}
	return staked
}

// TransactionByHash looks up a transaction by hash regardless of which
// block (if any) it landed in (§6.4).
func (c *Chain) TransactionByHash(h types.Hash) (*tx.Transaction, error) {
	return getTransaction(c.store, h)
}

// StakeByHash looks up a stake by hash regardless of which block (if
// any) it landed in (§6.4).
func (c *Chain) StakeByHash(h types.Hash) (*stake.Stake, error) {
	return getStake(c.store, h)
}

// SyncBlock fetches the block at an absolute height, for sync responses
// (§4.F: sync_block).
func (c *Chain) SyncBlock(index uint64) (*block.Block, error) {
	c.mu.Lock()
	h, err := c.hashByHeightLocked(index)
	c.mu.Unlock()
	if err != nil {
		return nil, ErrSyncBlock
	}
	blk, err := getBlock(c.store, h)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyncBlock, err)
	}
	return blk, nil
}

// NextForgeSlot reports whether addr is the staker legally owed the
// next block slot and that slot's boundary has already passed now
// (§4.H "grow" timer: "forge if local staker's slot"). t is the slot
// boundary itself, not now — ForgeBlock must be called with exactly
// this timestamp to produce a block that validates.
func (c *Chain) NextForgeSlot(addr types.Address, now uint32) (t uint32, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	previousTimestamp := previousTimestampOf(c.unstable)
	t = previousTimestamp + fork.BlockTime
	if t > now {
		return 0, false
	}
	staker, exists := fork.NextStaker(c.unstable.GetStakers(), previousTimestamp, t)
	if !exists || staker != addr {
		return 0, false
	}
	return t, true
}

func subOrZero(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// forgerAddress is a small helper shared by validate/forge for
// recovering a block's signer address.
func forgerAddress(blk *block.Block) (types.Address, error) {
	pub, err := blk.InputPublicKey()
	if err != nil {
		return types.Address{}, err
	}
	return crypto.AddressFromPubKey(pub), nil
}
