// Package scheduler runs the six fixed-interval cooperative timers
// that drive a node once its chain and P2P layers are up (§4.H): peer
// maintenance, filter/ratelimit upkeep, address gossip, and the
// growth/sync loop that applies, forges, and fetches blocks. Each
// timer's work is a single, non-blocking pass so a slow network call
// in one never starves the others.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tofuri-net/tofuri/internal/chain"
	"github.com/tofuri-net/tofuri/internal/log"
	"github.com/tofuri-net/tofuri/internal/p2p"
	"github.com/tofuri-net/tofuri/pkg/block"
	"github.com/tofuri-net/tofuri/pkg/crypto"
	"github.com/tofuri-net/tofuri/pkg/types"
)

// Timer intervals (§4.H).
const (
	peerMaintenanceInterval = 10 * time.Second
	filterResetInterval     = 60 * time.Second
	multiaddrShareInterval  = 60 * time.Second
	growInterval            = 1 * time.Second
	syncRequestInterval     = 1 * time.Second

	syncRequestTimeout = 5 * time.Second
)

// Config wires a Scheduler to the chain and network layers it drives.
type Config struct {
	Chain     *chain.Chain
	Node      *p2p.Node
	ForgeKey  *crypto.PrivateKey // nil disables forging on this node
	TimeDelta uint32             // clock-skew tolerance passed to Chain (§4.F)
}

// Scheduler owns the six timers described by §4.H. It holds no state
// of its own beyond what's needed to drive Chain and Node; every
// decision (what to forge, who's a legal staker, what's banned) is
// made by those packages.
type Scheduler struct {
	chain     *chain.Chain
	node      *p2p.Node
	forgeKey  *crypto.PrivateKey
	forgeAddr types.Address
	forging   bool
	timeDelta uint32

	synced atomic.Bool
}

// New creates a Scheduler. Call Run to start its timers.
func New(cfg Config) *Scheduler {
	s := &Scheduler{
		chain:     cfg.Chain,
		node:      cfg.Node,
		forgeKey:  cfg.ForgeKey,
		timeDelta: cfg.TimeDelta,
	}
	if cfg.ForgeKey != nil {
		s.forging = true
		s.forgeAddr = crypto.AddressFromPubKey(cfg.ForgeKey.PublicKey())
	}
	return s
}

// Run starts every timer and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	timers := []struct {
		interval time.Duration
		fn       func(context.Context)
	}{
		{peerMaintenanceInterval, s.dialKnown},
		{peerMaintenanceInterval, s.dialUnknown},
		{filterResetInterval, s.resetFilters},
		{multiaddrShareInterval, s.shareMultiaddr},
		{growInterval, s.grow},
		{syncRequestInterval, s.syncRequest},
	}
	for _, t := range timers {
		go s.loop(ctx, t.interval, t.fn)
	}
	<-ctx.Done()
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// dialKnown reconnects known peers that dropped (§4.H, 10s).
func (s *Scheduler) dialKnown(context.Context) {
	s.node.DialKnown()
}

// dialUnknown drains a discovery round for previously unseen peers
// (§4.H, 10s).
func (s *Scheduler) dialUnknown(context.Context) {
	s.node.DialUnknown()
}

// resetFilters clears the gossip dedup filter and ratelimit counters
// (§4.H, 60s).
func (s *Scheduler) resetFilters(context.Context) {
	s.node.ResetFilters()
}

// shareMultiaddr publishes the dialable addresses of this node's
// connected peers (§4.H, 60s).
func (s *Scheduler) shareMultiaddr(context.Context) {
	if err := s.node.BroadcastMultiaddr(); err != nil {
		log.Scheduler.Debug().Err(err).Msg("multiaddr broadcast skipped")
	}
}

// grow retains pending entries against the current chain tip, applies
// any fully-assembled blocks, and forges a new one if this node is the
// legal staker for the next slot and the chain has completed at least
// one sync pass (§4.H, 1s).
func (s *Scheduler) grow(ctx context.Context) {
	now := uint32(time.Now().Unix())

	s.chain.PendingRetain(now)
	if err := s.chain.SaveBlocks(now, s.timeDelta); err != nil {
		log.Scheduler.Debug().Err(err).Msg("save_blocks")
	}

	if !s.forging || !s.synced.Load() {
		return
	}

	t, ok := s.chain.NextForgeSlot(s.forgeAddr, now)
	if !ok {
		return
	}

	blk, err := s.chain.ForgeBlock(s.forgeKey, t, s.timeDelta, now)
	if err != nil {
		log.Scheduler.Warn().Err(err).Msg("forge_block")
		return
	}
	log.Scheduler.Info().Uint64("height", s.chain.Height()).Msg("forged block")

	if err := s.node.BroadcastBlock(blk); err != nil {
		log.Scheduler.Debug().Err(err).Msg("broadcast forged block")
	}
}

// syncRequest asks a random connected peer for blocks past the local
// tip and feeds anything it returns back into the chain (§4.H, 1s). A
// node with no peers, or whose sync request got an answer, is
// considered synced so an isolated or fully-caught-up node can still
// forge.
func (s *Scheduler) syncRequest(ctx context.Context) {
	peerID, ok := s.node.RandomConnectedPeer()
	if !ok {
		s.synced.Store(true)
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, syncRequestTimeout)
	blocks, err := s.node.RequestSync(reqCtx, peerID, s.chain.Height()+1)
	cancel()
	if err != nil {
		log.Scheduler.Debug().Err(err).Msg("sync_request")
		return
	}

	s.synced.Store(true)
	now := uint32(time.Now().Unix())
	for _, blk := range blocks {
		s.applySyncedBlock(blk, now)
	}
}

func (s *Scheduler) applySyncedBlock(blk *block.Block, now uint32) {
	if err := s.chain.PendingBlocksPush(blk, now, s.timeDelta); err != nil {
		log.Scheduler.Debug().Err(err).Uint32("timestamp", blk.Timestamp).Msg("pending_blocks_push")
	}
}
