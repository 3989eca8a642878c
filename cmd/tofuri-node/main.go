// Command tofuri-node runs a consensus node: it opens the local store,
// replays the chain, joins the gossip network, and (optionally) forges
// blocks on its own stake.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tofuri-net/tofuri/config"
	"github.com/tofuri-net/tofuri/internal/chain"
	"github.com/tofuri-net/tofuri/internal/log"
	"github.com/tofuri-net/tofuri/internal/p2p"
	"github.com/tofuri-net/tofuri/internal/scheduler"
	"github.com/tofuri-net/tofuri/internal/store"
	"github.com/tofuri-net/tofuri/internal/wallet"
	"github.com/tofuri-net/tofuri/pkg/block"
	"github.com/tofuri-net/tofuri/pkg/crypto"
	"github.com/tofuri-net/tofuri/pkg/stake"
	"github.com/tofuri-net/tofuri/pkg/tx"
)

// timeDelta is the clock-skew tolerance (§4.F) nodes accept on
// incoming blocks/transactions/stakes.
const timeDelta = 5

func main() {
	cfg, _, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "tofuri-node:", err)
		os.Exit(1)
	}

	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fmt.Fprintln(os.Stderr, "tofuri-node: init log:", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("exit")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	db, err := store.NewBadger(cfg.StoreDir())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	s := store.New(db)

	c, err := chain.New(s, nil)
	if err != nil {
		return fmt.Errorf("load chain: %w", err)
	}
	log.Chain.Info().Uint64("height", c.Height()).Msg("chain loaded")

	forgeKey, err := loadForgeKey(cfg)
	if err != nil {
		return fmt.Errorf("load forging key: %w", err)
	}

	node := p2p.New(p2p.Config{
		ListenAddr: cfg.P2P.ListenAddr,
		Port:       cfg.P2P.Port,
		Seeds:      cfg.P2P.Seeds,
		MaxPeers:   cfg.P2P.MaxPeers,
		NoDiscover: cfg.P2P.NoDiscover,
		DHTServer:  cfg.P2P.DHTServer,
		NetworkID:  string(cfg.Network),
		DataDir:    cfg.IdentityDir(),
		Peers:      s.Peer,
		ClearBans:  cfg.P2P.ClearBans,
	})

	node.SetBlockHandler(func(blk *block.Block) {
		now := nowUnix()
		if err := c.PendingBlocksPush(blk, now, timeDelta); err != nil {
			log.P2P.Debug().Err(err).Msg("gossip block rejected")
		}
	})
	node.SetTransactionHandler(func(t *tx.Transaction) {
		now := nowUnix()
		if err := c.PendingTransactionsPush(t, now, timeDelta); err != nil {
			log.P2P.Debug().Err(err).Msg("gossip transaction rejected")
		}
	})
	node.SetStakeHandler(func(st *stake.Stake) {
		now := nowUnix()
		if err := c.PendingStakesPush(st, now, timeDelta); err != nil {
			log.P2P.Debug().Err(err).Msg("gossip stake rejected")
		}
	})
	node.RegisterSyncHandler(func(fromHeight uint64) []*block.Block {
		return syncBlocksFrom(c, fromHeight)
	})

	if err := node.Start(); err != nil {
		return fmt.Errorf("start p2p: %w", err)
	}
	defer node.Stop()
	log.P2P.Info().Str("id", node.ID().String()).Strs("addrs", node.Addrs()).Msg("node started")

	sched := scheduler.New(scheduler.Config{
		Chain:     c,
		Node:      node,
		ForgeKey:  forgeKey,
		TimeDelta: timeDelta,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("shutting down")
		cancel()
	}()

	sched.Run(ctx)
	return nil
}

func nowUnix() uint32 {
	return uint32(time.Now().Unix())
}

// syncBlocksFrom returns the contiguous run of blocks starting at
// fromHeight, stopping at the first height the chain doesn't have
// (either the tip or a gap left by an in-progress fork resolution).
func syncBlocksFrom(c *chain.Chain, fromHeight uint64) []*block.Block {
	var blocks []*block.Block
	for height := fromHeight; ; height++ {
		blk, err := c.SyncBlock(height)
		if err != nil {
			break
		}
		blocks = append(blocks, blk)
	}
	return blocks
}

// loadForgeKey derives the forging key from the node's mnemonic file,
// generating one on first run. Returns nil, nil when forging is
// disabled, which is how a pure sync/gossip node runs.
func loadForgeKey(cfg *config.Config) (*crypto.PrivateKey, error) {
	if !cfg.Forge.Enabled {
		return nil, nil
	}

	mnemonic, err := readOrCreateMnemonic(cfg.Forge.MnemonicFile)
	if err != nil {
		return nil, err
	}

	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		return nil, fmt.Errorf("derive seed: %w", err)
	}
	master, err := wallet.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("derive master key: %w", err)
	}
	forging, err := master.DeriveForgingKey(0, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("derive forging key: %w", err)
	}
	key, err := forging.Signer()
	if err != nil {
		return nil, err
	}

	log.Wallet.Info().Str("address", forging.Address().String()).Msg("forging key ready")
	return key, nil
}

func readOrCreateMnemonic(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		return string(raw), nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	mnemonic, err := wallet.GenerateMnemonic()
	if err != nil {
		return "", fmt.Errorf("generate mnemonic: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(mnemonic), 0600); err != nil {
		return "", err
	}
	log.Wallet.Warn().Str("file", path).Msg("generated new forging mnemonic, back it up")
	return mnemonic, nil
}
