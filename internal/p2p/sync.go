package p2p

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/tofuri-net/tofuri/pkg/block"
)

// SyncRequest asks a peer for every block at or above FromHeight
// (§4.G: "(from_height: usize) -> Vec<Block>").
type SyncRequest struct {
	FromHeight uint64 `json:"from_height"`
}

// SyncResponse carries the blocks a peer had above the requested
// height, bounded by MaxTransmitSize.
type SyncResponse struct {
	Blocks []*block.Block `json:"blocks"`
}

// SyncProvider returns the blocks a sync request should answer with,
// given the requested starting height. It is supplied by the caller
// (cmd/tofuri-node, backed by chain.Chain) so this package never imports
// the chain package directly.
type SyncProvider func(fromHeight uint64) []*block.Block

// RegisterSyncHandler installs the /sync/1 stream handler, answering
// every inbound request from provider. Call before Start (the provider
// is recorded and Start installs the handler), or any time after;
// SetStreamHandler is safe to call while the host is running.
func (n *Node) RegisterSyncHandler(provider SyncProvider) {
	n.syncProvider = provider
	if n.host != nil {
		n.registerSyncHandler()
	}
}

func (n *Node) registerSyncHandler() {
	n.host.SetStreamHandler(SyncProtocol, func(stream network.Stream) {
		defer stream.Close()

		remote := stream.Conn().RemotePeer()
		if n.bans.IsBanned(remote) {
			return
		}
		if !n.ratelimit.Allow(remoteIP(remote), EndpointSyncRequest, time.Now()) {
			n.bans.RecordRatelimitOverflow(remote)
			return
		}

		var req SyncRequest
		if err := json.NewDecoder(io.LimitReader(stream, MaxTransmitSize)).Decode(&req); err != nil {
			return
		}

		if !n.ratelimit.Allow(remoteIP(remote), EndpointSyncResponse, time.Now()) {
			n.bans.RecordRatelimitOverflow(remote)
			return
		}

		var blocks []*block.Block
		if n.syncProvider != nil {
			blocks = boundBlocksToTransmitSize(n.syncProvider(req.FromHeight))
		}
		resp := SyncResponse{Blocks: blocks}
		stream.SetWriteDeadline(time.Now().Add(syncReadTimeout))
		json.NewEncoder(stream).Encode(&resp)
	})
}

// RequestSync asks peerID for every block it has from fromHeight on.
func (n *Node) RequestSync(ctx context.Context, peerID peer.ID, fromHeight uint64) ([]*block.Block, error) {
	stream, err := n.host.NewStream(ctx, peerID, SyncProtocol)
	if err != nil {
		return nil, fmt.Errorf("p2p: open sync stream: %w", err)
	}
	defer stream.Close()

	req := SyncRequest{FromHeight: fromHeight}
	if err := json.NewEncoder(stream).Encode(&req); err != nil {
		return nil, fmt.Errorf("p2p: send sync request: %w", err)
	}
	stream.CloseWrite()

	stream.SetReadDeadline(time.Now().Add(syncReadTimeout))
	var resp SyncResponse
	if err := json.NewDecoder(io.LimitReader(stream, MaxTransmitSize)).Decode(&resp); err != nil {
		return nil, fmt.Errorf("p2p: read sync response: %w", err)
	}
	return resp.Blocks, nil
}

// RandomConnectedPeer returns a uniformly random connected peer, or
// false if there are none (§4.H sync_request timer: "pick a random
// connected peer").
func (n *Node) RandomConnectedPeer() (peer.ID, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for id := range n.peers {
		return id, true // map iteration order is randomized by the runtime
	}
	return "", false
}

// boundBlocksToTransmitSize trims the tail of blocks so the JSON-encoded
// SyncResponse carrying them stays within MaxTransmitSize (§6.2).
func boundBlocksToTransmitSize(blocks []*block.Block) []*block.Block {
	total := len(`{"blocks":[]}`) + 1 // envelope plus the encoder's newline
	for i, b := range blocks {
		enc, err := json.Marshal(b)
		if err != nil {
			return blocks[:i]
		}
		total += len(enc) + 1 // element plus its separating comma
		if total > MaxTransmitSize {
			return blocks[:i]
		}
	}
	return blocks
}
