package p2p

import (
	"fmt"

	"github.com/tofuri-net/tofuri/pkg/block"
	"github.com/tofuri-net/tofuri/pkg/stake"
	"github.com/tofuri-net/tofuri/pkg/tx"
)

// BroadcastBlock publishes a block on TopicBlocks.
func (n *Node) BroadcastBlock(blk *block.Block) error {
	if n.topicBlock == nil {
		return fmt.Errorf("p2p: node not started")
	}
	return n.topicBlock.Publish(n.ctx, blk.Marshal())
}

// BroadcastTransaction publishes a transaction on TopicTransactions.
func (n *Node) BroadcastTransaction(t *tx.Transaction) error {
	if n.topicTx == nil {
		return fmt.Errorf("p2p: node not started")
	}
	return n.topicTx.Publish(n.ctx, t.Marshal())
}

// BroadcastStake publishes a stake on TopicStakes.
func (n *Node) BroadcastStake(s *stake.Stake) error {
	if n.topicStake == nil {
		return fmt.Errorf("p2p: node not started")
	}
	return n.topicStake.Publish(n.ctx, s.Marshal())
}

// BroadcastMultiaddr publishes this node's own connected-peer address
// list on TopicMultiaddr (§4.H: "every 60s: publish own connected-peer
// list on multiaddr").
func (n *Node) BroadcastMultiaddr() error {
	if n.topicMultiaddr == nil {
		return fmt.Errorf("p2p: node not started")
	}
	var addrs []string
	n.mu.RLock()
	for id := range n.peers {
		for _, a := range n.host.Peerstore().Addrs(id) {
			addrs = append(addrs, fmt.Sprintf("%s/p2p/%s", a, id))
		}
	}
	n.mu.RUnlock()
	if len(addrs) > SharePeersMaxLen {
		addrs = addrs[:SharePeersMaxLen]
	}
	payload, err := marshalAddrList(addrs)
	if err != nil {
		return fmt.Errorf("marshal multiaddr list: %w", err)
	}
	return n.topicMultiaddr.Publish(n.ctx, payload)
}
