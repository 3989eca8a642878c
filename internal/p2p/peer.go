package p2p

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

// Source records how a peer was learned (§4.G connection policy:
// known peers are "learned from store or successful prior connection",
// unknown peers come from mDNS or a gossiped multiaddr).
type Source int

const (
	SourceUnknown Source = iota
	SourceKnown
	SourceMDNS
	SourceDHT
	SourceGossip
)

// Peer is a connection the node currently holds or has queued to dial.
type Peer struct {
	ID          peer.ID
	Addrs       []string
	Source      Source
	ConnectedAt time.Time
}

// IsKnown reports whether the peer's address was already persisted or
// previously connected to, as opposed to freshly discovered.
func (p *Peer) IsKnown() bool {
	return p.Source == SourceKnown
}
