package p2p

import (
	"time"

	"github.com/libp2p/go-libp2p/core/protocol"
)

// GossipSub topic names (§4.G: "block, transaction, stake, multiaddr").
const (
	TopicBlocks       = "/tofuri/block/1.0.0"
	TopicTransactions = "/tofuri/tx/1.0.0"
	TopicStakes       = "/tofuri/stake/1.0.0"
	TopicMultiaddr    = "/tofuri/multiaddr/1.0.0"
)

// SyncProtocol is the request/response stream protocol carrying
// (from_height) -> []Block (§4.G, §6.2 PROTOCOL_NAME).
const SyncProtocol = protocol.ID("/sync/1")

// ProtocolVersion is advertised during the libp2p identify handshake
// (§6.2 PROTOCOL_VERSION).
const ProtocolVersion = "tofuri/1.0.0"

// MaxTransmitSize bounds a single sync response (§6.2
// MAX_TRANSMIT_SIZE); GossipSub messages are allowed this size plus
// 64 KiB.
const MaxTransmitSize = 100_000

// SharePeersMaxLen caps how many addresses one multiaddr gossip message
// carries (§6.2 SHARE_PEERS_MAX_LEN).
const SharePeersMaxLen = 100

// RatelimitRequestTimeout is how long an IP that overflows a ratelimit
// bucket is cut off for (§6.2 P2P_RATELIMIT_REQUEST_TIMEOUT), and also
// the sliding window width every bucket counts over.
const RatelimitRequestTimeout = 3600 * time.Second

// syncReadTimeout bounds how long a sync response is read for before
// the stream is abandoned.
const syncReadTimeout = 10 * time.Second
