// Package p2p implements the gossip/sync network layer (§4.G): a
// libp2p host carrying GossipSub topics for blocks, transactions,
// stakes, and peer addresses, plus the request/response /sync/1
// protocol for catch-up block fetches.
package p2p

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	ma "github.com/multiformats/go-multiaddr"
	"golang.org/x/time/rate"

	libp2p "github.com/libp2p/go-libp2p"
	"github.com/tofuri-net/tofuri/internal/log"
	"github.com/tofuri-net/tofuri/internal/store"
	"github.com/tofuri-net/tofuri/pkg/block"
	"github.com/tofuri-net/tofuri/pkg/stake"
	"github.com/tofuri-net/tofuri/pkg/tx"
)

// dialRate caps how fast this node opens new outbound connections
// during a discovery burst (DHT FindPeers or a multiaddr gossip batch
// can hand back dozens of candidates at once); it is independent of
// the per-remote-IP Ratelimiter, which governs inbound gossip/sync
// traffic, not our own outbound dials.
const dialRate = 5 // connections per second

const (
	dhtRendezvousFallback = "tofuri-chain"
	dhtDiscoveryInterval  = 30 * time.Second
	peerConnectTimeout    = 5 * time.Second
)

// Config configures a Node.
type Config struct {
	ListenAddr string
	Port       int
	Seeds      []string
	MaxPeers   int
	NoDiscover bool
	DHTServer  bool        // server-mode DHT, for seed/validator nodes
	NetworkID  string      // isolates the DHT rendezvous per network
	DataDir    string      // persists node identity; "" = ephemeral
	Peers      *store.PrefixDB // persists known peers and bans; nil disables both
	ClearBans  bool        // wipe persisted bans on startup
}

// Node is a libp2p host wired to the gossip/sync network described by
// §4.G. Block/transaction/stake handlers are set by the caller
// (cmd/tofuri-node) so this package stays decoupled from chain.Chain.
type Node struct {
	host   host.Host
	pubsub *pubsub.PubSub
	config Config
	ctx    context.Context
	cancel context.CancelFunc

	topicBlock     *pubsub.Topic
	subBlock       *pubsub.Subscription
	topicTx        *pubsub.Topic
	subTx          *pubsub.Subscription
	topicStake     *pubsub.Topic
	subStake       *pubsub.Subscription
	topicMultiaddr *pubsub.Topic
	subMultiaddr   *pubsub.Subscription

	blockHandler func(*block.Block)
	txHandler    func(*tx.Transaction)
	stakeHandler func(*stake.Stake)
	syncProvider SyncProvider

	mu    sync.RWMutex
	peers map[peer.ID]*Peer

	ratelimit *Ratelimiter
	filter    *Filter
	bans      *BanManager
	dialLimit *rate.Limiter

	dht *dht.IpfsDHT
}

// New creates a Node. Start must be called to bring up the host.
func New(cfg Config) *Node {
	var banStore *BanStore
	if cfg.Peers != nil {
		banStore = NewBanStore(cfg.Peers)
	}
	bans := NewBanManager(banStore)
	if cfg.ClearBans {
		bans.ClearAll()
	}
	return &Node{
		config:    cfg,
		peers:     make(map[peer.ID]*Peer),
		ratelimit: NewRatelimiter(),
		filter:    NewFilter(),
		bans:      bans,
		dialLimit: rate.NewLimiter(dialRate, dialRate),
	}
}

// dial waits for the outbound dial limiter and connects to info.
func (n *Node) dial(ctx context.Context, info peer.AddrInfo) error {
	if err := n.dialLimit.Wait(ctx); err != nil {
		return err
	}
	dialCtx, cancel := context.WithTimeout(ctx, peerConnectTimeout)
	defer cancel()
	return n.host.Connect(dialCtx, info)
}

func (n *Node) rendezvous() string {
	if n.config.NetworkID != "" {
		return "tofuri/" + n.config.NetworkID
	}
	return dhtRendezvousFallback
}

// SetBlockHandler registers the callback invoked for every gossiped
// block not already seen by the filter.
func (n *Node) SetBlockHandler(fn func(*block.Block)) { n.blockHandler = fn }

// SetTransactionHandler registers the callback for gossiped transactions.
func (n *Node) SetTransactionHandler(fn func(*tx.Transaction)) { n.txHandler = fn }

// SetStakeHandler registers the callback for gossiped stakes.
func (n *Node) SetStakeHandler(fn func(*stake.Stake)) { n.stakeHandler = fn }

// Start brings up the libp2p host, joins the gossip topics, and begins
// peer discovery.
func (n *Node) Start() error {
	n.ctx, n.cancel = context.WithCancel(context.Background())

	listenAddr := fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", n.config.Port)
	if n.config.ListenAddr != "" {
		listenAddr = n.config.ListenAddr
	}

	opts := []libp2p.Option{
		libp2p.ListenAddrStrings(listenAddr),
		libp2p.ConnectionGater(&banGater{bans: n.bans}),
		libp2p.ProtocolVersion(ProtocolVersion),
	}

	if n.config.DataDir != "" {
		priv, err := loadOrCreateIdentity(n.config.DataDir)
		if err != nil {
			return fmt.Errorf("p2p: load identity: %w", err)
		}
		opts = append(opts, libp2p.Identity(priv))
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return fmt.Errorf("p2p: create host: %w", err)
	}
	n.host = h
	h.Network().Notify(&connNotifier{node: n})

	if !n.config.NoDiscover {
		mode := dht.ModeClient
		if n.config.DHTServer {
			mode = dht.ModeServer
		}
		d, err := dht.New(n.ctx, h, dht.Mode(mode))
		if err != nil {
			return fmt.Errorf("p2p: create dht: %w", err)
		}
		n.dht = d
	}

	ps, err := pubsub.NewGossipSub(n.ctx, h, pubsub.WithMaxMessageSize(MaxTransmitSize+64*1024))
	if err != nil {
		return fmt.Errorf("p2p: create pubsub: %w", err)
	}
	n.pubsub = ps

	if err := n.joinTopics(); err != nil {
		return err
	}

	n.registerSyncHandler()

	go n.readLoop(n.subBlock, EndpointBlockGossip, n.handleBlockMessage)
	go n.readLoop(n.subTx, EndpointTransactionGossip, n.handleTxMessage)
	go n.readLoop(n.subStake, EndpointStakeGossip, n.handleStakeMessage)
	go n.readLoop(n.subMultiaddr, EndpointMultiaddrGossip, n.handleMultiaddrMessage)

	if !n.config.NoDiscover {
		n.startMDNS()
		go n.runDHTDiscovery()
	}
	n.connectSeedsOnce()
	go n.connectSeedsLoop()

	return nil
}

// Stop tears down every subscription, topic, the DHT, and the host.
func (n *Node) Stop() error {
	if n.cancel != nil {
		n.cancel()
	}
	for _, sub := range []*pubsub.Subscription{n.subBlock, n.subTx, n.subStake, n.subMultiaddr} {
		if sub != nil {
			sub.Cancel()
		}
	}
	for _, t := range []*pubsub.Topic{n.topicBlock, n.topicTx, n.topicStake, n.topicMultiaddr} {
		if t != nil {
			t.Close()
		}
	}
	if n.dht != nil {
		n.dht.Close()
	}
	if n.host != nil {
		return n.host.Close()
	}
	return nil
}

func (n *Node) joinTopics() error {
	joins := []struct {
		name  string
		topic **pubsub.Topic
		sub   **pubsub.Subscription
	}{
		{TopicBlocks, &n.topicBlock, &n.subBlock},
		{TopicTransactions, &n.topicTx, &n.subTx},
		{TopicStakes, &n.topicStake, &n.subStake},
		{TopicMultiaddr, &n.topicMultiaddr, &n.subMultiaddr},
	}
	for _, j := range joins {
		t, err := n.pubsub.Join(j.name)
		if err != nil {
			return fmt.Errorf("p2p: join topic %s: %w", j.name, err)
		}
		*j.topic = t
		sub, err := t.Subscribe()
		if err != nil {
			return fmt.Errorf("p2p: subscribe %s: %w", j.name, err)
		}
		*j.sub = sub
	}
	return nil
}

// readLoop drains one gossip subscription, enforcing the filter and
// per-IP ratelimit before invoking handle.
func (n *Node) readLoop(sub *pubsub.Subscription, endpoint Endpoint, handle func(peer.ID, []byte)) {
	for {
		msg, err := sub.Next(n.ctx)
		if err != nil {
			return // context cancelled, or subscription closed
		}
		if msg.ReceivedFrom == n.host.ID() {
			continue
		}
		if n.filter.SeenOrRecord(msg.Data) {
			continue
		}
		if !n.ratelimit.Allow(remoteIP(msg.ReceivedFrom), endpoint, time.Now()) {
			n.bans.RecordRatelimitOverflow(msg.ReceivedFrom)
			continue
		}
		n.addPeer(msg.ReceivedFrom, SourceGossip)
		handle(msg.ReceivedFrom, msg.Data)
	}
}

func (n *Node) handleBlockMessage(_ peer.ID, data []byte) {
	blk, err := block.Unmarshal(data)
	if err != nil {
		log.P2P.Debug().Err(err).Msg("discarding malformed gossiped block")
		return
	}
	if n.blockHandler != nil {
		n.blockHandler(blk)
	}
}

func (n *Node) handleTxMessage(_ peer.ID, data []byte) {
	t, err := tx.Unmarshal(data)
	if err != nil {
		log.P2P.Debug().Err(err).Msg("discarding malformed gossiped transaction")
		return
	}
	if n.txHandler != nil {
		n.txHandler(t)
	}
}

func (n *Node) handleStakeMessage(_ peer.ID, data []byte) {
	s, err := stake.Unmarshal(data)
	if err != nil {
		log.P2P.Debug().Err(err).Msg("discarding malformed gossiped stake")
		return
	}
	if n.stakeHandler != nil {
		n.stakeHandler(s)
	}
}

func (n *Node) handleMultiaddrMessage(from peer.ID, data []byte) {
	addrs, err := unmarshalAddrList(data)
	if err != nil {
		log.P2P.Debug().Err(err).Msg("discarding malformed multiaddr gossip")
		return
	}
	if len(addrs) > SharePeersMaxLen {
		addrs = addrs[:SharePeersMaxLen]
	}
	for _, a := range addrs {
		info, err := peerAddrInfo(a)
		if err != nil || info.ID == n.host.ID() {
			continue
		}
		if err := n.dial(n.ctx, *info); err == nil {
			n.addPeer(info.ID, SourceGossip)
		}
	}
	n.addPeer(from, SourceGossip)
}

func marshalAddrList(addrs []string) ([]byte, error) {
	return json.Marshal(addrs)
}

func unmarshalAddrList(data []byte) ([]string, error) {
	var addrs []string
	if err := json.Unmarshal(data, &addrs); err != nil {
		return nil, err
	}
	return addrs, nil
}

func peerAddrInfo(addr string) (*peer.AddrInfo, error) {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return nil, err
	}
	return peer.AddrInfoFromP2pAddr(m)
}

// Host returns the underlying libp2p host.
func (n *Node) Host() host.Host { return n.host }

// ID returns this node's peer ID.
func (n *Node) ID() peer.ID { return n.host.ID() }

// Addrs returns this node's full dialable multiaddrs (addr/p2p/id).
func (n *Node) Addrs() []string {
	var out []string
	for _, a := range n.host.Addrs() {
		out = append(out, fmt.Sprintf("%s/p2p/%s", a, n.host.ID()))
	}
	return out
}

// DialKnown attempts to reconnect every persisted known peer that
// isn't currently connected (§4.H: "every 10s: dial known peers not
// connected").
func (n *Node) DialKnown() {
	n.LoadPersistedPeers()
}

// DialUnknown runs one DHT discovery round, dialing any newly found
// peer (§4.H: "every 10s: drain/dial the unknown set"). mDNS finds are
// not polled here; discoveryNotifee dials them as they arrive.
func (n *Node) DialUnknown() {
	n.findDHTPeers()
}

// ResetFilters clears the gossip dedup filter and every ratelimit
// bucket (§4.H: "every 60s: clear gossip filter + reset ratelimit
// counters").
func (n *Node) ResetFilters() {
	n.filter.Clear()
	n.ratelimit.Reset()
}

// PeerCount returns the number of peers this node currently tracks.
func (n *Node) PeerCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.peers)
}

// PeerList returns a snapshot of tracked peers.
func (n *Node) PeerList() []*Peer {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Peer, 0, len(n.peers))
	for _, p := range n.peers {
		out = append(out, p)
	}
	return out
}

func (n *Node) addPeer(id peer.ID, source Source) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.peers[id]; ok {
		return
	}
	n.peers[id] = &Peer{ID: id, Source: source, ConnectedAt: time.Now()}
	n.persistPeer(id)
}

func (n *Node) removePeer(id peer.ID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.peers, id)
}

func (n *Node) persistPeer(id peer.ID) {
	if n.config.Peers == nil {
		return
	}
	addrs := n.host.Peerstore().Addrs(id)
	if len(addrs) == 0 {
		return
	}
	raw, err := json.Marshal(addrStrings(addrs))
	if err != nil {
		return
	}
	n.config.Peers.Put([]byte(id.String()), raw)
}

func addrStrings(addrs []ma.Multiaddr) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

// LoadPersistedPeers reconnects to every peer address persisted under
// the store's peer namespace (§4.G: "known addresses persist across
// restarts").
func (n *Node) LoadPersistedPeers() {
	if n.config.Peers == nil {
		return
	}
	n.config.Peers.ForEach([]byte(""), func(key, value []byte) error {
		if strings.HasPrefix(string(key), "ban/") {
			return nil
		}
		var addrs []string
		if err := json.Unmarshal(value, &addrs); err != nil {
			return nil
		}
		for _, a := range addrs {
			info, err := peerAddrInfo(a)
			if err != nil {
				continue
			}
			if err := n.dial(n.ctx, *info); err == nil {
				n.addPeer(info.ID, SourceKnown)
			}
		}
		return nil
	})
}

func (n *Node) connectSeedsOnce() bool {
	connected := false
	for _, seed := range n.config.Seeds {
		info, err := peerAddrInfo(seed)
		if err != nil {
			log.P2P.Warn().Str("seed", seed).Err(err).Msg("invalid seed address")
			continue
		}
		if err := n.dial(n.ctx, *info); err != nil {
			log.P2P.Debug().Str("seed", seed).Err(err).Msg("seed dial failed")
			continue
		}
		n.addPeer(info.ID, SourceKnown)
		connected = true
	}
	return connected
}

func (n *Node) connectSeedsLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			if n.PeerCount() == 0 {
				n.connectSeedsOnce()
			}
		}
	}
}

func (n *Node) startMDNS() {
	svc := mdns.NewMdnsService(n.host, n.rendezvous(), &discoveryNotifee{node: n})
	if err := svc.Start(); err != nil {
		log.P2P.Warn().Err(err).Msg("mdns discovery unavailable")
	}
}

func (n *Node) runDHTDiscovery() {
	ticker := time.NewTicker(dhtDiscoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			n.findDHTPeers()
		}
	}
}

func (n *Node) findDHTPeers() {
	if n.dht == nil {
		return
	}
	maxPeers := n.config.MaxPeers
	if maxPeers <= 0 {
		maxPeers = 50
	}
	if n.PeerCount() >= maxPeers {
		return
	}
	peerChan, err := n.dht.FindPeers(n.ctx, n.rendezvous())
	if err != nil {
		return
	}
	for p := range peerChan {
		if p.ID == n.host.ID() || n.PeerCount() >= maxPeers {
			continue
		}
		if err := n.dial(n.ctx, p); err == nil {
			n.addPeer(p.ID, SourceDHT)
		}
	}
}

// discoveryNotifee bridges mDNS peer discovery into addPeer.
type discoveryNotifee struct{ node *Node }

func (d *discoveryNotifee) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == d.node.host.ID() {
		return
	}
	if err := d.node.dial(d.node.ctx, pi); err == nil {
		d.node.addPeer(pi.ID, SourceMDNS)
	}
}

// connNotifier removes a peer from the tracked set once its last
// connection drops (§4.G connection policy: at most one established
// connection per peer id is tracked at a time).
type connNotifier struct{ node *Node }

func (c *connNotifier) Listen(network.Network, ma.Multiaddr)      {}
func (c *connNotifier) ListenClose(network.Network, ma.Multiaddr) {}
func (c *connNotifier) Connected(net network.Network, conn network.Conn) {
	c.node.addPeer(conn.RemotePeer(), SourceUnknown)
}
func (c *connNotifier) Disconnected(net network.Network, conn network.Conn) {
	if len(net.ConnsToPeer(conn.RemotePeer())) == 0 {
		c.node.removePeer(conn.RemotePeer())
	}
}

func remoteIP(id peer.ID) string {
	// Ratelimiting is keyed by peer ID rather than a resolved IP: a
	// libp2p connection's remote multiaddr can change across NAT
	// rebinding but the peer ID (derived from its public key) is
	// stable for the lifetime of the ban/ratelimit decision.
	return id.String()
}

func loadOrCreateIdentity(dataDir string) (crypto.PrivKey, error) {
	path := filepath.Join(dataDir, "node.key")
	if raw, err := os.ReadFile(path); err == nil {
		decoded, err := hex.DecodeString(string(raw))
		if err != nil {
			return nil, fmt.Errorf("decode node identity: %w", err)
		}
		return crypto.UnmarshalEd25519PrivateKey(decoded)
	}

	priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate node identity: %w", err)
	}
	raw, err := priv.Raw()
	if err != nil {
		return nil, fmt.Errorf("marshal node identity: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(raw)), 0o600); err != nil {
		return nil, fmt.Errorf("save node identity: %w", err)
	}
	return priv, nil
}
