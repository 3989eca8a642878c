package store

// Namespace prefixes for the six record kinds the consensus core
// persists (§6.3): blocks by hash, transactions by hash, stakes by
// hash, the fork tree's arena nodes, the latest stable checkpoint, and
// known peer addresses.
var (
	prefixBlock       = []byte("b/")
	prefixTransaction = []byte("t/")
	prefixStake       = []byte("s/")
	prefixTree        = []byte("n/")
	prefixCheckpoint  = []byte("c/")
	prefixPeer        = []byte("p/")
)

// Store bundles the namespaced views a node needs over one underlying
// database. Each field is isolated via PrefixDB so record kinds never
// collide in key space even though they share one Badger instance.
type Store struct {
	inner DB

	Block       *PrefixDB
	Transaction *PrefixDB
	Stake       *PrefixDB
	Tree        *PrefixDB
	Checkpoint  *PrefixDB
	Peer        *PrefixDB
}

// New wraps inner with the six namespaces the node persists state
// under.
func New(inner DB) *Store {
	return &Store{
		inner:       inner,
		Block:       NewPrefixDB(inner, prefixBlock),
		Transaction: NewPrefixDB(inner, prefixTransaction),
		Stake:       NewPrefixDB(inner, prefixStake),
		Tree:        NewPrefixDB(inner, prefixTree),
		Checkpoint:  NewPrefixDB(inner, prefixCheckpoint),
		Peer:        NewPrefixDB(inner, prefixPeer),
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.inner.Close()
}
