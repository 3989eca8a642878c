// Package tree tracks the forest of block headers built on top of the
// stable chain: every accepted header becomes a node, branches fork
// wherever two children share a parent, and the "main" branch is the
// longest path from the forest's root, tie-broken deterministically so
// every node computes the same answer from the same set of headers.
package tree

import (
	"sort"
	"sync"

	"github.com/tofuri-net/tofuri/pkg/types"
)

// Node is a single entry in the tree: a block's identity hash, the
// hash of its parent, its timestamp, and its height (distance from
// the forest's root, measured in blocks).
type Node struct {
	Hash         types.Hash
	PreviousHash types.Hash
	Timestamp    uint32
	Height       uint64
}

// Tree is an arena-indexed forest of Nodes, keyed by hash, with a
// previous-hash index for child lookup. A node whose PreviousHash is
// absent from the arena is a root of its own branch (in practice: the
// genesis block, whose PreviousHash is the zero hash).
type Tree struct {
	mu       sync.RWMutex
	nodes    map[types.Hash]*Node
	children map[types.Hash][]types.Hash // previous_hash -> child hashes
	tips     map[types.Hash]struct{}     // hashes with no recorded child
}

// New creates an empty tree.
func New() *Tree {
	return &Tree{
		nodes:    make(map[types.Hash]*Node),
		children: make(map[types.Hash][]types.Hash),
		tips:     make(map[types.Hash]struct{}),
	}
}

// Get returns the node for hash, and whether it was present.
func (t *Tree) Get(hash types.Hash) (Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[hash]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Insert attaches hash as a child of previousHash. If hash is already
// present, Insert is a no-op and returns the existing node unchanged
// (§4.D: "if hash already present → no-op return"). previousHash need
// not already be in the tree: an unknown parent makes hash a root of
// its own branch at height 0, letting forks be inserted before their
// ancestor is known (the coordinator is expected to reject this case
// via BlockPreviousHashNotInTree before it reaches the tree, but the
// tree itself stays total).
func (t *Tree) Insert(hash, previousHash types.Hash, timestamp uint32) Node {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.nodes[hash]; ok {
		return *existing
	}

	height := uint64(0)
	if parent, ok := t.nodes[previousHash]; ok {
		height = parent.Height + 1
		delete(t.tips, previousHash)
	}

	n := &Node{Hash: hash, PreviousHash: previousHash, Timestamp: timestamp, Height: height}
	t.nodes[hash] = n
	t.children[previousHash] = append(t.children[previousHash], hash)
	t.tips[hash] = struct{}{}
	return *n
}

// Main returns the tip of the longest branch in the tree: the deepest
// node, tie-broken by older timestamp, then by the lexicographically
// lower hash, so every node reaches the same answer from the same set
// of headers (§4.D).
func (t *Tree) Main() (Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.main()
}

func (t *Tree) main() (Node, bool) {
	if len(t.tips) == 0 {
		return Node{}, false
	}
	tips := make([]*Node, 0, len(t.tips))
	for h := range t.tips {
		tips = append(tips, t.nodes[h])
	}
	sortTips(tips)
	return *tips[0], true
}

// SortBranches returns every tip node in the tree's canonical
// deterministic order (highest first), the same ordering Main() uses
// to pick its winner. Exposed so callers (e.g. sync) can inspect
// runner-up branches, not just the current main tip.
func (t *Tree) SortBranches() []Node {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tips := make([]*Node, 0, len(t.tips))
	for h := range t.tips {
		tips = append(tips, t.nodes[h])
	}
	sortTips(tips)

	out := make([]Node, len(tips))
	for i, n := range tips {
		out[i] = *n
	}
	return out
}

// sortTips orders nodes by height descending, then timestamp
// ascending, then hash ascending — the canonical main-branch tie-break.
func sortTips(tips []*Node) {
	sort.Slice(tips, func(i, j int) bool {
		if tips[i].Height != tips[j].Height {
			return tips[i].Height > tips[j].Height
		}
		if tips[i].Timestamp != tips[j].Timestamp {
			return tips[i].Timestamp < tips[j].Timestamp
		}
		return lessHash(tips[i].Hash, tips[j].Hash)
	})
}

func lessHash(a, b types.Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// pathToRoot walks from hash back to the forest root (a node whose
// PreviousHash is not itself in the arena), returning hashes ordered
// oldest-first.
func (t *Tree) pathToRoot(hash types.Hash) []types.Hash {
	var path []types.Hash
	for {
		n, ok := t.nodes[hash]
		if !ok {
			break
		}
		path = append(path, hash)
		if _, ok := t.nodes[n.PreviousHash]; !ok {
			break
		}
		hash = n.PreviousHash
	}
	// reverse into oldest-first order
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// PathToRoot walks from hash back to the forest root, returning hashes
// ordered oldest-first. Unlike StableAndUnstableHashes/UnstableHashes it
// follows any branch, not just main — used to build a candidate view
// anchored at a block whose previous_hash may sit on a fork tip rather
// than the current main tip (§4.F.1 step 4).
func (t *Tree) PathToRoot(hash types.Hash) []types.Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pathToRoot(hash)
}

// StableAndUnstableHashes splits the main branch into a stable prefix
// and an unstable suffix of at most k hashes (§4.D). The unstable
// suffix is the tentative, reorg-able tail; everything before it is
// considered committed.
func (t *Tree) StableAndUnstableHashes(k int) (stable, unstable []types.Hash) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tip, ok := t.main()
	if !ok {
		return nil, nil
	}
	path := t.pathToRoot(tip.Hash)
	if len(path) <= k {
		return nil, path
	}
	split := len(path) - k
	return path[:split], path[split:]
}

// UnstableHashes returns the hashes from atHash (exclusive) to the
// main tip (inclusive), along the main branch, capped at k entries
// counted from the tip backward (§4.D).
func (t *Tree) UnstableHashes(k int, atHash types.Hash) []types.Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tip, ok := t.main()
	if !ok {
		return nil
	}
	path := t.pathToRoot(tip.Hash)

	cut := 0
	for i, h := range path {
		if h == atHash {
			cut = i + 1
			break
		}
	}
	rest := path[cut:]
	if len(rest) > k {
		rest = rest[len(rest)-k:]
	}
	return rest
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}
