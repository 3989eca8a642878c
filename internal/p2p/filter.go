package p2p

import (
	"crypto/sha256"
	"sync"
)

// Filter deduplicates recently-seen gossip payloads by exact bytes
// (§4.G), preventing a re-broadcast of a message this node already
// processed from re-triggering downstream validation ("storm
// amplification").
type Filter struct {
	mu   sync.Mutex
	seen map[[32]byte]struct{}
}

// NewFilter creates an empty Filter.
func NewFilter() *Filter {
	return &Filter{seen: make(map[[32]byte]struct{})}
}

// SeenOrRecord reports whether payload was already recorded, recording
// it if not.
func (f *Filter) SeenOrRecord(payload []byte) bool {
	key := sha256.Sum256(payload)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[key]; ok {
		return true
	}
	f.seen[key] = struct{}{}
	return false
}

// Clear empties the filter (§4.H: cleared on the same 60s tick that
// resets the ratelimiter).
func (f *Filter) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = make(map[[32]byte]struct{})
}
