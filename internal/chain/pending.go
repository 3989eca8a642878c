package chain

import (
	"sort"

	"github.com/tofuri-net/tofuri/pkg/block"
	"github.com/tofuri-net/tofuri/pkg/stake"
	"github.com/tofuri-net/tofuri/pkg/tx"
	"github.com/tofuri-net/tofuri/pkg/types"
)

// ElapsedSeconds bounds how long an item may sit in a pending pool before
// pending_retain drops it (§4.F.4, §6.2 ELAPSED).
const ElapsedSeconds = 90

// pendingTx holds not-yet-applied transactions keyed by hash, insertion
// order preserved for deterministic fee-sort tie-breaking at forge time.
type pendingTx struct {
	order []types.Hash
	byHash map[types.Hash]*tx.Transaction
}

func newPendingTx() *pendingTx {
	return &pendingTx{byHash: make(map[types.Hash]*tx.Transaction)}
}

func (p *pendingTx) has(h types.Hash) bool {
	_, ok := p.byHash[h]
	return ok
}

func (p *pendingTx) push(t *tx.Transaction) {
	h := t.Hash()
	p.byHash[h] = t
	p.order = append(p.order, h)
}

func (p *pendingTx) remove(h types.Hash) {
	if _, ok := p.byHash[h]; !ok {
		return
	}
	delete(p.byHash, h)
	for i, oh := range p.order {
		if oh == h {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// retain drops every pending transaction whose timestamp has elapsed
// relative to t (§4.F.4: |t - ts| > ELAPSED).
func (p *pendingTx) retain(t uint32) {
	for _, h := range append([]types.Hash(nil), p.order...) {
		ts := p.byHash[h].Timestamp
		if elapsed(t, ts) {
			p.remove(h)
		}
	}
}

// eligible returns pending transactions with timestamp <= t that are not
// already applied in unstableChain, sorted by fee descending (§4.F.3).
func (p *pendingTx) eligible(t uint32, inChain func(types.Hash) bool) []*tx.Transaction {
	var out []*tx.Transaction
	for _, h := range p.order {
		txn := p.byHash[h]
		if txn.Timestamp > t {
			continue
		}
		if inChain(h) {
			continue
		}
		out = append(out, txn)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Fee.Uint64() > out[j].Fee.Uint64()
	})
	return out
}

// pendingStake is the stake-side twin of pendingTx.
type pendingStake struct {
	order  []types.Hash
	byHash map[types.Hash]*stake.Stake
}

func newPendingStake() *pendingStake {
	return &pendingStake{byHash: make(map[types.Hash]*stake.Stake)}
}

func (p *pendingStake) has(h types.Hash) bool {
	_, ok := p.byHash[h]
	return ok
}

func (p *pendingStake) push(s *stake.Stake) {
	h := s.Hash()
	p.byHash[h] = s
	p.order = append(p.order, h)
}

func (p *pendingStake) remove(h types.Hash) {
	if _, ok := p.byHash[h]; !ok {
		return
	}
	delete(p.byHash, h)
	for i, oh := range p.order {
		if oh == h {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

func (p *pendingStake) retain(t uint32) {
	for _, h := range append([]types.Hash(nil), p.order...) {
		ts := p.byHash[h].Timestamp
		if elapsed(t, ts) {
			p.remove(h)
		}
	}
}

func (p *pendingStake) eligible(t uint32, inChain func(types.Hash) bool) []*stake.Stake {
	var out []*stake.Stake
	for _, h := range p.order {
		s := p.byHash[h]
		if s.Timestamp > t {
			continue
		}
		if inChain(h) {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Fee.Uint64() > out[j].Fee.Uint64()
	})
	return out
}

// pendingBlock holds queued blocks that passed validate_block but whose
// timestamp has not yet arrived (§4.F: "blocks execute only when
// block.timestamp <= now").
type pendingBlock struct {
	order  []types.Hash
	byHash map[types.Hash]*block.Block
}

func newPendingBlock() *pendingBlock {
	return &pendingBlock{byHash: make(map[types.Hash]*block.Block)}
}

func (p *pendingBlock) has(h types.Hash) bool {
	_, ok := p.byHash[h]
	return ok
}

func (p *pendingBlock) push(b *block.Block) {
	h := b.Hash()
	p.byHash[h] = b
	p.order = append(p.order, h)
}

func (p *pendingBlock) remove(h types.Hash) {
	if _, ok := p.byHash[h]; !ok {
		return
	}
	delete(p.byHash, h)
	for i, oh := range p.order {
		if oh == h {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// ready returns, in queue order, the queued blocks whose timestamp has
// arrived (<= t) and removes them from the queue.
func (p *pendingBlock) ready(t uint32) []*block.Block {
	var out []*block.Block
	for _, h := range append([]types.Hash(nil), p.order...) {
		b := p.byHash[h]
		if b.Timestamp <= t {
			out = append(out, b)
			p.remove(h)
		}
	}
	return out
}

// retain drops queued blocks whose slot has passed by more than
// ElapsedSeconds without being applied (§4.F.4).
func (p *pendingBlock) retain(t uint32) {
	for _, h := range append([]types.Hash(nil), p.order...) {
		b := p.byHash[h]
		if t > b.Timestamp && t-b.Timestamp > ElapsedSeconds {
			p.remove(h)
		}
	}
}

func elapsed(t, ts uint32) bool {
	var diff uint32
	if t > ts {
		diff = t - ts
	} else {
		diff = ts - t
	}
	return diff > ElapsedSeconds
}
