package chain

import (
	"testing"

	"github.com/tofuri-net/tofuri/pkg/block"
	"github.com/tofuri-net/tofuri/pkg/crypto"
	"github.com/tofuri-net/tofuri/pkg/tx"
	"github.com/tofuri-net/tofuri/pkg/types"
)

func testBlock(t *testing.T, timestamp uint32) *block.Block {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	b := block.New(types.Hash{}, timestamp, crypto.Pi{}, nil, nil)
	if err := b.Sign(key); err != nil {
		t.Fatalf("sign block: %v", err)
	}
	return b
}

func signedTx(t *testing.T, key *crypto.PrivateKey, amount, fee uint64, timestamp uint32) *tx.Transaction {
	t.Helper()
	out := types.Address{0x1}
	trans := tx.New(out, types.NewAmount(amount), types.NewAmount(fee), timestamp)
	if err := trans.Sign(key); err != nil {
		t.Fatalf("sign tx: %v", err)
	}
	return trans
}

func TestPendingTx_EligibleSortsByFeeDescending(t *testing.T) {
	key, _ := crypto.GenerateKey()
	p := newPendingTx()

	low := signedTx(t, key, 10, 1, 100)
	high := signedTx(t, key, 10, 5, 100)
	mid := signedTx(t, key, 10, 3, 100)
	p.push(low)
	p.push(high)
	p.push(mid)

	out := p.eligible(200, func(types.Hash) bool { return false })
	if len(out) != 3 {
		t.Fatalf("eligible() len = %d, want 3", len(out))
	}
	if out[0] != high || out[1] != mid || out[2] != low {
		t.Fatalf("eligible() not sorted by fee descending")
	}
}

func TestPendingTx_EligibleExcludesFutureAndInChain(t *testing.T) {
	key, _ := crypto.GenerateKey()
	p := newPendingTx()

	future := signedTx(t, key, 10, 1, 500)
	inChain := signedTx(t, key, 10, 1, 100)
	ready := signedTx(t, key, 10, 1, 150)
	p.push(future)
	p.push(inChain)
	p.push(ready)

	inChainHash := inChain.Hash()
	out := p.eligible(200, func(h types.Hash) bool { return h == inChainHash })
	if len(out) != 1 || out[0] != ready {
		t.Fatalf("eligible() = %v, want [ready]", out)
	}
}

func TestPendingTx_RetainDropsElapsed(t *testing.T) {
	key, _ := crypto.GenerateKey()
	p := newPendingTx()

	stale := signedTx(t, key, 10, 1, 100)
	fresh := signedTx(t, key, 10, 1, 150)
	p.push(stale)
	p.push(fresh)

	p.retain(100 + ElapsedSeconds + 1)

	if p.has(stale.Hash()) {
		t.Fatal("retain() kept a transaction past its elapsed horizon")
	}
	if !p.has(fresh.Hash()) {
		t.Fatal("retain() dropped a transaction within its elapsed horizon")
	}
}

func TestPendingBlock_ReadyDrainsInOrder(t *testing.T) {
	p := newPendingBlock()

	b1 := testBlock(t, 100)
	b2 := testBlock(t, 200)
	b3 := testBlock(t, 300)
	p.push(b1)
	p.push(b2)
	p.push(b3)

	ready := p.ready(200)
	if len(ready) != 2 || ready[0] != b1 || ready[1] != b2 {
		t.Fatalf("ready() = %v, want [b1 b2]", ready)
	}
	if p.has(b1.Hash()) || p.has(b2.Hash()) {
		t.Fatal("ready() did not remove drained blocks from the queue")
	}
	if !p.has(b3.Hash()) {
		t.Fatal("ready() removed a block whose slot hasn't arrived")
	}
}
