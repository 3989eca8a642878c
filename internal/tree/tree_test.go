package tree

import (
	"testing"

	"github.com/tofuri-net/tofuri/pkg/types"
)

func hashOf(b byte) types.Hash {
	var h types.Hash
	h[0] = b
	return h
}

func TestTree_InsertAndGet(t *testing.T) {
	tr := New()
	zero := types.Hash{}
	h1 := hashOf(1)

	n := tr.Insert(h1, zero, 100)
	if n.Height != 0 {
		t.Fatalf("genesis child height = %d, want 0", n.Height)
	}

	got, ok := tr.Get(h1)
	if !ok {
		t.Fatal("Get() after Insert() = not found")
	}
	if got.Hash != h1 || got.PreviousHash != zero {
		t.Fatalf("Get() = %+v, want hash=%v previous=%v", got, h1, zero)
	}
}

func TestTree_InsertDuplicateIsNoop(t *testing.T) {
	tr := New()
	zero := types.Hash{}
	h1 := hashOf(1)

	tr.Insert(h1, zero, 100)
	again := tr.Insert(h1, zero, 999) // different timestamp, should be ignored
	if again.Timestamp != 100 {
		t.Fatalf("duplicate Insert() returned Timestamp=%d, want 100 (unchanged)", again.Timestamp)
	}
	if tr.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tr.Len())
	}
}

func TestTree_HeightsAccumulate(t *testing.T) {
	tr := New()
	zero := types.Hash{}
	h1, h2, h3 := hashOf(1), hashOf(2), hashOf(3)

	tr.Insert(h1, zero, 100)
	tr.Insert(h2, h1, 160)
	tr.Insert(h3, h2, 220)

	n3, _ := tr.Get(h3)
	if n3.Height != 2 {
		t.Fatalf("h3 height = %d, want 2", n3.Height)
	}
}

func TestTree_MainPicksLongestBranch(t *testing.T) {
	tr := New()
	zero := types.Hash{}
	h1, h2a, h2b, h3a := hashOf(1), hashOf(0x2a), hashOf(0x2b), hashOf(0x3a)

	tr.Insert(h1, zero, 100)
	tr.Insert(h2a, h1, 160)
	tr.Insert(h2b, h1, 160)
	tr.Insert(h3a, h2a, 220)

	main, ok := tr.Main()
	if !ok {
		t.Fatal("Main() = not found")
	}
	if main.Hash != h3a {
		t.Fatalf("Main() = %v, want %v (longer branch)", main.Hash, h3a)
	}
}

func TestTree_MainTieBreaksByOlderTimestamp(t *testing.T) {
	tr := New()
	zero := types.Hash{}
	h1, h2a, h2b := hashOf(1), hashOf(0x2a), hashOf(0x2b)

	tr.Insert(h1, zero, 100)
	tr.Insert(h2a, h1, 300)
	tr.Insert(h2b, h1, 200) // older tip timestamp should win the tie

	main, ok := tr.Main()
	if !ok {
		t.Fatal("Main() = not found")
	}
	if main.Hash != h2b {
		t.Fatalf("Main() = %v, want %v (older timestamp tie-break)", main.Hash, h2b)
	}
}

func TestTree_MainTieBreaksByLowerHash(t *testing.T) {
	tr := New()
	zero := types.Hash{}
	hLow, hHigh := hashOf(0x01), hashOf(0xff)

	tr.Insert(hLow, zero, 100)
	tr.Insert(hHigh, zero, 100)

	main, ok := tr.Main()
	if !ok {
		t.Fatal("Main() = not found")
	}
	if main.Hash != hLow {
		t.Fatalf("Main() = %v, want %v (lower hash tie-break)", main.Hash, hLow)
	}
}

func TestTree_Empty(t *testing.T) {
	tr := New()
	if _, ok := tr.Main(); ok {
		t.Fatal("Main() on empty tree should return not-found")
	}
}

func TestTree_SortBranches(t *testing.T) {
	tr := New()
	zero := types.Hash{}
	h1, h2a, h2b := hashOf(1), hashOf(0x2a), hashOf(0x2b)

	tr.Insert(h1, zero, 100)
	tr.Insert(h2a, h1, 160)
	tr.Insert(h2b, h1, 160)

	branches := tr.SortBranches()
	if len(branches) != 2 {
		t.Fatalf("SortBranches() returned %d tips, want 2", len(branches))
	}
}

func TestTree_StableAndUnstableHashes(t *testing.T) {
	tr := New()
	zero := types.Hash{}
	hashes := []types.Hash{hashOf(1), hashOf(2), hashOf(3), hashOf(4), hashOf(5)}

	prev := zero
	for i, h := range hashes {
		tr.Insert(h, prev, uint32(100+i*60))
		prev = h
	}

	stable, unstable := tr.StableAndUnstableHashes(2)
	if len(unstable) != 2 {
		t.Fatalf("unstable len = %d, want 2", len(unstable))
	}
	if len(stable)+len(unstable) != len(hashes) {
		t.Fatalf("stable+unstable = %d, want %d", len(stable)+len(unstable), len(hashes))
	}
	if unstable[len(unstable)-1] != hashes[len(hashes)-1] {
		t.Fatalf("unstable tail = %v, want tip %v", unstable[len(unstable)-1], hashes[len(hashes)-1])
	}
}

func TestTree_StableAndUnstableHashes_ShorterThanK(t *testing.T) {
	tr := New()
	zero := types.Hash{}
	h1, h2 := hashOf(1), hashOf(2)
	tr.Insert(h1, zero, 100)
	tr.Insert(h2, h1, 160)

	stable, unstable := tr.StableAndUnstableHashes(10)
	if len(stable) != 0 {
		t.Fatalf("stable len = %d, want 0 when branch is shorter than K", len(stable))
	}
	if len(unstable) != 2 {
		t.Fatalf("unstable len = %d, want 2", len(unstable))
	}
}

func TestTree_UnstableHashes(t *testing.T) {
	tr := New()
	zero := types.Hash{}
	hashes := []types.Hash{hashOf(1), hashOf(2), hashOf(3), hashOf(4)}

	prev := zero
	for i, h := range hashes {
		tr.Insert(h, prev, uint32(100+i*60))
		prev = h
	}

	got := tr.UnstableHashes(10, hashes[0])
	want := hashes[1:]
	if len(got) != len(want) {
		t.Fatalf("UnstableHashes() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("UnstableHashes()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTree_UnstableHashes_CapsAtK(t *testing.T) {
	tr := New()
	zero := types.Hash{}
	hashes := []types.Hash{hashOf(1), hashOf(2), hashOf(3), hashOf(4), hashOf(5)}

	prev := zero
	for i, h := range hashes {
		tr.Insert(h, prev, uint32(100+i*60))
		prev = h
	}

	got := tr.UnstableHashes(2, hashes[0])
	if len(got) != 2 {
		t.Fatalf("UnstableHashes() len = %d, want 2", len(got))
	}
	if got[len(got)-1] != hashes[len(hashes)-1] {
		t.Fatalf("UnstableHashes() tail = %v, want tip %v", got[len(got)-1], hashes[len(hashes)-1])
	}
}
