package fork

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/tofuri-net/tofuri/pkg/types"
)

// checkpointWire is Checkpoint's JSON-friendly shape. Address/Hash are
// fixed-size byte arrays, which encoding/json cannot use directly as map
// keys, so balances and staked amounts are keyed by hex string instead.
// JSON rather than the project's fixed binary codec (used for
// Block/Transaction/Stake, §6.1) because a checkpoint is an internal
// cold-start optimization, never exchanged over the wire or hashed into
// consensus state, and types.Address/types.Hash already carry
// MarshalJSON/UnmarshalJSON for the out-of-scope HTTP/JSON boundary.
type checkpointWire struct {
	Height    uint64            `json:"height"`
	Balance   map[string]uint64 `json:"balance"`
	Staked    map[string]uint64 `json:"staked"`
	Stakers   []types.Address   `json:"stakers"`
	LastBlock types.Hash        `json:"last_block"`
}

// MarshalCheckpoint encodes a Checkpoint to JSON.
func MarshalCheckpoint(cp *Checkpoint) ([]byte, error) {
	w := checkpointWire{
		Height:    cp.Height,
		Balance:   make(map[string]uint64, len(cp.Balance)),
		Staked:    make(map[string]uint64, len(cp.Staked)),
		Stakers:   cp.Stakers,
		LastBlock: cp.LastBlock,
	}
	for a, v := range cp.Balance {
		w.Balance[hex.EncodeToString(a[:])] = v
	}
	for a, v := range cp.Staked {
		w.Staked[hex.EncodeToString(a[:])] = v
	}
	return json.Marshal(w)
}

// UnmarshalCheckpoint decodes a Checkpoint previously written by
// MarshalCheckpoint.
func UnmarshalCheckpoint(b []byte) (*Checkpoint, error) {
	var w checkpointWire
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	cp := &Checkpoint{
		Height:    w.Height,
		Balance:   make(map[types.Address]uint64, len(w.Balance)),
		Staked:    make(map[types.Address]uint64, len(w.Staked)),
		Stakers:   w.Stakers,
		LastBlock: w.LastBlock,
	}
	for hexAddr, v := range w.Balance {
		a, err := decodeAddress(hexAddr)
		if err != nil {
			return nil, err
		}
		cp.Balance[a] = v
	}
	for hexAddr, v := range w.Staked {
		a, err := decodeAddress(hexAddr)
		if err != nil {
			return nil, err
		}
		cp.Staked[a] = v
	}
	return cp, nil
}

func decodeAddress(s string) (types.Address, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return types.Address{}, fmt.Errorf("checkpoint address %q: %w", s, err)
	}
	if len(b) != types.AddressSize {
		return types.Address{}, fmt.Errorf("checkpoint address %q: want %d bytes, got %d", s, types.AddressSize, len(b))
	}
	var a types.Address
	copy(a[:], b)
	return a, nil
}
