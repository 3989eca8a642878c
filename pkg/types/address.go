package types

import "crypto/sha256"

// checksum returns the first 4 bytes of SHA-256(address), used only for
// the human-readable display form (types.Address.String). This is a
// display convenience, not a consensus primitive, so it reaches for the
// standard library directly rather than pkg/crypto.Hash: pulling in
// pkg/crypto here would create an import cycle (crypto depends on
// types for the Hash/Address types themselves).
func checksum(a Address) [4]byte {
	sum := sha256.Sum256(a[:])
	var out [4]byte
	copy(out[:], sum[:4])
	return out
}
