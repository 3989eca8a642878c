// Package crypto provides the node's cryptographic primitives: content
// hashing, recoverable signing, and the VRF used for staker scheduling.
package crypto

import (
	"github.com/minio/sha256-simd"

	"github.com/tofuri-net/tofuri/pkg/types"
)

// Hash computes the SHA-256 digest of data. Every content-addressed
// identity in this node (block, transaction, stake hashes; merkle
// combination) goes through this function.
func Hash(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// AddressFromPubKey derives an address from a compressed public key:
// Address = Hash(compressed_pubkey)[:20].
func AddressFromPubKey(pubKey []byte) types.Address {
	h := Hash(pubKey)
	var addr types.Address
	copy(addr[:], h[:types.AddressSize])
	return addr
}

// HashConcat hashes the concatenation of two hashes, the combining step
// used to build merkle trees.
func HashConcat(a, b types.Hash) types.Hash {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return Hash(buf[:])
}
