package crypto

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/tofuri-net/tofuri/pkg/types"
)

// SignatureSize is the on-wire width of a record signature.
const SignatureSize = 64

// Signer signs a 32-byte hash and exposes its public key.
type Signer interface {
	Sign(hash []byte) ([]byte, error)
	PublicKey() []byte
}

// PrivateKey wraps a secp256k1 private key for recoverable ECDSA signing.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GenerateKey creates a new random secp256k1 private key.
func GenerateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes creates a PrivateKey from a 32-byte secret.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	key := secp256k1.PrivKeyFromBytes(b)
	return &PrivateKey{key: key}, nil
}

// Sign produces a 64-byte (r‖s) ECDSA signature over a 32-byte hash. The
// recovery id is not stored on the wire (§6.2 RECOVERY_ID is a fixed
// protocol constant): s is negated when needed so that every signature
// recovers under recovery id 0, the first id Recover tries.
func (pk *PrivateKey) Sign(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	compact := ecdsa.SignCompact(pk.key, hash, true)
	// compact is 65 bytes: [header, r(32), s(32)]. Drop the header.
	sig := make([]byte, SignatureSize)
	copy(sig, compact[1:])
	// Negating s flips the parity of the recovered R point, turning an
	// odd recovery id into an even one for the same signer.
	if (compact[0]-27-4)&1 == 1 {
		var s secp256k1.ModNScalar
		s.SetByteSlice(compact[33:])
		s.Negate()
		sb := s.Bytes()
		copy(sig[32:], sb[:])
	}
	return sig, nil
}

// PublicKey returns the compressed 33-byte public key.
func (pk *PrivateKey) PublicKey() []byte {
	return pk.key.PubKey().SerializeCompressed()
}

// Serialize returns the 32-byte private key scalar.
func (pk *PrivateKey) Serialize() []byte {
	return pk.key.Serialize()
}

// Scalar exposes the private key as a mod-n scalar, for VRF proving.
func (pk *PrivateKey) Scalar() *secp256k1.ModNScalar {
	return &pk.key.Key
}

// Zero securely zeroes the private key memory.
func (pk *PrivateKey) Zero() {
	pk.key.Zero()
}

// Verify checks a 64-byte (r‖s) signature against a 32-byte hash and a
// compressed public key, without recovering the signer.
func Verify(hash, signature, publicKey []byte) bool {
	pubKey, err := secp256k1.ParsePubKey(publicKey)
	if err != nil {
		return false
	}
	sig, err := parseCompact(signature)
	if err != nil {
		return false
	}
	return sig.Verify(hash, pubKey)
}

// Recover recovers the compressed public key that produced a 64-byte
// (r‖s) signature over hash, by trying the 4 possible recovery ids in
// order and returning the first recovered key that verifies the
// signature. Any id whose point exists yields a key that verifies, so
// the signer is returned for signatures made by Sign, which recover
// under id 0.
func Recover(hash, signature []byte) ([]byte, error) {
	if len(signature) != SignatureSize {
		return nil, fmt.Errorf("signature must be %d bytes, got %d", SignatureSize, len(signature))
	}
	compact := make([]byte, 1+SignatureSize)
	copy(compact[1:], signature)
	for recID := byte(0); recID < 4; recID++ {
		compact[0] = 27 + 4 + recID // compressed-key header
		pub, wasCompressed, err := ecdsa.RecoverCompact(compact, hash)
		if err != nil || !wasCompressed {
			continue
		}
		sig, err := parseCompact(signature)
		if err != nil {
			return nil, err
		}
		if sig.Verify(hash, pub) {
			return pub.SerializeCompressed(), nil
		}
	}
	return nil, fmt.Errorf("recover: no valid recovery id")
}

// RecoverAddress recovers the signer's address directly.
func RecoverAddress(hash, signature []byte) (types.Address, error) {
	pub, err := Recover(hash, signature)
	if err != nil {
		return types.Address{}, err
	}
	return AddressFromPubKey(pub), nil
}

func parseCompact(signature []byte) (*ecdsa.Signature, error) {
	if len(signature) != SignatureSize {
		return nil, fmt.Errorf("signature must be %d bytes, got %d", SignatureSize, len(signature))
	}
	var r, s secp256k1.ModNScalar
	r.SetByteSlice(signature[:32])
	s.SetByteSlice(signature[32:])
	return ecdsa.NewSignature(&r, &s), nil
}
