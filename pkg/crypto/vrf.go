package crypto

import (
	"crypto/rand"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/tofuri-net/tofuri/pkg/types"
)

// PiSize is the on-wire width of a VRF proof (§3, §6.2). No VRF library
// exists anywhere in the retrieval pack (the reference implementation
// uses Ristretto25519, unavailable here); this is built directly on the
// kept secp256k1 dependency's curve primitives. The 81-byte proof packs
// a compressed gamma point (33 bytes), a 128-bit Fiat-Shamir challenge
// (16 bytes — reduced for compactness, the same trade idiomatic compact
// signature schemes make), and the 256-bit response scalar (32 bytes).
const PiSize = 33 + 16 + 32

// Pi is a serialized VRF proof.
type Pi [PiSize]byte

// VRFProve computes (pi, beta) over input alpha under secret key sk,
// following the standard VRF "prove" construction: pick k, gamma = H_α·sk,
// challenge c = H(G, H_α, pk, gamma, G·k, H_α·k), response s = k − c·sk.
func VRFProve(sk *PrivateKey, alpha []byte) (beta types.Hash, pi Pi, err error) {
	h := hashToCurve(alpha)

	var gamma secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(sk.Scalar(), &h, &gamma)

	k, err := randScalar()
	if err != nil {
		return beta, pi, fmt.Errorf("vrf prove: %w", err)
	}

	var gk, hk secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(k, &gk)
	secp256k1.ScalarMultNonConst(k, &h, &hk)

	var g secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(new(secp256k1.ModNScalar).SetInt(1), &g)

	gsk := sk.PublicKey()

	c := challenge(serializeJacobian(&g), serializeJacobian(&h), gsk,
		serializeJacobian(&gamma), serializeJacobian(&gk), serializeJacobian(&hk))

	var cFull secp256k1.ModNScalar
	cFull.SetByteSlice(append(make([]byte, 16), c[:]...))

	var cs secp256k1.ModNScalar
	cs.Mul2(&cFull, sk.Scalar())
	cs.Negate()
	var s secp256k1.ModNScalar
	s.Add2(k, &cs)

	pi = packPi(&gamma, c, s.Bytes())
	beta = Hash(serializeJacobian(&gamma))
	return beta, pi, nil
}

// VRFVerify checks that pi proves beta was derived from alpha under the
// compressed public key pk.
func VRFVerify(pk []byte, alpha []byte, beta types.Hash, pi Pi) bool {
	gamma, c, s, ok := unpackPi(pi)
	if !ok {
		return false
	}
	if Hash(serializeJacobian(&gamma)) != beta {
		return false
	}

	pub, err := secp256k1.ParsePubKey(pk)
	if err != nil {
		return false
	}
	var pubJ secp256k1.JacobianPoint
	pub.AsJacobian(&pubJ)

	h := hashToCurve(alpha)

	var cFull secp256k1.ModNScalar
	cFull.SetByteSlice(append(make([]byte, 16), c[:]...))
	var sScalar secp256k1.ModNScalar
	sScalar.SetByteSlice(s[:])

	var pkC, gs, u secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&cFull, &pubJ, &pkC)
	secp256k1.ScalarBaseMultNonConst(&sScalar, &gs)
	secp256k1.AddNonConst(&pkC, &gs, &u)

	var gammaC, hs, v secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&cFull, &gamma, &gammaC)
	secp256k1.ScalarMultNonConst(&sScalar, &h, &hs)
	secp256k1.AddNonConst(&gammaC, &hs, &v)

	var g secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(new(secp256k1.ModNScalar).SetInt(1), &g)

	wantC := challenge(serializeJacobian(&g), serializeJacobian(&h), pk,
		serializeJacobian(&gamma), serializeJacobian(&u), serializeJacobian(&v))

	return wantC == c
}

// hashToCurve maps alpha to a curve point via try-and-increment: hash
// alpha‖counter until the result is a valid x-coordinate.
func hashToCurve(alpha []byte) secp256k1.JacobianPoint {
	for counter := byte(0); ; counter++ {
		digest := Hash(append(append([]byte{}, alpha...), counter))
		var x secp256k1.FieldVal
		overflow := x.SetByteSlice(digest[:])
		if overflow {
			continue
		}
		var y secp256k1.FieldVal
		if !secp256k1.DecompressY(&x, false, &y) {
			continue
		}
		x.Normalize()
		y.Normalize()
		var p secp256k1.JacobianPoint
		p.X.Set(&x)
		p.Y.Set(&y)
		p.Z.SetInt(1)
		return p
	}
}

func randScalar() (*secp256k1.ModNScalar, error) {
	for {
		var buf [32]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return nil, err
		}
		var s secp256k1.ModNScalar
		overflow := s.SetByteSlice(buf[:])
		if overflow || s.IsZero() {
			continue
		}
		return &s, nil
	}
}

func serializeJacobian(p *secp256k1.JacobianPoint) []byte {
	q := *p
	q.ToAffine()
	pub := secp256k1.NewPublicKey(&q.X, &q.Y)
	return pub.SerializeCompressed()
}

func challenge(parts ...[]byte) [16]byte {
	var buf []byte
	for _, p := range parts {
		buf = append(buf, p...)
	}
	full := Hash(buf)
	var c [16]byte
	copy(c[:], full[:16])
	return c
}

func packPi(gamma *secp256k1.JacobianPoint, c [16]byte, s [32]byte) Pi {
	var pi Pi
	copy(pi[0:33], serializeJacobian(gamma))
	copy(pi[33:49], c[:])
	copy(pi[49:81], s[:])
	return pi
}

func unpackPi(pi Pi) (gamma secp256k1.JacobianPoint, c [16]byte, s [32]byte, ok bool) {
	pub, err := secp256k1.ParsePubKey(pi[0:33])
	if err != nil {
		return gamma, c, s, false
	}
	pub.AsJacobian(&gamma)
	copy(c[:], pi[33:49])
	copy(s[:], pi[49:81])
	return gamma, c, s, true
}
