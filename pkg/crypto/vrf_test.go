package crypto

import "testing"

func TestVRF_ProveVerify(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	alpha := []byte("round seed")
	beta, pi, err := VRFProve(key, alpha)
	if err != nil {
		t.Fatalf("VRFProve() error: %v", err)
	}

	if !VRFVerify(key.PublicKey(), alpha, beta, pi) {
		t.Error("VRFVerify() should accept a valid proof")
	}
}

func TestVRF_WrongAlphaRejected(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	beta, pi, err := VRFProve(key, []byte("alpha A"))
	if err != nil {
		t.Fatalf("VRFProve() error: %v", err)
	}

	if VRFVerify(key.PublicKey(), []byte("alpha B"), beta, pi) {
		t.Error("VRFVerify() should reject a proof against the wrong input")
	}
}

func TestVRF_WrongKeyRejected(t *testing.T) {
	key1, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	key2, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	alpha := []byte("shared seed")
	beta, pi, err := VRFProve(key1, alpha)
	if err != nil {
		t.Fatalf("VRFProve() error: %v", err)
	}

	if VRFVerify(key2.PublicKey(), alpha, beta, pi) {
		t.Error("VRFVerify() should reject a proof under the wrong public key")
	}
}

func TestVRF_TamperedProofRejected(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	alpha := []byte("tamper test")
	beta, pi, err := VRFProve(key, alpha)
	if err != nil {
		t.Fatalf("VRFProve() error: %v", err)
	}

	pi[PiSize-1] ^= 0xff
	if VRFVerify(key.PublicKey(), alpha, beta, pi) {
		t.Error("VRFVerify() should reject a tampered proof")
	}
}

func TestVRF_Deterministic(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	alpha := []byte("determinism check")
	beta1, _, err := VRFProve(key, alpha)
	if err != nil {
		t.Fatalf("VRFProve() error: %v", err)
	}
	beta2, _, err := VRFProve(key, alpha)
	if err != nil {
		t.Fatalf("VRFProve() error: %v", err)
	}

	// beta must be a pure function of (key, alpha) even though the
	// proof itself is randomized per call via the nonce k.
	if beta1 != beta2 {
		t.Error("VRF beta must be deterministic for a given key and alpha")
	}
}
