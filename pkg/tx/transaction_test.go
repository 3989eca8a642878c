package tx

import (
	"testing"

	"github.com/tofuri-net/tofuri/pkg/crypto"
	"github.com/tofuri-net/tofuri/pkg/types"
)

func TestTransaction_SignAndRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	output := types.Address{0x01, 0x02}

	txn := New(output, types.NewAmount(100), types.NewAmount(1), 1000)
	if err := txn.Sign(key); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	addr, err := txn.InputAddress()
	if err != nil {
		t.Fatalf("InputAddress() error: %v", err)
	}
	want := crypto.AddressFromPubKey(key.PublicKey())
	if addr != want {
		t.Errorf("InputAddress() = %s, want %s", addr, want)
	}
}

func TestTransaction_HashExcludesAmountAndSignature(t *testing.T) {
	output := types.Address{0x01}
	txn := New(output, types.NewAmount(100), types.NewAmount(1), 1000)
	before := txn.Hash()

	txn.Amount = types.NewAmount(999)
	if txn.Hash() != before {
		t.Error("transaction hash must not depend on amount")
	}

	txn.Signature[0] ^= 0xff
	if txn.Hash() != before {
		t.Error("transaction hash must not depend on signature")
	}
}

func TestTransaction_IsValid(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	output := types.Address{0x05}

	txn := New(output, types.NewAmount(10), types.NewAmount(1), 1000)
	if err := txn.Sign(key); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if !txn.IsValid() {
		t.Error("well-formed signed transaction should be valid")
	}
}

func TestTransaction_InvalidZeroAmount(t *testing.T) {
	key, _ := crypto.GenerateKey()
	txn := New(types.Address{0x05}, types.NewAmount(0), types.NewAmount(1), 1000)
	_ = txn.Sign(key)
	if txn.IsValid() {
		t.Error("zero amount must be invalid")
	}
}

func TestTransaction_InvalidZeroFee(t *testing.T) {
	key, _ := crypto.GenerateKey()
	txn := New(types.Address{0x05}, types.NewAmount(10), types.NewAmount(0), 1000)
	_ = txn.Sign(key)
	if txn.IsValid() {
		t.Error("zero fee must be invalid")
	}
}

func TestTransaction_InvalidSelfTransfer(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	output := crypto.AddressFromPubKey(key.PublicKey())

	txn := New(output, types.NewAmount(10), types.NewAmount(1), 1000)
	if err := txn.Sign(key); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if txn.IsValid() {
		t.Error("input == output must be invalid")
	}
}

func TestTransaction_MarshalRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	txn := New(types.Address{0x09}, types.NewAmount(500), types.NewAmount(5), 42)
	if err := txn.Sign(key); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	data := txn.Marshal()
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if got.Hash() != txn.Hash() {
		t.Errorf("round-tripped hash mismatch: got %s, want %s", got.Hash(), txn.Hash())
	}
	if got.OutputAddress != txn.OutputAddress {
		t.Error("round trip lost output address")
	}
}

func TestUnmarshal_WrongLength(t *testing.T) {
	if _, err := Unmarshal([]byte{1, 2, 3}); err == nil {
		t.Error("Unmarshal() should reject wrong-length input")
	}
}
