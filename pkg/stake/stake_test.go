package stake

import (
	"testing"

	"github.com/tofuri-net/tofuri/pkg/crypto"
	"github.com/tofuri-net/tofuri/pkg/types"
)

func TestStake_EmptyHash(t *testing.T) {
	s := &Stake{}
	got := s.Hash()
	want, err := types.HexToHash("3e7077fd2f66d689e0cee6a7cf5b37bf2dca7c979af356d0a31cbc5c85605c7d")
	if err != nil {
		t.Fatalf("bad test literal: %v", err)
	}
	if got != want {
		t.Errorf("empty stake hash = %s, want %s", got, want)
	}
}

func TestStake_SignAndRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	s := New(true, types.NewAmount(100), types.NewAmount(1), 1000)
	if err := s.Sign(key); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	addr, err := s.InputAddress()
	if err != nil {
		t.Fatalf("InputAddress() error: %v", err)
	}
	want := crypto.AddressFromPubKey(key.PublicKey())
	if addr != want {
		t.Errorf("InputAddress() = %s, want %s", addr, want)
	}
}

func TestStake_HashExcludesAmountAndSignature(t *testing.T) {
	s := New(true, types.NewAmount(100), types.NewAmount(1), 1000)
	before := s.Hash()

	s.Amount = types.NewAmount(999)
	if s.Hash() != before {
		t.Error("stake hash must not depend on amount")
	}

	s.Signature[0] ^= 0xff
	if s.Hash() != before {
		t.Error("stake hash must not depend on signature")
	}
}

func TestStake_DepositVsWithdrawHashDiffer(t *testing.T) {
	deposit := New(true, types.NewAmount(10), types.NewAmount(1), 1000)
	withdraw := New(false, types.NewAmount(10), types.NewAmount(1), 1000)
	if deposit.Hash() == withdraw.Hash() {
		t.Error("deposit and withdraw stakes with equal fee/timestamp must hash differently")
	}
}

func TestStake_IsValid(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	s := New(true, types.NewAmount(10), types.NewAmount(1), 1000)
	if err := s.Sign(key); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if !s.IsValid() {
		t.Error("well-formed signed stake should be valid")
	}
}

func TestStake_InvalidZeroAmount(t *testing.T) {
	key, _ := crypto.GenerateKey()
	s := New(true, types.NewAmount(0), types.NewAmount(1), 1000)
	_ = s.Sign(key)
	if s.IsValid() {
		t.Error("zero amount must be invalid")
	}
}

func TestStake_InvalidZeroFee(t *testing.T) {
	key, _ := crypto.GenerateKey()
	s := New(true, types.NewAmount(10), types.NewAmount(0), 1000)
	_ = s.Sign(key)
	if s.IsValid() {
		t.Error("zero fee must be invalid")
	}
}

func TestStake_MarshalRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	s := New(false, types.NewAmount(500), types.NewAmount(5), 42)
	if err := s.Sign(key); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	data := s.Marshal()
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if got.Hash() != s.Hash() {
		t.Errorf("round-tripped hash mismatch: got %s, want %s", got.Hash(), s.Hash())
	}
	if got.Deposit != s.Deposit {
		t.Error("round trip lost deposit flag")
	}
}

func TestUnmarshal_WrongLength(t *testing.T) {
	if _, err := Unmarshal([]byte{1, 2, 3}); err == nil {
		t.Error("Unmarshal() should reject wrong-length input")
	}
}
