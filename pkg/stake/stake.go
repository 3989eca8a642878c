// Package stake implements the Stake record: a signed deposit or
// withdrawal against a staker's balance/staked accounts.
package stake

import (
	"encoding/binary"
	"fmt"

	"github.com/tofuri-net/tofuri/pkg/crypto"
	"github.com/tofuri-net/tofuri/pkg/types"
)

// Stake moves value between an address's balance and staked accounts.
// Deposit=true moves balance→staked; Deposit=false withdraws Amount
// from staked back to balance, paying Fee from balance.
type Stake struct {
	Amount    types.Amount
	Fee       types.Amount
	Deposit   bool
	Timestamp uint32
	Signature [crypto.SignatureSize]byte
}

// New builds an unsigned stake.
func New(deposit bool, amount, fee types.Amount, timestamp uint32) *Stake {
	return &Stake{Amount: amount, Fee: fee, Deposit: deposit, Timestamp: timestamp}
}

// signingBytes returns the 9-byte preimage: timestamp ‖ fee ‖ deposit_byte.
func (s *Stake) signingBytes() []byte {
	buf := make([]byte, 9)
	binary.BigEndian.PutUint32(buf[0:4], s.Timestamp)
	copy(buf[4:8], s.Fee[:])
	if s.Deposit {
		buf[8] = 1
	}
	return buf
}

// Hash is SHA-256(timestamp ‖ fee ‖ deposit_byte). The signature and
// amount are deliberately excluded: amount is not part of identity
// (mirrors the block-header-excludes-signature invariant for the same
// anti-circularity reason — the signature cannot cover its own bytes).
func (s *Stake) Hash() types.Hash {
	return crypto.Hash(s.signingBytes())
}

// Sign signs the stake's hash with key and stores the 64-byte signature.
func (s *Stake) Sign(key *crypto.PrivateKey) error {
	h := s.Hash()
	sig, err := key.Sign(h[:])
	if err != nil {
		return fmt.Errorf("sign stake: %w", err)
	}
	copy(s.Signature[:], sig)
	return nil
}

// InputAddress recovers the signer's address from the signature.
func (s *Stake) InputAddress() (types.Address, error) {
	h := s.Hash()
	addr, err := crypto.RecoverAddress(h[:], s.Signature[:])
	if err != nil {
		return types.Address{}, fmt.Errorf("recover stake signer: %w", err)
	}
	return addr, nil
}

// IsValid checks the stand-alone invariants (§3): positive amount and
// fee, and a signature that recovers to some address. Overdraw / overflow
// checks happen against chain state elsewhere (§4.E.2 check_overflow).
func (s *Stake) IsValid() bool {
	if s.Amount.IsZero() {
		return false
	}
	if s.Fee.IsZero() {
		return false
	}
	if _, err := s.InputAddress(); err != nil {
		return false
	}
	return true
}

// Marshal serializes the stake to its canonical fixed binary form
// (§6.1): field order as declared, fixed arrays verbatim.
func (s *Stake) Marshal() []byte {
	buf := make([]byte, 0, 4+4+1+4+crypto.SignatureSize)
	buf = append(buf, s.Amount[:]...)
	buf = append(buf, s.Fee[:]...)
	if s.Deposit {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	ts := make([]byte, 4)
	binary.LittleEndian.PutUint32(ts, s.Timestamp)
	buf = append(buf, ts...)
	buf = append(buf, s.Signature[:]...)
	return buf
}

// Unmarshal parses a stake from its canonical binary form.
func Unmarshal(b []byte) (*Stake, error) {
	const size = 4 + 4 + 1 + 4 + crypto.SignatureSize
	if len(b) != size {
		return nil, fmt.Errorf("stake: expected %d bytes, got %d", size, len(b))
	}
	s := &Stake{}
	copy(s.Amount[:], b[0:4])
	copy(s.Fee[:], b[4:8])
	s.Deposit = b[8] != 0
	s.Timestamp = binary.LittleEndian.Uint32(b[9:13])
	copy(s.Signature[:], b[13:13+crypto.SignatureSize])
	return s, nil
}
