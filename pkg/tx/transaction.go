// Package tx implements the Transaction record: a signed value transfer
// from a recovered input address to an explicit output address.
package tx

import (
	"encoding/binary"
	"fmt"

	"github.com/tofuri-net/tofuri/pkg/crypto"
	"github.com/tofuri-net/tofuri/pkg/types"
)

// Transaction moves Amount from the recovered signer to OutputAddress,
// paying Fee. There is no explicit input field — the input address is
// recovered from the signature over Hash().
type Transaction struct {
	OutputAddress types.Address
	Amount        types.Amount
	Fee           types.Amount
	Timestamp     uint32
	Signature     [crypto.SignatureSize]byte
}

// New builds an unsigned transaction.
func New(output types.Address, amount, fee types.Amount, timestamp uint32) *Transaction {
	return &Transaction{OutputAddress: output, Amount: amount, Fee: fee, Timestamp: timestamp}
}

// signingBytes returns the preimage: timestamp ‖ fee ‖ output_address.
func (t *Transaction) signingBytes() []byte {
	buf := make([]byte, 0, 4+4+types.AddressSize)
	ts := make([]byte, 4)
	binary.BigEndian.PutUint32(ts, t.Timestamp)
	buf = append(buf, ts...)
	buf = append(buf, t.Fee[:]...)
	buf = append(buf, t.OutputAddress[:]...)
	return buf
}

// Hash is SHA-256(timestamp ‖ fee ‖ output_address); excludes amount and
// signature for the same anti-circularity reason records generally
// exclude their own signature from their identity hash.
func (t *Transaction) Hash() types.Hash {
	return crypto.Hash(t.signingBytes())
}

// Sign signs the transaction's hash with key.
func (t *Transaction) Sign(key *crypto.PrivateKey) error {
	h := t.Hash()
	sig, err := key.Sign(h[:])
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	copy(t.Signature[:], sig)
	return nil
}

// InputAddress recovers the signer's address from the signature.
func (t *Transaction) InputAddress() (types.Address, error) {
	h := t.Hash()
	addr, err := crypto.RecoverAddress(h[:], t.Signature[:])
	if err != nil {
		return types.Address{}, fmt.Errorf("recover transaction signer: %w", err)
	}
	return addr, nil
}

// IsValid checks the stand-alone invariants (§3): positive amount and
// fee, a recoverable signature, and input != output.
func (t *Transaction) IsValid() bool {
	if t.Amount.IsZero() {
		return false
	}
	if t.Fee.IsZero() {
		return false
	}
	input, err := t.InputAddress()
	if err != nil {
		return false
	}
	return input != t.OutputAddress
}

// Marshal serializes the transaction to its canonical binary form.
func (t *Transaction) Marshal() []byte {
	buf := make([]byte, 0, types.AddressSize+4+4+4+crypto.SignatureSize)
	buf = append(buf, t.OutputAddress[:]...)
	buf = append(buf, t.Amount[:]...)
	buf = append(buf, t.Fee[:]...)
	ts := make([]byte, 4)
	binary.LittleEndian.PutUint32(ts, t.Timestamp)
	buf = append(buf, ts...)
	buf = append(buf, t.Signature[:]...)
	return buf
}

// Unmarshal parses a transaction from its canonical binary form.
func Unmarshal(b []byte) (*Transaction, error) {
	const size = types.AddressSize + 4 + 4 + 4 + crypto.SignatureSize
	if len(b) != size {
		return nil, fmt.Errorf("transaction: expected %d bytes, got %d", size, len(b))
	}
	t := &Transaction{}
	off := 0
	copy(t.OutputAddress[:], b[off:off+types.AddressSize])
	off += types.AddressSize
	copy(t.Amount[:], b[off:off+4])
	off += 4
	copy(t.Fee[:], b[off:off+4])
	off += 4
	t.Timestamp = binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	copy(t.Signature[:], b[off:off+crypto.SignatureSize])
	return t, nil
}
