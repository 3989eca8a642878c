package block

import (
	"fmt"

	"github.com/tofuri-net/tofuri/pkg/crypto"
	"github.com/tofuri-net/tofuri/pkg/stake"
	"github.com/tofuri-net/tofuri/pkg/tx"
	"github.com/tofuri-net/tofuri/pkg/types"
)

// Block binds a previous block, a VRF proof authorizing the forger's
// slot, and the transactions and stakes it carries.
type Block struct {
	PreviousHash types.Hash
	Timestamp    uint32
	Pi           crypto.Pi
	Signature    [crypto.SignatureSize]byte
	Transactions []*tx.Transaction
	Stakes       []*stake.Stake
}

// New builds an unsigned block.
func New(previousHash types.Hash, timestamp uint32, pi crypto.Pi, txs []*tx.Transaction, stakes []*stake.Stake) *Block {
	return &Block{
		PreviousHash: previousHash,
		Timestamp:    timestamp,
		Pi:           pi,
		Transactions: txs,
		Stakes:       stakes,
	}
}

// transactionHashes returns the hash of every transaction, in order.
func (b *Block) transactionHashes() []types.Hash {
	hashes := make([]types.Hash, len(b.Transactions))
	for i, t := range b.Transactions {
		hashes[i] = t.Hash()
	}
	return hashes
}

// stakeHashes returns the hash of every stake, in order.
func (b *Block) stakeHashes() []types.Hash {
	hashes := make([]types.Hash, len(b.Stakes))
	for i, s := range b.Stakes {
		hashes[i] = s.Hash()
	}
	return hashes
}

// Header builds the hashed header for this block's current contents.
func (b *Block) Header() Header {
	return Header{
		PreviousHash:    b.PreviousHash,
		TransactionRoot: ComputeMerkleRoot(b.transactionHashes()),
		StakeRoot:       ComputeMerkleRoot(b.stakeHashes()),
		Timestamp:       b.Timestamp,
		Pi:              b.Pi,
	}
}

// Hash is the block identity hash. It depends only on the header fields
// (previous_hash, merkle roots, timestamp, pi) — mutating Signature
// never changes it.
func (b *Block) Hash() types.Hash {
	return b.Header().Hash()
}

// Beta is the VRF output derived from Pi: hash of the proof's embedded
// gamma point, the seed a future block's VRF proof must consume.
func (b *Block) Beta() types.Hash {
	return crypto.Hash(b.Pi[:33])
}

// Sign signs the block's hash with key.
func (b *Block) Sign(key *crypto.PrivateKey) error {
	h := b.Hash()
	sig, err := key.Sign(h[:])
	if err != nil {
		return fmt.Errorf("sign block: %w", err)
	}
	copy(b.Signature[:], sig)
	return nil
}

// InputPublicKey recovers the forger's compressed public key from the
// block's signature.
func (b *Block) InputPublicKey() ([]byte, error) {
	h := b.Hash()
	pub, err := crypto.Recover(h[:], b.Signature[:])
	if err != nil {
		return nil, fmt.Errorf("recover block forger: %w", err)
	}
	return pub, nil
}

// InputAddress recovers the forger's address from the block's signature.
func (b *Block) InputAddress() (types.Address, error) {
	pub, err := b.InputPublicKey()
	if err != nil {
		return types.Address{}, err
	}
	return crypto.AddressFromPubKey(pub), nil
}

// Fees sums the fees carried by every transaction and stake in the
// block. It does not include stake amounts, which move value between a
// staker's own balance and staked accounts rather than being spent.
func (b *Block) Fees() uint64 {
	var total uint64
	for _, t := range b.Transactions {
		total += t.Fee.Uint64()
	}
	for _, s := range b.Stakes {
		total += s.Fee.Uint64()
	}
	return total
}

// Reward is the total credit owed to the forger: fees plus the
// reward-schedule amount for the current total staked, the latter
// computed elsewhere (internal/fork/reward.go) and passed in so this
// package stays independent of chain-state policy.
func (b *Block) Reward(rewardForStakedTotal uint64) uint64 {
	return b.Fees() + rewardForStakedTotal
}

// Metadata is a lighter-weight view of a block for sync/log/RPC-boundary
// use, carrying identity hashes instead of full transaction/stake
// bodies.
type Metadata struct {
	Hash              types.Hash
	PreviousHash      types.Hash
	Timestamp         uint32
	PublicKey         []byte
	Signature         [crypto.SignatureSize]byte
	TransactionHashes []types.Hash
	StakeHashes       []types.Hash
}

// Metadata builds the block's lightweight summary view. The forger's
// public key is omitted (left nil) if it cannot be recovered.
func (b *Block) Metadata() Metadata {
	pub, _ := b.InputPublicKey()
	return Metadata{
		Hash:              b.Hash(),
		PreviousHash:      b.PreviousHash,
		Timestamp:         b.Timestamp,
		PublicKey:         pub,
		Signature:         b.Signature,
		TransactionHashes: b.transactionHashes(),
		StakeHashes:       b.stakeHashes(),
	}
}
