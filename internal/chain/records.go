package chain

import (
	"fmt"

	"github.com/tofuri-net/tofuri/internal/store"
	"github.com/tofuri-net/tofuri/pkg/block"
	"github.com/tofuri-net/tofuri/pkg/stake"
	"github.com/tofuri-net/tofuri/pkg/tx"
	"github.com/tofuri-net/tofuri/pkg/types"
)

// putBlock writes a block and its transactions/stakes to their own
// namespaces (§4.C). The block record is the block's full Marshal form,
// so it carries its transaction and stake bodies rather than references
// to them by hash; each transaction and stake is also written on its own.
func putBlock(s *store.Store, blk *block.Block) error {
	h := blk.Hash()
	if err := s.Block.PutByHash(h, blk.Marshal()); err != nil {
		return fmt.Errorf("put block %s: %w", h, err)
	}
	for _, t := range blk.Transactions {
		th := t.Hash()
		if err := s.Transaction.PutByHash(th, t.Marshal()); err != nil {
			return fmt.Errorf("put transaction %s: %w", th, err)
		}
	}
	for _, st := range blk.Stakes {
		sh := st.Hash()
		if err := s.Stake.PutByHash(sh, st.Marshal()); err != nil {
			return fmt.Errorf("put stake %s: %w", sh, err)
		}
	}
	return nil
}

// getBlock reads a block by hash. Block bodies only carry the
// transaction/stake bytes the block itself marshals, so there is no
// second lookup into the transaction/stake namespaces on the read path;
// those namespaces exist for by-hash lookup of individual records
// (§6.4 TransactionByHash/StakeByHash), not block reconstruction.
func getBlock(s *store.Store, h types.Hash) (*block.Block, error) {
	raw, err := s.Block.GetByHash(h)
	if err != nil {
		return nil, fmt.Errorf("get block %s: %w", h, err)
	}
	blk, err := block.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("unmarshal block %s: %w", h, err)
	}
	return blk, nil
}

func getTransaction(s *store.Store, h types.Hash) (*tx.Transaction, error) {
	raw, err := s.Transaction.GetByHash(h)
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", h, err)
	}
	return tx.Unmarshal(raw)
}

func getStake(s *store.Store, h types.Hash) (*stake.Stake, error) {
	raw, err := s.Stake.GetByHash(h)
	if err != nil {
		return nil, fmt.Errorf("get stake %s: %w", h, err)
	}
	return stake.Unmarshal(raw)
}
