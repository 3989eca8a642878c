package fork

import (
	"github.com/tofuri-net/tofuri/pkg/stake"
	"github.com/tofuri-net/tofuri/pkg/tx"
	"github.com/tofuri-net/tofuri/pkg/types"
)

func cloneBalances(m map[types.Address]uint64) map[types.Address]uint64 {
	out := make(map[types.Address]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// CheckOverflow applies a candidate batch of transactions and stakes to
// a shadow copy of balance/staked, using checked arithmetic, and fails
// on the first underflow (§4.E.2). Callers pass in the fork's current
// balance/staked maps; this never mutates them.
func CheckOverflow(balance, staked map[types.Address]uint64, txs []*tx.Transaction, stakes []*stake.Stake) error {
	shadowBalance := cloneBalances(balance)
	shadowStaked := cloneBalances(staked)

	for _, t := range txs {
		input, err := t.InputAddress()
		if err != nil {
			return err
		}
		debit := t.Amount.Uint64() + t.Fee.Uint64()
		if shadowBalance[input] < debit {
			return ErrOverflow
		}
		shadowBalance[input] -= debit
		shadowBalance[t.OutputAddress] += t.Amount.Uint64()
	}

	for _, s := range stakes {
		input, err := s.InputAddress()
		if err != nil {
			return err
		}
		if s.Deposit {
			debit := s.Amount.Uint64() + s.Fee.Uint64()
			if shadowBalance[input] < debit {
				return ErrOverflow
			}
			shadowBalance[input] -= debit
			shadowStaked[input] += s.Amount.Uint64()
		} else {
			if shadowBalance[input] < s.Fee.Uint64() {
				return ErrOverflow
			}
			if shadowStaked[input] < s.Amount.Uint64() {
				return ErrOverflow
			}
			shadowBalance[input] -= s.Fee.Uint64()
			shadowStaked[input] -= s.Amount.Uint64()
			shadowBalance[input] += s.Amount.Uint64()
		}
	}

	return nil
}
