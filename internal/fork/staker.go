package fork

import "github.com/tofuri-net/tofuri/pkg/types"

// NextStaker computes the unique legal forger for block time t given
// the deque's state as of previousTimestamp (§4.E.1). slot counts how
// many BlockTime-sized steps separate t from previousTimestamp; slot=1
// is the ordinary next-in-line case (the staker at the front of the
// deque), so the deque index is slot-1. slot>1 means one or more
// stakers ahead of the legal forger missed their turn — UpdateStakers
// evicts them once a block at t is actually accepted.
//
// Returns false if there are no stakers, t does not land on a slot
// boundary after previousTimestamp, or t is not strictly after
// previousTimestamp.
func NextStaker(stakers []types.Address, previousTimestamp, t uint32) (types.Address, bool) {
	n := len(stakers)
	if n == 0 || t <= previousTimestamp {
		return types.Address{}, false
	}
	delta := t - previousTimestamp
	if delta%BlockTime != 0 {
		return types.Address{}, false
	}
	slot := delta / BlockTime
	if slot == 0 {
		return types.Address{}, false
	}
	idx := int((slot - 1) % uint32(n))
	return stakers[idx], true
}

// UpdateStakers applies offline eviction and forger rotation after a
// block at timestamp t (forged by forger) is accepted on top of
// previousTimestamp (§4.E step 5, §4.E.1). Every staker whose slot was
// skipped between previousTimestamp and t is dropped from the deque;
// the forger is then moved to the back. A gap spanning more slots than
// there are stakers evicts at most n-1 of them — the forger always
// keeps its own seat.
func UpdateStakers(stakers []types.Address, previousTimestamp, t uint32, forger types.Address) []types.Address {
	n := len(stakers)
	if n == 0 {
		return stakers
	}
	delta := t - previousTimestamp
	slot := delta / BlockTime

	missedCount := int(slot) - 1
	if missedCount < 0 {
		missedCount = 0
	}
	if missedCount > n-1 {
		missedCount = n - 1
	}

	evicted := make(map[types.Address]bool, missedCount)
	for i := 0; i < missedCount; i++ {
		evicted[stakers[i%n]] = true
	}

	out := make([]types.Address, 0, n)
	for _, a := range stakers {
		if a == forger || evicted[a] {
			continue
		}
		out = append(out, a)
	}
	out = append(out, forger)
	return out
}

// AddStaker appends a into the deque if it isn't already present — the
// effect of an accepted deposit that creates a new staker (§4.E.1: "new
// deposits append the depositor to the back").
func AddStaker(stakers []types.Address, a types.Address) []types.Address {
	for _, s := range stakers {
		if s == a {
			return stakers
		}
	}
	return append(stakers, a)
}

// RemoveStaker drops a from the deque — the effect of a withdrawal that
// takes an address's staked amount to zero (§4.E.1).
func RemoveStaker(stakers []types.Address, a types.Address) []types.Address {
	out := make([]types.Address, 0, len(stakers))
	for _, s := range stakers {
		if s != a {
			out = append(out, s)
		}
	}
	return out
}
