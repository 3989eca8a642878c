package fork

// coin is 10^18, the base unit scale (§6.2 COIN).
const coin = uint64(1_000_000_000_000_000_000)

// rewardTable is the frozen reward schedule (§4.E step 1, §9 Open
// Question 3): per-block issuance bucketed by total staked, expressed
// in whole coins. Buckets are thresholds on total_staked/MIN_STAKE;
// the reward for a given total is the value of the highest threshold
// not exceeding it, so the schedule is monotone-non-increasing and
// bounded by its first entry.
var rewardTable = []struct {
	minStakeMultiple uint64
	rewardCoins      uint64
}{
	{0, 16},
	{1_000, 8},
	{10_000, 4},
	{100_000, 2},
	{1_000_000, 1},
}

// MinStake is the unit the reward table's buckets are expressed in
// multiples of. Deposits are not checked against it: a deposit of any
// non-zero amount is accepted. Kept well below coin scale: balance/staked accounting here is
// uint64 (the original's u128 isn't available without a bignum type,
// §9 Open Question 3), and coin-scale thresholds above roughly 18
// coins would already overflow it.
const MinStake = 1_000_000_000

// DefaultReward is the reward schedule function (§4.E step 1): monotone
// non-increasing in totalStaked, bounded by the table's first entry,
// and a pure function of its input.
func DefaultReward(totalStaked uint64) uint64 {
	multiple := totalStaked / MinStake
	reward := rewardTable[0].rewardCoins
	for _, row := range rewardTable {
		if multiple < row.minStakeMultiple {
			break
		}
		reward = row.rewardCoins
	}
	return reward * coin
}
