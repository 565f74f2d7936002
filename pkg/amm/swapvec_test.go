package amm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angstrom-node/ucpnode/pkg/fixedpoint"
)

func TestT0DonationConservesTotal(t *testing.T) {
	snap := basicPool(t)
	vec, err := snap.SwapToPrice(fixedpoint.TickToSqrtPriceX96(280))
	require.NoError(t, err)

	const donation = uint64(5_000)
	result := vec.T0Donation(donation)

	var allocated uint64
	for _, v := range result.TickDonations {
		allocated += v
	}
	require.Equal(t, result.TotalDonated, allocated)
	require.LessOrEqual(t, result.TotalDonated+result.Remaining, donation)
}

func TestT0DonationNoStepsReturnsAllUnallocated(t *testing.T) {
	vec := &SwapVec{}
	result := vec.T0Donation(1000)
	require.Empty(t, result.TickDonations)
	require.Equal(t, uint64(0), result.TotalDonated)
	require.Equal(t, uint64(1000), result.Remaining)
}

func TestT0DonationMoreDonationNeverAllocatesLess(t *testing.T) {
	snap := basicPool(t)
	vec, err := snap.SwapToPrice(fixedpoint.TickToSqrtPriceX96(280))
	require.NoError(t, err)

	small := vec.T0Donation(1_000)
	large := vec.T0Donation(10_000)
	require.GreaterOrEqual(t, large.TotalDonated, small.TotalDonated)
}

func TestTickDonationsSurvivesJSONRoundTrip(t *testing.T) {
	donations := map[TickPair]uint64{
		{Lower: -60, Upper: 60}: 100,
		{Lower: 60, Upper: 120}: 250,
	}

	data, err := json.Marshal(donations)
	require.NoError(t, err)

	var back map[TickPair]uint64
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, donations, back)
}
