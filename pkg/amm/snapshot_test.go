package amm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angstrom-node/ucpnode/pkg/fixedpoint"
)

func basicPool(t *testing.T) *PoolSnapshot {
	t.Helper()
	ranges := []LiqRange{
		{LowerTick: 0, UpperTick: 100, Liquidity: 1000, IsInitialized: true, Direction: true},
		{LowerTick: 100, UpperTick: 200, Liquidity: 2000, IsInitialized: true, Direction: true},
		{LowerTick: 200, UpperTick: 300, Liquidity: 1500, IsInitialized: true, Direction: true},
		{LowerTick: 0, UpperTick: 100, Liquidity: 1000, IsInitialized: true, Direction: false},
		{LowerTick: 100, UpperTick: 200, Liquidity: 2000, IsInitialized: true, Direction: false},
		{LowerTick: 200, UpperTick: 300, Liquidity: 1500, IsInitialized: true, Direction: false},
	}
	sqrtPrice := fixedpoint.TickToSqrtPriceX96(150)
	snap, err := NewPoolSnapshot(10, ranges, sqrtPrice, 0)
	require.NoError(t, err)
	return snap
}

func TestNewPoolSnapshotLocatesCurrentRanges(t *testing.T) {
	snap := basicPool(t)
	require.Equal(t, int32(150), snap.CurrentTick)
	require.Equal(t, int32(100), snap.Ranges[snap.CurTickAsk].LowerTick)
	require.Equal(t, int32(100), snap.Ranges[snap.CurTickBid].LowerTick)
}

func TestRangesForTicksOrdering(t *testing.T) {
	snap := basicPool(t)

	ascending := snap.RangesForTicks(50, 250)
	require.True(t, len(ascending) >= 2)
	for i := 1; i < len(ascending); i++ {
		require.Less(t, ascending[i-1].LowerTick, ascending[i].LowerTick)
	}

	descending := snap.RangesForTicks(250, 50)
	require.Equal(t, len(ascending), len(descending))
	for i, j := 0, len(descending)-1; i < len(descending); i, j = i+1, j-1 {
		require.Equal(t, ascending[j].LowerTick, descending[i].LowerTick)
	}
}

func TestSwapToPriceEndPriceMatchesTarget(t *testing.T) {
	snap := basicPool(t)
	target := fixedpoint.TickToSqrtPriceX96(250)

	vec, err := snap.SwapToPrice(target)
	require.NoError(t, err)
	require.Equal(t, 0, vec.EndPrice.Cmp(target))
	require.Greater(t, vec.TotalDT0, uint64(0))
}

func TestSwapToPriceSumsMatchSteps(t *testing.T) {
	snap := basicPool(t)
	target := fixedpoint.TickToSqrtPriceX96(50)

	vec, err := snap.SwapToPrice(target)
	require.NoError(t, err)

	var sumT0, sumT1 uint64
	for _, s := range vec.Steps {
		sumT0 += s.DT0
		sumT1 += s.DT1
	}
	require.Equal(t, vec.TotalDT0, sumT0)
	require.Equal(t, vec.TotalDT1, sumT1)
}

func TestSwapToPriceCrossingMoreRangesMovesMore(t *testing.T) {
	snap := basicPool(t)

	shortVec, err := snap.SwapToPrice(fixedpoint.TickToSqrtPriceX96(180))
	require.NoError(t, err)
	longVec, err := snap.SwapToPrice(fixedpoint.TickToSqrtPriceX96(280))
	require.NoError(t, err)

	require.Greater(t, longVec.TotalDT0, shortVec.TotalDT0)
}
