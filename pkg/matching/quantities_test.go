package matching

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/angstrom-node/ucpnode/pkg/fixedpoint"
)

func rayOf(n uint64) fixedpoint.Ray {
	scaled := new(uint256.Int).Mul(uint256.NewInt(n), oneRay())
	return fixedpoint.RayFromUint256(scaled)
}

func oneRay() *uint256.Int {
	v, ok := uint256.FromDecimal("1000000000000000000000000000")
	if !ok {
		panic("bad ray constant")
	}
	return v
}

func TestGetQuantitiesAtPriceBidExactInAtParity(t *testing.T) {
	t1, netT0, feeT0 := GetQuantitiesAtPrice(true, true, 100, 0, 0, rayOf(1))
	require.EqualValues(t, 100, t1)
	require.EqualValues(t, 100, netT0)
	require.EqualValues(t, 0, feeT0)
}

func TestGetQuantitiesAtPriceBidExactInSubtractsGas(t *testing.T) {
	_, netT0, feeT0 := GetQuantitiesAtPrice(true, true, 100, 10, 0, rayOf(1))
	require.EqualValues(t, 90, netT0)
	require.EqualValues(t, 0, feeT0)
}

func TestGetQuantitiesAtPriceBidExactOutAtParity(t *testing.T) {
	t1, netT0, feeT0 := GetQuantitiesAtPrice(true, false, 50, 0, 0, rayOf(1))
	require.EqualValues(t, 50, t1)
	require.EqualValues(t, 50, netT0)
	require.EqualValues(t, 0, feeT0)
}

func TestGetQuantitiesAtPriceAskExactInAtParity(t *testing.T) {
	t1, netT0, feeT0 := GetQuantitiesAtPrice(false, true, 100, 0, 0, rayOf(1))
	require.EqualValues(t, 100, t1)
	require.EqualValues(t, 100, netT0)
	require.EqualValues(t, 0, feeT0)
}

func TestGetQuantitiesAtPriceAskExactInWithFeeCollectsTenPercent(t *testing.T) {
	t1, netT0, feeT0 := GetQuantitiesAtPrice(false, true, 100, 0, 100_000, rayOf(1))
	require.EqualValues(t, 90, t1)
	require.EqualValues(t, 90, netT0)
	require.EqualValues(t, 10, feeT0)
}

func TestGetQuantitiesAtPriceAskExactOutAtParity(t *testing.T) {
	t1, netT0, feeT0 := GetQuantitiesAtPrice(false, false, 50, 0, 0, rayOf(1))
	require.EqualValues(t, 50, t1)
	require.EqualValues(t, 50, netT0)
	require.EqualValues(t, 0, feeT0)
}
