package fixedpoint

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuantityRoundingDirection(t *testing.T) {
	r := RayFromUint256(mustDecimal("1500000000000000000000000000")) // 1.5 Ray

	down := r.Quantity(3, false)
	up := r.Quantity(3, true)

	require.LessOrEqual(t, down, up)
	require.Equal(t, uint64(4), down) // floor(4.5)
	require.Equal(t, uint64(5), up)   // ceil(4.5)
}

func TestQuantityInverseQuantityRoundTrip(t *testing.T) {
	r := RayFromUint256(mustDecimal("2000000000000000000000000000")) // 2.0 Ray

	const q = uint64(777)
	t1 := r.Quantity(q, true)     // charge: round up
	back := r.InverseQuantity(t1, false) // refund-style inverse: round down

	// No value creation: converting q -> t1 -> back must not exceed q.
	require.LessOrEqual(t, back, q)
}

func TestMulRayDivRayInverse(t *testing.T) {
	a := RayFromUint256(mustDecimal("3000000000000000000000000000"))
	b := RayFromUint256(mustDecimal("2000000000000000000000000000"))

	prod := a.MulRay(b, false)
	back := prod.DivRay(b, true)

	// back should be >= a when rounding the inverse operation up, honoring
	// the "never manufacture value, only ever lose dust" rounding law.
	require.GreaterOrEqual(t, back.Cmp(a), 0)
}

func TestScaleUnscaleFeeFloor(t *testing.T) {
	price := RayFromUint256(mustDecimal("1000000000000000000000000000")) // 1.0
	scaled := price.ScaleToFee(3000)                              // 0.3% fee
	unscaled := scaled.UnscaleToFee(3000)

	// Floor-floor round trip never creates value: unscaled <= price.
	require.LessOrEqual(t, unscaled.Cmp(price), 0)
}

func TestInvRayRoundMonotone(t *testing.T) {
	r := RayFromUint256(mustDecimal("4000000000000000000000000000"))
	down := r.InvRayRound(false)
	up := r.InvRayRound(true)
	require.LessOrEqual(t, down.Cmp(up), 0)
}

func TestRaySubPanicsOnUnderflow(t *testing.T) {
	a := RayFromUint64(1)
	b := RayFromUint64(2)
	require.Panics(t, func() { a.Sub(b) })
}

func TestRayJSONRoundTrip(t *testing.T) {
	r := RayFromUint256(mustDecimal("2500000000000000000000000000"))

	data, err := json.Marshal(r)
	require.NoError(t, err)
	require.Equal(t, `"2500000000000000000000000000"`, string(data))

	var back Ray
	require.NoError(t, json.Unmarshal(data, &back))
	require.Zero(t, r.Cmp(back))
}

func TestRayJSONRoundTripInsideStruct(t *testing.T) {
	type wrapper struct {
		Price Ray
	}
	w := wrapper{Price: RayFromUint64(7)}

	data, err := json.Marshal(w)
	require.NoError(t, err)

	var back wrapper
	require.NoError(t, json.Unmarshal(data, &back))
	require.Zero(t, w.Price.Cmp(back.Price))
}
