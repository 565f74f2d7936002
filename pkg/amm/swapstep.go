package amm

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/angstrom-node/ucpnode/pkg/fixedpoint"
)

var q96 = new(uint256.Int).Lsh(uint256.NewInt(1), 96)

// amount0Delta computes the T0 moved by liquidity between two sqrt prices
// (sqrtLow <= sqrtHigh): L * 2^96 * (sqrtHigh - sqrtLow) / (sqrtLow * sqrtHigh).
// This is the standard constant-product delta formula; roundUp controls
// whether the result is the amount a taker must pay (true) or receives
// (false).
func amount0Delta(sqrtLow, sqrtHigh fixedpoint.SqrtPriceX96, liquidity uint64, roundUp bool) uint64 {
	low := sqrtLow.Uint256()
	high := sqrtHigh.Uint256()
	if low.IsZero() {
		panic("amm: zero sqrt price in amount0Delta")
	}

	l := new(uint256.Int).SetUint64(liquidity)
	numerator1 := new(uint256.Int).Lsh(l, 96)
	numerator2 := new(uint256.Int).Sub(high, low)

	inter := fixedpoint.MulDivRound(numerator1, numerator2, high, roundUp)
	if !roundUp {
		return saturate(new(uint256.Int).Div(inter, low))
	}
	return saturate(divRoundUp(inter, low))
}

// amount1Delta computes the T1 moved by liquidity between two sqrt prices:
// L * (sqrtHigh - sqrtLow) / 2^96.
func amount1Delta(sqrtLow, sqrtHigh fixedpoint.SqrtPriceX96, liquidity uint64, roundUp bool) uint64 {
	low := sqrtLow.Uint256()
	high := sqrtHigh.Uint256()
	l := new(uint256.Int).SetUint64(liquidity)
	diff := new(uint256.Int).Sub(high, low)
	return saturate(fixedpoint.MulDivRound(l, diff, q96, roundUp))
}

func divRoundUp(x, y *uint256.Int) *uint256.Int {
	q, r := new(uint256.Int), new(uint256.Int)
	q.DivMod(x, y, r)
	if !r.IsZero() {
		q.AddUint64(q, 1)
	}
	return q
}

func saturate(v *uint256.Int) uint64 {
	if !v.IsUint64() {
		return ^uint64(0)
	}
	return v.Uint64()
}

// SwapStep is the amount of T0/T1 moved while sweeping through a single
// liquidity range from start_price to end_price (spec §4.B).
type SwapStep struct {
	StartPrice fixedpoint.SqrtPriceX96
	EndPrice   fixedpoint.SqrtPriceX96
	DT0        uint64
	DT1        uint64
	Range      LiqRange
}

// Empty reports whether the step moved no liquidity at all.
func (s SwapStep) Empty() bool { return s.DT0 == 0 && s.DT1 == 0 }

// newSwapStep builds the step covering the portion of liqRange between
// start and end, bounding both prices to the range's own edges first.
func newSwapStep(start, end fixedpoint.SqrtPriceX96, liqRange LiqRange) (SwapStep, error) {
	low, high := start, end
	falling := start.Cmp(end) > 0
	if falling {
		low, high = end, start
	}

	lowTick := fixedpoint.SqrtPriceX96ToTick(low)
	highTick := fixedpoint.SqrtPriceX96ToTick(high)
	if lowTick >= liqRange.UpperTick || highTick < liqRange.LowerTick {
		return SwapStep{}, fmt.Errorf("amm: ticks out of bounds for liquidity range [%d,%d)", liqRange.LowerTick, liqRange.UpperTick)
	}

	boundedLow := low
	if lowTick < liqRange.LowerTick {
		boundedLow = fixedpoint.TickToSqrtPriceX96(liqRange.LowerTick)
	}
	boundedHigh := high
	if highTick >= liqRange.UpperTick {
		boundedHigh = fixedpoint.TickToSqrtPriceX96(liqRange.UpperTick)
	}

	var stepStart, stepEnd fixedpoint.SqrtPriceX96
	if falling {
		stepStart, stepEnd = boundedHigh, boundedLow
	} else {
		stepStart, stepEnd = boundedLow, boundedHigh
	}

	// Selling T0 (price falling): charge T0 in (round up), pay T1 out
	// (round down). Buying T0 (price rising): the reverse.
	round0, round1 := false, true
	if falling {
		round0, round1 = true, false
	}

	dt0 := amount0Delta(boundedLow, boundedHigh, liqRange.Liquidity, round0)
	dt1 := amount1Delta(boundedLow, boundedHigh, liqRange.Liquidity, round1)

	return SwapStep{StartPrice: stepStart, EndPrice: stepEnd, DT0: dt0, DT1: dt1, Range: liqRange}, nil
}
