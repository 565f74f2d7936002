package amm

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/angstrom-node/ucpnode/pkg/fixedpoint"
)

var ray1e27 = func() *uint256.Int {
	v, ok := uint256.FromDecimal("1000000000000000000000000000")
	if !ok {
		panic("amm: bad ray constant")
	}
	return v
}()

func rayFromAmounts(t0, t1 uint64, roundUp bool) fixedpoint.Ray {
	t0i := new(uint256.Int).SetUint64(t0)
	t1i := new(uint256.Int).SetUint64(t1)
	return fixedpoint.RayFromUint256(fixedpoint.MulDivRound(t1i, ray1e27, t0i, roundUp))
}

// SwapVec is the full sequence of SwapSteps covering one swap from the
// snapshot's current price to a target price (spec §4.B/§4.G).
type SwapVec struct {
	StartPrice fixedpoint.SqrtPriceX96
	EndPrice   fixedpoint.SqrtPriceX96
	Steps      []SwapStep
	TotalDT0   uint64
	TotalDT1   uint64
	Falling    bool // price decreasing: selling T0 into the pool
}

// SwapToPrice walks the snapshot's liquidity ranges from its current price
// to target, accumulating one SwapStep per range crossed.
func (p *PoolSnapshot) SwapToPrice(target fixedpoint.SqrtPriceX96) (*SwapVec, error) {
	startTick := p.CurrentTick
	targetTick := fixedpoint.SqrtPriceX96ToTick(target)
	falling := target.Cmp(p.SqrtPrice) < 0

	ranges := p.RangesForTicks(startTick, targetTick)
	vec := &SwapVec{StartPrice: p.SqrtPrice, EndPrice: target, Falling: falling}
	if len(ranges) == 0 {
		return vec, nil
	}

	current := p.SqrtPrice
	for _, r := range ranges {
		farTick := r.UpperTick
		if falling {
			farTick = r.LowerTick
		}
		farPrice := fixedpoint.TickToSqrtPriceX96(farTick)

		var stepEnd fixedpoint.SqrtPriceX96
		if falling {
			if target.Cmp(farPrice) >= 0 {
				stepEnd = target
			} else {
				stepEnd = farPrice
			}
		} else {
			if target.Cmp(farPrice) <= 0 {
				stepEnd = target
			} else {
				stepEnd = farPrice
			}
		}

		if stepEnd.Cmp(current) == 0 {
			continue
		}

		step, err := newSwapStep(current, stepEnd, r)
		if err != nil {
			return nil, err
		}
		vec.Steps = append(vec.Steps, step)
		vec.TotalDT0 += step.DT0
		vec.TotalDT1 += step.DT1
		current = stepEnd

		if current.Cmp(target) == 0 {
			break
		}
	}
	vec.EndPrice = current
	return vec, nil
}

// TickPair keys donation allocations by the liquidity range they landed in.
type TickPair struct {
	Lower int32
	Upper int32
}

// MarshalText renders a TickPair as "lower:upper", letting
// map[TickPair]uint64 survive encoding/json: Go's json package only accepts
// struct-keyed maps when the key type implements encoding.TextMarshaler,
// since JSON object keys are always strings.
func (t TickPair) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%d:%d", t.Lower, t.Upper)), nil
}

// UnmarshalText is MarshalText's inverse.
func (t *TickPair) UnmarshalText(text []byte) error {
	var lower, upper int32
	if _, err := fmt.Sscanf(string(text), "%d:%d", &lower, &upper); err != nil {
		return fmt.Errorf("amm: invalid TickPair text %q: %w", text, err)
	}
	t.Lower, t.Upper = lower, upper
	return nil
}

// DonationResult is the per-range allocation of an LP donation across the
// ranges a swap crossed (spec §4.G step 7).
type DonationResult struct {
	TickDonations map[TickPair]uint64
	FinalPrice    fixedpoint.SqrtPriceX96
	TotalDonated  uint64
	Remaining     uint64
}

// T0Donation spends totalDonation (extra T0, beyond what the swap itself
// moved) bringing the crossed ranges as close as possible to a single
// uniform fill price, cheapest range first, then splits any leftover evenly
// across the remaining distance. Donating T0 when price is falling gives LPs
// more T0 for the T1 they paid (round up); when price is rising it refunds
// T0 to LPs, i.e. reduces what they're owed (round down, never below 1 unit
// so a range is never zeroed out entirely).
func (v *SwapVec) T0Donation(totalDonation uint64) DonationResult {
	if len(v.Steps) == 0 {
		return DonationResult{
			TickDonations: map[TickPair]uint64{},
			FinalPrice:    v.EndPrice,
			TotalDonated:  0,
			Remaining:     totalDonation,
		}
	}

	roundUp := v.Falling
	remaining := totalDonation

	type blob struct{ t0, t1 uint64 }
	var cur *blob

	for _, step := range v.Steps {
		if step.Empty() {
			continue
		}
		if cur == nil {
			cur = &blob{t0: step.DT0, t1: step.DT1}
			continue
		}

		targetPrice := rayFromAmounts(step.DT0, step.DT1, roundUp)
		targetT0 := targetPrice.InverseQuantity(cur.t1, roundUp)
		stepCost := absDiff(cur.t0, targetT0)
		stepComplete := remaining >= stepCost
		increment := min64(remaining, stepCost)

		if v.Falling {
			cur.t0 += increment
		} else {
			cur.t0 = satSub(cur.t0, increment)
		}
		remaining -= increment

		if stepComplete {
			cur.t0 += step.DT0
			cur.t1 += step.DT1
		} else {
			break
		}
	}

	var filledPrice fixedpoint.Ray
	haveFilled := false
	if cur != nil {
		if v.Falling {
			cur.t0 += remaining
		} else {
			cur.t0 = satSub(cur.t0, remaining)
			if cur.t0 == 0 {
				cur.t0 = 1
			}
		}
		filledPrice = rayFromAmounts(cur.t0, cur.t1, !v.Falling)
		haveFilled = true
	}

	remaining = totalDonation
	var totalDonated uint64
	donations := make(map[TickPair]uint64, len(v.Steps))
	for _, step := range v.Steps {
		if !step.Range.IsInitialized && step.Range.Liquidity == 0 {
			continue
		}
		var reward uint64
		if haveFilled {
			targetT0 := filledPrice.InverseQuantity(step.DT1, roundUp)
			if v.Falling {
				reward = min64(remaining, satSub(targetT0, step.DT0))
			} else {
				reward = min64(remaining, satSub(step.DT0, targetT0))
			}
		}
		remaining -= reward
		totalDonated += reward
		donations[TickPair{Lower: step.Range.LowerTick, Upper: step.Range.UpperTick}] += reward
	}

	finalPrice := v.EndPrice
	if haveFilled {
		finalPrice = fixedpoint.SqrtPriceX96FromRay(filledPrice, !v.Falling)
	}

	return DonationResult{
		TickDonations: donations,
		FinalPrice:    finalPrice,
		TotalDonated:  totalDonated,
		Remaining:     remaining,
	}
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func satSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
