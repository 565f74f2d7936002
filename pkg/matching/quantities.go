// Package matching implements the uniform-clearing-price bisection solver
// that turns one pool's resting order books plus its AMM snapshot into a
// single execution price and the per-order fills at that price (spec §4.G).
package matching

import "github.com/angstrom-node/ucpnode/pkg/fixedpoint"

// GetQuantitiesAtPrice converts one order's fill amount into the T1 moved,
// the net T0 the order actually receives/spends after the pool fee, and the
// T0 routed to the fee, at a candidate uniform clearing price rayUCP (T1/T0).
// The four branches mirror the order's (is_bid, exact_in) shape; gas is
// already expressed in T0 and is folded into the net amount so the order
// never sees less than it was quoted after paying for its own inclusion.
func GetQuantitiesAtPrice(isBid, exactIn bool, fillAmount, gas uint64, feePips uint32, rayUCP fixedpoint.Ray) (t1 uint64, netT0 uint64, feeT0 uint64) {
	switch {
	case isBid && exactIn:
		// fillAmount is exact T1 in; find post-fee T0 out.
		bidPrice := rayUCP.InvRayRound(false)
		bidFeePrice := bidPrice.ScaleToFee(feePips)
		exchangedT0 := bidPrice.Quantity(fillAmount, false)
		net := bidFeePrice.Quantity(fillAmount, false)
		fee := satSub(exchangedT0, net)
		return fillAmount, satSub(net, gas), fee

	case isBid && !exactIn:
		// fillAmount is exact T0 out; find the T1 it costs.
		bidPrice := rayUCP.InvRayRound(false)
		bidFeePrice := bidPrice.ScaleToFee(feePips)
		t1Required := bidFeePrice.InverseQuantity(satAdd(fillAmount, gas), true)
		totalT0Purchased := bidPrice.Quantity(t1Required, false)
		fee := satSub(totalT0Purchased, satAdd(fillAmount, gas))
		return t1Required, fillAmount, fee

	case !isBid && exactIn:
		// fillAmount is exact T0 in; find the T1 out.
		askFeePrice := rayUCP.ScaleToFee(feePips)
		netT1Out := askFeePrice.Quantity(satSub(fillAmount, gas), false)
		netT0Sold := rayUCP.InverseQuantity(netT1Out, true)
		fee := satSub(satSub(fillAmount, gas), netT0Sold)
		return netT1Out, netT0Sold, fee

	default:
		// !isBid && !exactIn: fillAmount is exact T1 out; find the T0 it costs.
		askFeePrice := rayUCP.ScaleToFee(feePips)
		totalT0Input := satAdd(askFeePrice.InverseQuantity(fillAmount, true), gas)
		net := rayUCP.InverseQuantity(fillAmount, true)
		fee := satSub(satSub(totalT0Input, gas), net)
		return fillAmount, net, fee
	}
}

func satSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func satAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return ^uint64(0)
	}
	return sum
}
