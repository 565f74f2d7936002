// Package amm models a single pool's constant-product liquidity as a
// tick-indexed snapshot and provides the swap-step math the matcher uses to
// move a pool from its current price to a clearing price (spec §4.B).
package amm

// LiqRange is one contiguous band of constant liquidity between two ticks.
// Every pool carries two parallel sets of ranges over the same tick space:
// one for the ask (selling T0) direction and one for the bid (buying T0)
// direction, distinguished by Direction, because a position's effective
// liquidity differs depending on which side of the current price it is
// approached from.
type LiqRange struct {
	LowerTick     int32
	UpperTick     int32
	Liquidity     uint64
	Direction     bool // true = ask layer, false = bid layer
	IsInitialized bool
	FeePips       uint32
}

// Contains reports whether tick falls within [LowerTick, UpperTick).
func (r LiqRange) Contains(tick int32) bool {
	return r.LowerTick <= tick && tick < r.UpperTick
}

// PriceInRangeTick reports whether a sqrt price's containing tick lies in range,
// using the supplied tick (callers already hold it from a prior conversion
// so this avoids a redundant SqrtPriceX96ToTick call).
func (r LiqRange) PriceInRangeTick(tick int32) bool {
	return r.Contains(tick)
}
