// Package fixedpoint implements the two scaled-integer price
// representations used throughout the matcher and AMM math: Ray (price in
// T1/T0, scale 1e27) and SqrtPriceX96 (sqrt(T1/T0), scale 2^96).
//
// Every conversion that can lose precision is one of two explicitly named
// operations, RoundUp or RoundDown, following the rounding law in spec
// §4.A: refunds to users round down, charges round up, donations out round
// up, donations in round down. There is no implicit rounding anywhere in
// this package — every call site names its direction.
package fixedpoint

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ray1e27 = mustDecimal("1000000000000000000000000000")
	e1e6    = uint256.NewInt(1_000_000)
	e1e54   = mustDecimal("1000000000000000000000000000000000000000000000000000000")
)

func mustDecimal(s string) *uint256.Int {
	v, ok := uint256.FromDecimal(s)
	if !ok {
		panic(fmt.Sprintf("fixedpoint: bad decimal constant %q", s))
	}
	return v
}

// Ray is a price in T1/T0 scaled by 1e27 (spec §3, §4.A).
type Ray struct {
	v uint256.Int
}

// RayFromUint64 builds a Ray directly from its scaled representation.
func RayFromUint64(scaled uint64) Ray {
	var r Ray
	r.v.SetUint64(scaled)
	return r
}

// RayFromUint256 wraps an already-scaled uint256 value.
func RayFromUint256(scaled *uint256.Int) Ray {
	var r Ray
	r.v.Set(scaled)
	return r
}

// RayFromBig wraps an already-scaled big.Int.
func RayFromBig(scaled *big.Int) (Ray, error) {
	var r Ray
	overflow := r.v.SetFromBig(scaled)
	if overflow {
		return Ray{}, fmt.Errorf("fixedpoint: value overflows 256 bits")
	}
	return r, nil
}

// Uint256 returns the raw scaled representation.
func (r Ray) Uint256() *uint256.Int { return new(uint256.Int).Set(&r.v) }

// MarshalJSON renders a Ray as its decimal scaled string. Ray's only field is
// unexported (gob would reject it outright — "type has no exported fields"),
// so anything persisting a Ray through encoding/json, the way pkg/storage
// persists settled bundles, needs this rather than relying on struct tags.
func (r Ray) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.v.ToBig().String())
}

// UnmarshalJSON is MarshalJSON's inverse.
func (r *Ray) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("fixedpoint: invalid Ray json value %q", s)
	}
	if overflow := r.v.SetFromBig(b); overflow {
		return fmt.Errorf("fixedpoint: Ray value overflows 256 bits")
	}
	return nil
}

// IsZero reports whether the price is exactly zero.
func (r Ray) IsZero() bool { return r.v.IsZero() }

// Cmp orders two Ray values.
func (r Ray) Cmp(o Ray) int { return r.v.Cmp(&o.v) }

func (r Ray) String() string { return r.v.String() }

// Add returns r + o.
func (r Ray) Add(o Ray) Ray {
	var out Ray
	out.v.Add(&r.v, &o.v)
	return out
}

// Sub returns r - o. Panics on underflow, matching the checked-subtraction
// discipline of the source this is ported from: callers must establish
// r >= o before calling.
func (r Ray) Sub(o Ray) Ray {
	if r.v.Lt(&o.v) {
		panic("fixedpoint: Ray subtraction underflow")
	}
	var out Ray
	out.v.Sub(&r.v, &o.v)
	return out
}

// mulDivRound computes floor(x*y/d), rounding the remainder up into the
// result when roundUp is set. Uses the 512-bit-intermediate multiply the
// library provides so x*y never silently truncates before the divide.
func mulDivRound(x, y, d *uint256.Int, roundUp bool) *uint256.Int {
	if d.IsZero() {
		panic("fixedpoint: division by zero")
	}
	res, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		panic("fixedpoint: intermediate product overflows 256 bits")
	}
	if roundUp {
		rem := new(uint256.Int).MulMod(x, y, d)
		if !rem.IsZero() {
			res.AddUint64(res, 1)
		}
	}
	return res
}

// Quantity returns how much T1 is needed to pay for q units of T0 at this
// price: q * ray / 1e27. round=true rounds up (a charge); round=false
// rounds down (a refund).
func (r Ray) Quantity(q uint64, roundUp bool) uint64 {
	qi := new(uint256.Int).SetUint64(q)
	res := mulDivRound(&r.v, qi, ray1e27, roundUp)
	return saturatingUint64(res)
}

// InverseQuantity returns how much T0 a payment of q units of T1 buys at
// this price: q * 1e27 / ray.
func (r Ray) InverseQuantity(q uint64, roundUp bool) uint64 {
	qi := new(uint256.Int).SetUint64(q)
	res := mulDivRound(qi, ray1e27, &r.v, roundUp)
	return saturatingUint64(res)
}

// InverseRemainder returns the T1 dust left over after InverseQuantity
// divides out an even amount of T0: (q*1e27) mod ray.
func (r Ray) InverseRemainder(q uint64) uint64 {
	qi := new(uint256.Int).SetUint64(q)
	num := new(uint256.Int).Mul(qi, ray1e27)
	rem := new(uint256.Int).Mod(num, &r.v)
	return saturatingUint64(rem)
}

// MulRay returns r * o / 1e27, the product of two Ray-scaled prices.
func (r Ray) MulRay(o Ray, roundUp bool) Ray {
	return RayFromUint256(mulDivRound(&r.v, &o.v, ray1e27, roundUp))
}

// DivRay returns r * 1e27 / o.
func (r Ray) DivRay(o Ray, roundUp bool) Ray {
	return RayFromUint256(mulDivRound(&r.v, ray1e27, &o.v, roundUp))
}

// InvRayRound returns 1e54 / ray, i.e. the reciprocal price re-expressed in
// Ray scale (inverting T1/T0 into T0/T1).
func (r Ray) InvRayRound(roundUp bool) Ray {
	return RayFromUint256(mulDivRound(e1e54, uint256.NewInt(1), &r.v, roundUp))
}

// ScaleToFee applies a pool fee (in pips, parts-per-million) to a price,
// floor-rounded: price * (1e6 - fee) / 1e6.
func (r Ray) ScaleToFee(feePips uint32) Ray {
	oneMinusFee := new(uint256.Int).SubUint64(e1e6, uint64(feePips))
	return RayFromUint256(mulDivRound(&r.v, oneMinusFee, e1e6, false))
}

// UnscaleToFee inverts ScaleToFee, floor-rounded: price * 1e6 / (1e6 - fee).
func (r Ray) UnscaleToFee(feePips uint32) Ray {
	oneMinusFee := new(uint256.Int).SubUint64(e1e6, uint64(feePips))
	return RayFromUint256(mulDivRound(&r.v, e1e6, oneMinusFee, false))
}

// MulDivRound exposes the floor(x*y/d) (or ceiling, if roundUp) helper used
// internally by Ray/SqrtPriceX96 arithmetic to other packages (notably
// pkg/amm's constant-product step math) that need the same
// overflow-checked, explicitly-rounded wide multiply-divide.
func MulDivRound(x, y, d *uint256.Int, roundUp bool) *uint256.Int {
	return mulDivRound(x, y, d, roundUp)
}

func saturatingUint64(v *uint256.Int) uint64 {
	if !v.IsUint64() {
		return ^uint64(0)
	}
	return v.Uint64()
}
