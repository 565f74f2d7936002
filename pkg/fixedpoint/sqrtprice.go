package fixedpoint

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"

	"github.com/holiman/uint256"
)

// SqrtPriceX96 is sqrt(T1/T0) scaled by 2^96, stored in a 160-bit domain
// (spec §3). The underlying storage is a uint256.Int; callers are
// responsible for keeping values within 160 bits, matching the contract's
// own representation.
type SqrtPriceX96 struct {
	v uint256.Int
}

var two96Float = new(big.Float).SetPrec(256).SetMantExp(big.NewFloat(1), 96)

// SqrtPriceX96FromUint256 wraps an already-scaled value.
func SqrtPriceX96FromUint256(scaled *uint256.Int) SqrtPriceX96 {
	var s SqrtPriceX96
	s.v.Set(scaled)
	return s
}

// Uint256 returns the raw scaled representation.
func (s SqrtPriceX96) Uint256() *uint256.Int { return new(uint256.Int).Set(&s.v) }

// MarshalJSON renders a SqrtPriceX96 as its decimal scaled string, the same
// treatment Ray gets and for the same reason: its only field is unexported.
func (s SqrtPriceX96) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.v.ToBig().String())
}

// UnmarshalJSON is MarshalJSON's inverse.
func (s *SqrtPriceX96) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	b, ok := new(big.Int).SetString(str, 10)
	if !ok {
		return fmt.Errorf("fixedpoint: invalid SqrtPriceX96 json value %q", str)
	}
	if overflow := s.v.SetFromBig(b); overflow {
		return fmt.Errorf("fixedpoint: SqrtPriceX96 value overflows 256 bits")
	}
	return nil
}

// Cmp orders two SqrtPriceX96 values.
func (s SqrtPriceX96) Cmp(o SqrtPriceX96) int { return s.v.Cmp(&o.v) }

func (s SqrtPriceX96) String() string { return s.v.String() }

func (s SqrtPriceX96) asFloat() *big.Float {
	f := new(big.Float).SetPrec(256).SetInt(s.v.ToBig())
	return new(big.Float).SetPrec(256).Quo(f, two96Float)
}

// tickBaseFloat is 1.0001 at high precision; 1.0001^tick is the canonical
// Uniswap-v3-style price-per-tick relationship referenced in spec §3/§4.B.
//
// This package computes tick<->price with math/big.Float logarithms and a
// monotonicity-preserving integer refinement step instead of the
// bit-shifted lookup-table algorithm Uniswap's Solidity/Rust tick-math
// uses: the spec requires "canonical tick-math" semantics (monotone,
// price->tick floors, tick->price exact to the precision used) but the
// bit-exact on-chain encoding is explicitly out of scope (spec §1). See
// DESIGN.md for the rationale.
var tickBaseFloat = big.NewFloat(1.0001)

func priceAtTick(t int32) *big.Float {
	neg := t < 0
	n := t
	if neg {
		n = -n
	}
	result := new(big.Float).SetPrec(256).SetInt64(1)
	base := new(big.Float).SetPrec(256).Copy(tickBaseFloat)
	for n > 0 {
		if n&1 == 1 {
			result.Mul(result, base)
		}
		base.Mul(base, base)
		n >>= 1
	}
	if neg {
		result.Quo(big.NewFloat(1).SetPrec(256), result)
	}
	return result
}

// TickToSqrtPriceX96 computes the exact (to working precision) sqrt price
// for a tick: sqrt(1.0001^tick) * 2^96. Tick->price is the direction spec
// §3 calls exact.
func TickToSqrtPriceX96(t int32) SqrtPriceX96 {
	price := priceAtTick(t)
	sqrtPrice := new(big.Float).SetPrec(256).Sqrt(price)
	scaled := new(big.Float).SetPrec(256).Mul(sqrtPrice, two96Float)
	i, _ := scaled.Int(nil)
	var out SqrtPriceX96
	out.v.SetFromBig(i)
	return out
}

// SqrtPriceX96ToTick floors the sqrt price down to its containing tick
// (spec §3: price->tick floors). A float64 logarithm gives an initial
// guess; monotonicity of TickToSqrtPriceX96 is then used to walk to the
// exact floor, so the float64 step only affects how many refinement
// iterations run, never correctness.
func SqrtPriceX96ToTick(s SqrtPriceX96) int32 {
	f, _ := s.asFloat().Float64()
	if f <= 0 {
		return math.MinInt32
	}
	price := f * f
	guess := int32(math.Floor(math.Log(price) / math.Log(1.0001)))

	for TickToSqrtPriceX96(guess).Cmp(s) > 0 {
		guess--
	}
	for TickToSqrtPriceX96(guess + 1).Cmp(s) <= 0 {
		guess++
	}
	return guess
}

// RayFromSqrtPriceX96 converts sqrt(T1/T0)*2^96 into a Ray price T1/T0:
// ray = sqrtPrice^2 * 1e27 / 2^192.
func RayFromSqrtPriceX96(s SqrtPriceX96, roundUp bool) Ray {
	sq := new(uint256.Int).Mul(&s.v, &s.v)
	two192 := new(uint256.Int).Lsh(uint256.NewInt(1), 192)
	return RayFromUint256(mulDivRound(sq, ray1e27, two192, roundUp))
}

// SqrtPriceX96FromRay converts a Ray price T1/T0 into sqrt(T1/T0)*2^96,
// direction-tagged: the square root itself is computed once at high
// big.Float precision and then the result is nudged to honor the
// requested rounding direction against the float-domain result.
func SqrtPriceX96FromRay(r Ray, roundUp bool) SqrtPriceX96 {
	rf := new(big.Float).SetPrec(256).SetInt(r.v.ToBig())
	priceRatio := new(big.Float).SetPrec(256).Quo(rf, new(big.Float).SetPrec(256).SetInt(ray1e27.ToBig()))
	sqrtRatio := new(big.Float).SetPrec(256).Sqrt(priceRatio)
	scaled := new(big.Float).SetPrec(256).Mul(sqrtRatio, two96Float)

	i, acc := scaled.Int(nil)
	var out SqrtPriceX96
	out.v.SetFromBig(i)
	if roundUp && acc == big.Below {
		out.v.AddUint64(&out.v, 1)
	}
	return out
}
