// Package oracle maintains the rolling average price each pool traded at
// over its last K blocks and uses it to convert an amount of gas into the
// equivalent amount of a pool's T0, so the validator can compare an order's
// posted gas budget against its actual token balance (spec §4.I). Any
// token that isn't itself the base gas token is assumed to be one hop away
// from it through some pool Angstrom tracks.
package oracle

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/angstrom-node/ucpnode/pkg/fixedpoint"
	"github.com/angstrom-node/ucpnode/pkg/types"
)

// DefaultWindowBlocks is the rolling average window used unless a caller
// overrides it, matching the conversion generator's historical default.
const DefaultWindowBlocks = 15

type pairKey struct {
	Token0 types.Address
	Token1 types.Address
}

// PricePoint is one pool's observed price at one block, T1/T0 (spec §4.A's
// Ray convention).
type PricePoint struct {
	BlockNumber types.BlockNumber
	Price1Over0 fixedpoint.Ray
}

// Oracle tracks a rolling window of prices per pool and answers
// gas-token-to-T0 conversion queries, following a pool's own pair when the
// pool trades the gas token directly, or one hop through a pool that does
// when it doesn't (spec §4.I).
type Oracle struct {
	baseGasToken types.Address
	windowBlocks uint64
	curBlock     types.BlockNumber

	pairToPool map[pairKey]types.PoolId
	history    map[types.PoolId][]PricePoint
}

// NewOracle returns an oracle with no pools registered yet; windowBlocks
// falls back to DefaultWindowBlocks when zero.
func NewOracle(baseGasToken types.Address, windowBlocks uint64, curBlock types.BlockNumber) *Oracle {
	if windowBlocks == 0 {
		windowBlocks = DefaultWindowBlocks
	}
	return &Oracle{
		baseGasToken: baseGasToken,
		windowBlocks: windowBlocks,
		curBlock:     curBlock,
		pairToPool:   make(map[pairKey]types.PoolId),
		history:      make(map[types.PoolId][]PricePoint),
	}
}

func orderedPair(a, b types.Address) pairKey {
	if b.Hex() < a.Hex() {
		a, b = b, a
	}
	return pairKey{Token0: a, Token1: b}
}

// RegisterPool seeds a pool's price history, one point per block already
// known (e.g. backfilled from chain state at startup).
func (o *Oracle) RegisterPool(id types.PoolId, token0, token1 types.Address, seed []PricePoint) {
	o.pairToPool[orderedPair(token0, token1)] = id
	trimmed := append([]PricePoint(nil), seed...)
	if uint64(len(trimmed)) > o.windowBlocks {
		trimmed = trimmed[uint64(len(trimmed))-o.windowBlocks:]
	}
	o.history[id] = trimmed
}

// ForgetPool drops a pool's history, e.g. once it's removed from the chain
// event cleanser's live set.
func (o *Oracle) ForgetPool(id types.PoolId, token0, token1 types.Address) {
	delete(o.history, id)
	delete(o.pairToPool, orderedPair(token0, token1))
}

// PoolUpdate is one pool's new price observed in the block ApplyUpdate is
// advancing to.
type PoolUpdate struct {
	PoolId types.PoolId
	Price  fixedpoint.Ray
}

// ApplyUpdate advances the window by one block. Every pool named in
// updates gets its new price pushed in (oldest point evicted once the
// window is full); every other pool repeats its last known price forward,
// so every pool's history always covers exactly the same block range.
func (o *Oracle) ApplyUpdate(newBlock types.BlockNumber, updates []PoolUpdate) error {
	if newBlock != o.curBlock+1 {
		return fmt.Errorf("oracle: non-sequential block update: have %d, got %d", o.curBlock, newBlock)
	}

	touched := make(map[types.PoolId]struct{}, len(updates))
	for _, u := range updates {
		touched[u.PoolId] = struct{}{}
		o.push(u.PoolId, PricePoint{BlockNumber: newBlock, Price1Over0: u.Price})
	}

	for id, hist := range o.history {
		if _, ok := touched[id]; ok {
			continue
		}
		if len(hist) == 0 {
			continue
		}
		last := hist[len(hist)-1]
		last.BlockNumber = newBlock
		o.push(id, last)
	}

	o.curBlock = newBlock
	return nil
}

func (o *Oracle) push(id types.PoolId, p PricePoint) {
	hist := append(o.history[id], p)
	if uint64(len(hist)) > o.windowBlocks {
		hist = hist[uint64(len(hist))-o.windowBlocks:]
	}
	o.history[id] = hist
}

// averagePrice1Over0 returns the window average of a pool's T1/T0 price,
// rounded down (spec §4.A's rounding law has no named case for an average;
// round-down is chosen so a conversion never reports more gas-token value
// than the window actually observed).
func (o *Oracle) averagePrice1Over0(id types.PoolId) (fixedpoint.Ray, bool) {
	hist := o.history[id]
	if len(hist) == 0 {
		return fixedpoint.Ray{}, false
	}
	sum := new(uint256.Int)
	for _, p := range hist {
		sum.Add(sum, p.Price1Over0.Uint256())
	}
	count := uint256.NewInt(uint64(len(hist)))
	avg := new(uint256.Int).Div(sum, count)
	return fixedpoint.RayFromUint256(avg), true
}

// GetConversionPrice returns the average price of token0 expressed in
// token1 over the tracked window: how much token1 one unit of token0 is
// worth. When token0 is the base gas token it returns one Ray without a
// lookup, whatever token1 is; when token1 is the base gas token it is a
// direct lookup; otherwise it chains two direct prices through the base
// gas token (spec §4.I's one-hop rule).
func (o *Oracle) GetConversionPrice(token0, token1 types.Address) (fixedpoint.Ray, bool) {
	if token0 == o.baseGasToken {
		return fixedpoint.RayFromUint256(oneRay()), true // gas token priced in itself
	}
	if token1 == o.baseGasToken {
		return o.hopToBase(token0)
	}

	hop0, ok0 := o.hopToBase(token0)
	hop1, ok1 := o.hopToBase(token1)
	if !ok0 || !ok1 {
		return fixedpoint.Ray{}, false
	}
	// hop0: token0/base, hop1: token1/base -> token0/token1 = hop0 / hop1.
	return hop0.DivRay(hop1, false), true
}

// hopToBase returns the average price of token expressed in the base gas
// token: how much gas token one unit of token is worth.
func (o *Oracle) hopToBase(token types.Address) (fixedpoint.Ray, bool) {
	if token == o.baseGasToken {
		return fixedpoint.RayFromUint256(oneRay()), true
	}
	key := orderedPair(token, o.baseGasToken)
	id, ok := o.pairToPool[key]
	if !ok {
		return fixedpoint.Ray{}, false
	}
	avg, ok := o.averagePrice1Over0(id)
	if !ok {
		return fixedpoint.Ray{}, false
	}
	if key.Token0 == token {
		// avg is base/token (token1 over token0 == base/token); want token/base.
		return avg.InvRayRound(false), true
	}
	// key.Token1 == token: avg is token/base already.
	return avg, true
}

func oneRay() *uint256.Int {
	v, ok := uint256.FromDecimal("1000000000000000000000000000")
	if !ok {
		panic("oracle: bad ray constant")
	}
	return v
}

// ConvertGasToT0 turns a gas cost denominated in the base gas token into
// the equivalent amount of token0, using the current window average for
// the (token0, baseGasToken) pair. Rounds up: undercharging an order for
// its own inclusion cost is never safe (spec §4.A, §4.I).
func (o *Oracle) ConvertGasToT0(token0 types.Address, gasInBaseToken uint64) (uint64, bool) {
	gasPerT0, ok := o.GetConversionPrice(token0, o.baseGasToken)
	if !ok {
		return 0, false
	}
	return gasPerT0.InverseQuantity(gasInBaseToken, true), true
}

// rayDecimalDivisor is 1e27 as a decimal.Decimal, used only to render a Ray
// as a human-readable number for logs; all actual math stays in Ray.
var rayDecimalDivisor = decimal.New(1, 27)

// FormatPrice renders a Ray price as a fixed-point decimal string for logs
// and the RPC status endpoint, without losing precision to a float64
// round-trip.
func FormatPrice(r fixedpoint.Ray) string {
	scaled := decimal.NewFromBigInt(r.Uint256().ToBig(), 0)
	return scaled.DivRound(rayDecimalDivisor, 18).String()
}

// LookupMap returns every tracked pair's current average conversion price,
// keyed by its sorted token pair, for bulk export to the validator.
func (o *Oracle) LookupMap() map[[2]types.Address]fixedpoint.Ray {
	out := make(map[[2]types.Address]fixedpoint.Ray, len(o.pairToPool))
	for pair := range o.pairToPool {
		price, ok := o.GetConversionPrice(pair.Token0, pair.Token1)
		if !ok {
			continue
		}
		out[[2]types.Address{pair.Token0, pair.Token1}] = price
	}
	return out
}
