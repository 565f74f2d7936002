package amm

import (
	"fmt"
	"sort"

	"github.com/angstrom-node/ucpnode/pkg/fixedpoint"
)

// PoolSnapshot is a point-in-time view of a pool's liquidity layout and
// current price, rebuilt from chain events after every committed block
// (spec §4.B, §4.C).
type PoolSnapshot struct {
	Ranges       []LiqRange
	SqrtPrice    fixedpoint.SqrtPriceX96
	CurrentTick  int32
	CurTickAsk   int
	CurTickBid   int
	TickSpacing  int32
	FeePips      uint32
}

// NewPoolSnapshot sorts ranges by lower tick and locates the ask/bid range
// windows that contain the snapshot's current price.
func NewPoolSnapshot(tickSpacing int32, ranges []LiqRange, sqrtPrice fixedpoint.SqrtPriceX96, feePips uint32) (*PoolSnapshot, error) {
	if tickSpacing <= 0 {
		return nil, fmt.Errorf("amm: invalid tick spacing %d", tickSpacing)
	}

	sorted := make([]LiqRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LowerTick < sorted[j].LowerTick })

	currentTick := fixedpoint.SqrtPriceX96ToTick(sqrtPrice)

	askIdx, ok := findContaining(sorted, currentTick, true)
	if !ok {
		return nil, fmt.Errorf("amm: no initialized ask range for tick %d", currentTick)
	}
	bidIdx, ok := findContaining(sorted, currentTick, false)
	if !ok {
		return nil, fmt.Errorf("amm: no initialized bid range for tick %d", currentTick)
	}

	return &PoolSnapshot{
		Ranges:      sorted,
		SqrtPrice:   sqrtPrice,
		CurrentTick: currentTick,
		CurTickAsk:  askIdx,
		CurTickBid:  bidIdx,
		TickSpacing: tickSpacing,
		FeePips:     feePips,
	}, nil
}

func findContaining(ranges []LiqRange, tick int32, direction bool) (int, bool) {
	for i, r := range ranges {
		if r.Direction == direction && r.Contains(tick) {
			return i, true
		}
	}
	return 0, false
}

// GetRangeForTick returns the range in the given direction layer that
// contains tick, if any.
func (p *PoolSnapshot) GetRangeForTick(tick int32, direction bool) (LiqRange, bool) {
	for _, r := range p.Ranges {
		if r.Direction == direction && r.Contains(tick) {
			return r, true
		}
	}
	return LiqRange{}, false
}

// RangesForTicks returns the contiguous slice of ranges spanning
// [startTick, endTick], ordered from the start's range to the end's range.
// Direction is inferred from the tick ordering: startTick >= endTick selects
// the ask layer (price falling, selling T0), otherwise the bid layer.
func (p *PoolSnapshot) RangesForTicks(startTick, endTick int32) []LiqRange {
	isAsk := startTick >= endTick
	low, high := startTick, endTick
	if low > high {
		low, high = high, low
	}

	var out []LiqRange
	for _, r := range p.Ranges {
		if r.Direction != isAsk {
			continue
		}
		if r.UpperTick > low && r.LowerTick <= high {
			out = append(out, r)
		}
	}
	if startTick > endTick {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// CurrentRange returns the range containing the snapshot's current price in
// the requested direction.
func (p *PoolSnapshot) CurrentRange(direction bool) LiqRange {
	if direction {
		return p.Ranges[p.CurTickAsk]
	}
	return p.Ranges[p.CurTickBid]
}
