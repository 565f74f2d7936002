package matching

import (
	"sort"
	"time"

	"github.com/angstrom-node/ucpnode/pkg/amm"
	"github.com/angstrom-node/ucpnode/pkg/fixedpoint"
	"github.com/angstrom-node/ucpnode/pkg/orderpool"
	"github.com/angstrom-node/ucpnode/pkg/types"
)

// maxBisectionSteps bounds the search: Ray is a 1e27-scaled uint256, so
// exact midpoint convergence isn't guaranteed in any fixed step count. Past
// this many halvings the remaining price range is economically
// indistinguishable from either bound, so the best midpoint seen becomes
// the answer (the "dust solution" fallback).
const maxBisectionSteps = 96

// maxKillRestarts bounds how many times the bisection restarts after
// killing orders to close a gap neither side's slack could absorb. Each
// restart only narrows the set of orders still in play, so this can never
// loop forever; the bound just keeps a pathological book (every order
// exactly at the same price) from spinning past a block's time budget.
const maxKillRestarts = 8

// killCandidate is an exact order sitting exactly at the price under
// evaluation: eligible to fill in full, but removable if the gap it would
// leave open can't be closed any other way (spec §4.G step 3b).
type killCandidate struct {
	hash  types.Hash
	qtyT0 uint64
}

// supplyDemand is one midpoint's evaluation: how much T0 the book+AMM would
// supply vs demand at that price, split into what's unconditionally
// mandatory, what's available as partial-order slack, and what's only
// filled because nothing closer to the margin could close the gap.
type supplyDemand struct {
	price       fixedpoint.Ray
	supplyT0    uint64
	demandT0    uint64
	rewardT0    uint64
	ammNet      NetAmmOrder
	hasAmmOrder bool

	// bidSlackT0/askSlackT0 is the extra T0 a same-side partial order sitting
	// exactly at price could still absorb beyond its mandatory minimum.
	bidSlackT0 uint64
	askSlackT0 uint64

	// killableBids/killableAsks are exact orders sitting exactly at price,
	// already counted into demandT0/supplyT0 as mandatory, but eligible to
	// be dropped (spec §4.G step 3b) if the gap needs it.
	killableBids []killCandidate
	killableAsks []killCandidate

	// bidFillT0/askFillT0 record how much of that side's slack the solver
	// actually needed once a price balances, for settle to size partials by.
	bidFillT0 uint64
	askFillT0 uint64
}

func (s supplyDemand) imbalance() uint64 {
	return satDiff(s.supplyT0, s.demandT0)
}

// tryAbsorb reports whether the current imbalance can be closed purely by
// drawing on the side's own partial-order slack, with no order killed. A
// supply excess drains through extra bid demand; a demand excess drains
// through extra ask supply (spec §4.G step 3a's "PartialFillEq").
func (s *supplyDemand) tryAbsorb() bool {
	gap := s.imbalance()
	if gap == 0 {
		return true
	}
	if s.supplyT0 > s.demandT0 {
		if s.bidSlackT0 >= gap {
			s.bidFillT0 = gap
			return true
		}
		return false
	}
	if s.askSlackT0 >= gap {
		s.askFillT0 = gap
		return true
	}
	return false
}

func satDiff(a, b uint64) uint64 {
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

// MatcherConfig tunes the parts of the solve that aren't fixed by the
// pool's own book/AMM state.
type MatcherConfig struct {
	// DustToleranceRay is the minimum meaningful price gap the bisection
	// keeps refining for. Once the bracket narrows past this, the best
	// midpoint seen is "the price of one unit of the opposite token" and
	// further halving can't change the settlement (Open Question #3); zero
	// falls back to running the full maxBisectionSteps.
	DustToleranceRay fixedpoint.Ray

	// LPDonationFraction is the share of a pool's collected TotalRewardT0
	// that goes to LPs via donation rather than straight to the protocol
	// (spec §9 design note). Solve itself never splits the reward — this
	// rides along on the config that produced a PoolSolution so the
	// bundle assembler can split TotalRewardT0 the same way for every
	// pool in a block without re-deriving the fraction per pool. Zero
	// means "unset"; the assembler falls back to its own default.
	LPDonationFraction float64
}

// Matcher solves one pool's uniform clearing price from its resting order
// books and AMM snapshot (spec §4.G).
type Matcher struct {
	PoolId types.PoolId
	Book   orderpool.Snapshot
	AMM    *amm.PoolSnapshot
	Fee    uint32
	Config MatcherConfig
}

// Solve bisects between the book's most aggressive bid and ask prices (and
// the AMM's own price, so an empty book still clears at the AMM spot) for
// the price at which cumulative T0 supply and demand are as close to equal
// as the representable price grid allows, then reports every order's fill
// at that price.
//
// If a top-of-block order is present, it is applied to the AMM first,
// producing the snapshot the book then bisects against, so the book sees
// whatever price the searcher already paid to move the pool to (spec §4.G
// step 1).
//
// deadline bounds the wall-clock time spent bisecting; a zero Time means no
// deadline. Past the deadline Solve stops refining and settles on the
// best (least-imbalanced) midpoint found so far, same as running out of
// bisection steps (spec §5's "best-known dust solution on expiry").
func (m *Matcher) Solve(deadline time.Time) PoolSolution {
	effectiveAMM, tobVec := m.applyTOB()

	if effectiveAMM == nil && len(m.Book.Bids) == 0 && len(m.Book.Asks) == 0 {
		// Nothing to clear against: the null solution (spec §8 boundary
		// behaviors, "solve(∅,A).ucp == 0").
		sol := PoolSolution{PoolId: m.PoolId}
		if m.Book.Searcher != nil {
			sol.Outcomes = append(sol.Outcomes, OrderOutcome{Hash: m.Book.Searcher.Hash, Fill: FillStateUnfilled})
		}
		return sol
	}

	pMin, pMax := m.priceBounds(effectiveAMM)
	hasDeadline := !deadline.IsZero()
	killed := make(map[types.Hash]bool)

	var best supplyDemand
	for restart := 0; restart <= maxKillRestarts; restart++ {
		lo, hi := pMin, pMax

		best = m.evaluate(lo, effectiveAMM, killed)
		solved := best.tryAbsorb()
		if cand := m.evaluate(hi, effectiveAMM, killed); !solved {
			candSolved := cand.tryAbsorb()
			if candSolved || cand.imbalance() < best.imbalance() {
				best, solved = cand, candSolved
			}
		}

		for step := 0; !solved && step < maxBisectionSteps && lo.Cmp(hi) < 0; step++ {
			if hasDeadline && !time.Now().Before(deadline) {
				break
			}
			if m.withinDustTolerance(lo, hi) {
				break
			}

			mid := midpoint(lo, hi)
			if mid.Cmp(lo) <= 0 || mid.Cmp(hi) >= 0 {
				break
			}

			eval := m.evaluate(mid, effectiveAMM, killed)
			evalSolved := eval.tryAbsorb()
			if evalSolved || eval.imbalance() < best.imbalance() {
				best = eval
			}
			if evalSolved {
				solved = true
				break
			}

			if eval.supplyT0 > eval.demandT0 {
				// More sellers than buyers at mid: price is too high for
				// the book to absorb, push the ceiling down.
				hi = mid
			} else {
				lo = mid
			}
		}

		if solved {
			break
		}

		kill := selectKill(best)
		if len(kill) == 0 {
			break
		}
		for _, h := range kill {
			killed[h] = true
		}
	}

	return m.settle(best, killed, tobVec)
}

// selectKill decides which same-side killable exact orders to drop on the
// side with too much liquidity, preferring to drop all of them and let
// that side's own partial slack absorb the gap to the other side's total;
// only when slack alone can't reach it does it keep exacts in play
// (largest first) until it can (spec §4.G step 3b). Returns nil if even
// every exact plus full slack isn't enough to close the gap.
func selectKill(s supplyDemand) []types.Hash {
	if s.supplyT0 > s.demandT0 {
		return resolveSide(s.supplyT0, s.killableAsks, s.askSlackT0, s.demandT0)
	}
	if s.demandT0 > s.supplyT0 {
		return resolveSide(s.demandT0, s.killableBids, s.bidSlackT0, s.supplyT0)
	}
	return nil
}

func resolveSide(total uint64, killable []killCandidate, slack uint64, target uint64) []types.Hash {
	if len(killable) == 0 {
		return nil
	}

	var exactSum uint64
	for _, c := range killable {
		exactSum += c.qtyT0
	}
	base := satSub(total, exactSum)

	need := satSub(target, base)
	if need <= slack {
		all := make([]types.Hash, len(killable))
		for i, c := range killable {
			all[i] = c.hash
		}
		return all
	}

	need = satSub(need, slack)
	sorted := append([]killCandidate(nil), killable...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].qtyT0 > sorted[j].qtyT0 })

	kept := make(map[types.Hash]bool, len(sorted))
	var keptSum uint64
	for _, c := range sorted {
		if keptSum >= need {
			break
		}
		kept[c.hash] = true
		keptSum += c.qtyT0
	}
	if keptSum < need {
		// Not even every exact plus full slack closes the gap: nothing to
		// kill, the dust-solution fallback takes over.
		return nil
	}

	out := make([]types.Hash, 0, len(sorted)-len(kept))
	for _, c := range sorted {
		if !kept[c.hash] {
			out = append(out, c.hash)
		}
	}
	return out
}

// applyTOB executes a present top-of-block order against the AMM before the
// book bisects, per spec §4.G step 1. The order's own limit price is
// treated as the location it moves the AMM to; if there's no AMM, no
// searcher order, or the target is outside the snapshot's initialized
// liquidity, the AMM is left untouched and the searcher order settles
// Unfilled.
func (m *Matcher) applyTOB() (*amm.PoolSnapshot, *amm.SwapVec) {
	tob := m.Book.Searcher
	if tob == nil || m.AMM == nil {
		return m.AMM, nil
	}

	target := fixedpoint.SqrtPriceX96FromRay(tob.Order.LimitPrice, tob.Order.LimitPrice.Cmp(fixedpoint.RayFromSqrtPriceX96(m.AMM.SqrtPrice, false)) < 0)
	vec, err := m.AMM.SwapToPrice(target)
	if err != nil || (vec.TotalDT0 == 0 && vec.TotalDT1 == 0) {
		return m.AMM, nil
	}

	shifted, err := amm.NewPoolSnapshot(m.AMM.TickSpacing, m.AMM.Ranges, target, m.AMM.FeePips)
	if err != nil {
		return m.AMM, nil
	}
	return shifted, vec
}

// priceBounds seeds the bisection range from the book's best bid/ask and
// the AMM's current price, so the search always contains a meaningful
// range even when one side of the book is empty.
func (m *Matcher) priceBounds(ammSnap *amm.PoolSnapshot) (lo, hi fixedpoint.Ray) {
	prices := make([]fixedpoint.Ray, 0, 3)
	if ammSnap != nil {
		prices = append(prices, fixedpoint.RayFromSqrtPriceX96(ammSnap.SqrtPrice, false))
	}
	if len(m.Book.Bids) > 0 {
		prices = append(prices, m.Book.Bids[0].Priority.Price)
	}
	if len(m.Book.Asks) > 0 {
		prices = append(prices, m.Book.Asks[0].Priority.Price)
	}
	if len(prices) == 0 {
		return fixedpoint.Ray{}, fixedpoint.Ray{}
	}

	lo, hi = prices[0], prices[0]
	for _, p := range prices[1:] {
		if p.Cmp(lo) < 0 {
			lo = p
		}
		if p.Cmp(hi) > 0 {
			hi = p
		}
	}
	return lo, hi
}

// withinDustTolerance reports whether the bracket has narrowed past the
// configured dust threshold, so further halving can't move the settlement
// (Open Question #3). A zero tolerance disables the check, deferring
// entirely to maxBisectionSteps.
func (m *Matcher) withinDustTolerance(lo, hi fixedpoint.Ray) bool {
	if m.Config.DustToleranceRay.IsZero() {
		return false
	}
	return hi.Sub(lo).Cmp(m.Config.DustToleranceRay) <= 0
}

func midpoint(lo, hi fixedpoint.Ray) fixedpoint.Ray {
	sum := lo.Add(hi).Uint256()
	return fixedpoint.RayFromUint256(sum.Rsh(sum, 1))
}

// evaluate computes the book's aggregate T0 supply/demand at price, plus
// the AMM movement needed to carry the pool there, for one bisection step.
// Orders strictly better than price are fully mandatory. Partial orders
// sitting exactly at price contribute their minimum as mandatory and the
// rest as slack; exact orders sitting exactly at price are mandatory by
// default but registered as killable, in case the gap they leave needs
// closing some other way (spec §4.G steps 2-3).
func (m *Matcher) evaluate(price fixedpoint.Ray, ammSnap *amm.PoolSnapshot, killed map[types.Hash]bool) supplyDemand {
	result := supplyDemand{price: price}

	for _, bid := range m.Book.Bids {
		if killed[bid.Hash] || bid.Priority.Price.Cmp(price) < 0 {
			continue
		}
		if bid.Order.IsPartial() && bid.Order.MinAmount > bid.Order.Amount {
			continue // can never meet its own floor
		}

		atPrice := bid.Priority.Price.Cmp(price) == 0
		switch {
		case atPrice && bid.Order.IsPartial():
			_, floorT0, floorFee := quantitiesAt(bid, price, bid.Order.MinAmount, m.Fee)
			_, ceilT0, _ := quantitiesAt(bid, price, bid.Order.Amount, m.Fee)
			result.demandT0 += floorT0
			result.rewardT0 += floorFee
			result.bidSlackT0 += satDiff(ceilT0, floorT0)
		case atPrice:
			_, netT0, fee := quantitiesFor(bid, price, m.Fee)
			result.demandT0 += netT0
			result.rewardT0 += fee
			result.killableBids = append(result.killableBids, killCandidate{bid.Hash, netT0})
		default:
			_, netT0, fee := quantitiesFor(bid, price, m.Fee)
			result.demandT0 += netT0
			result.rewardT0 += fee
		}
	}

	for _, ask := range m.Book.Asks {
		if killed[ask.Hash] || ask.Priority.Price.Cmp(price) > 0 {
			continue
		}
		if ask.Order.IsPartial() && ask.Order.MinAmount > ask.Order.Amount {
			continue
		}

		atPrice := ask.Priority.Price.Cmp(price) == 0
		switch {
		case atPrice && ask.Order.IsPartial():
			_, floorT0, floorFee := quantitiesAt(ask, price, ask.Order.MinAmount, m.Fee)
			_, ceilT0, _ := quantitiesAt(ask, price, ask.Order.Amount, m.Fee)
			result.supplyT0 += floorT0
			result.rewardT0 += floorFee
			result.askSlackT0 += satDiff(ceilT0, floorT0)
		case atPrice:
			_, netT0, fee := quantitiesFor(ask, price, m.Fee)
			result.supplyT0 += netT0
			result.rewardT0 += fee
			result.killableAsks = append(result.killableAsks, killCandidate{ask.Hash, netT0})
		default:
			_, netT0, fee := quantitiesFor(ask, price, m.Fee)
			result.supplyT0 += netT0
			result.rewardT0 += fee
		}
	}

	if ammSnap != nil {
		target := fixedpoint.SqrtPriceX96FromRay(price, price.Cmp(fixedpoint.RayFromSqrtPriceX96(ammSnap.SqrtPrice, false)) < 0)
		if vec, err := ammSnap.SwapToPrice(target); err == nil {
			result.hasAmmOrder = true
			result.ammNet = NetAmmOrder{ZeroForOne: vec.Falling, QuantityT0: vec.TotalDT0, QuantityT1: vec.TotalDT1}
			if vec.Falling {
				// AMM is selling T0 into the market: extra supply.
				result.supplyT0 += vec.TotalDT0
			} else {
				result.demandT0 += vec.TotalDT0
			}
		}
	}

	return result
}

func quantitiesFor(o *types.OrderWithStorageData, price fixedpoint.Ray, fee uint32) (t1, netT0, feeT0 uint64) {
	return quantitiesAt(o, price, o.Order.Amount, fee)
}

func quantitiesAt(o *types.OrderWithStorageData, price fixedpoint.Ray, fillAmount uint64, fee uint32) (t1, netT0, feeT0 uint64) {
	return GetQuantitiesAtPrice(o.IsBid, o.Order.ExactIn, fillAmount, o.Order.MaxExtraFeeAsset0, fee, price)
}

// sizePartialFill finds the smallest fillAmount in [MinAmount, Amount]
// whose net T0 contribution reaches targetT0. GetQuantitiesAtPrice's net T0
// output is monotone non-decreasing in fillAmount in every order shape, so
// bisecting it directly avoids inverting each shape's formula by hand.
func sizePartialFill(o *types.OrderWithStorageData, price fixedpoint.Ray, fee uint32, targetT0 uint64) uint64 {
	lo, hi := o.Order.MinAmount, o.Order.Amount
	for lo < hi {
		mid := lo + (hi-lo)/2
		_, netT0, _ := quantitiesAt(o, price, mid, fee)
		if netT0 < targetT0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// settle turns the winning midpoint into per-order outcomes. Killed orders
// report Killed; orders strictly past the clearing price fill completely
// (or go Unfilled past the other side); partial orders sitting exactly at
// price are sized from the slack the bisection found it needed, in book
// order; a top-of-block order fills completely against the AMM at its own
// limit price if applyTOB found room for it, otherwise Unfilled.
func (m *Matcher) settle(best supplyDemand, killed map[types.Hash]bool, tobVec *amm.SwapVec) PoolSolution {
	sol := PoolSolution{PoolId: m.PoolId, UCP: best.price, TotalRewardT0: best.rewardT0}

	// The net AMM move after matching is the vector sum of the TOB's own
	// shift and the book's further movement, computed as a single swap from
	// the pool's true starting price straight to the clearing price so the
	// two legs never accumulate separate rounding.
	if m.AMM != nil {
		target := fixedpoint.SqrtPriceX96FromRay(best.price, best.price.Cmp(fixedpoint.RayFromSqrtPriceX96(m.AMM.SqrtPrice, false)) < 0)
		if vec, err := m.AMM.SwapToPrice(target); err == nil && (vec.TotalDT0 != 0 || vec.TotalDT1 != 0) {
			sol.AmmOrder = &NetAmmOrder{ZeroForOne: vec.Falling, QuantityT0: vec.TotalDT0, QuantityT1: vec.TotalDT1}
		}
	}

	bidRemaining, askRemaining := best.bidFillT0, best.askFillT0

	settleSide := func(side []*types.OrderWithStorageData, isBid bool, remaining *uint64) {
		for _, o := range side {
			if killed[o.Hash] {
				sol.Outcomes = append(sol.Outcomes, OrderOutcome{Hash: o.Hash, Fill: FillStateKilled})
				continue
			}

			eligible := isBid && o.Priority.Price.Cmp(best.price) >= 0
			eligible = eligible || (!isBid && o.Priority.Price.Cmp(best.price) <= 0)
			if !eligible {
				sol.Outcomes = append(sol.Outcomes, OrderOutcome{Hash: o.Hash, Fill: FillStateUnfilled})
				continue
			}
			if o.Order.IsPartial() && o.Order.MinAmount > o.Order.Amount {
				sol.Outcomes = append(sol.Outcomes, OrderOutcome{Hash: o.Hash, Fill: FillStateUnfilled})
				continue
			}

			atPrice := o.Priority.Price.Cmp(best.price) == 0
			if atPrice && o.Order.IsPartial() {
				_, floorT0, _ := quantitiesAt(o, best.price, o.Order.MinAmount, m.Fee)
				_, ceilT0, _ := quantitiesAt(o, best.price, o.Order.Amount, m.Fee)
				slack := satDiff(ceilT0, floorT0)
				consumed := min64(*remaining, slack)
				*remaining -= consumed

				fillAmount := o.Order.MinAmount
				if consumed > 0 {
					fillAmount = sizePartialFill(o, best.price, m.Fee, floorT0+consumed)
				}

				t1, netT0, feeT0 := quantitiesAt(o, best.price, fillAmount, m.Fee)
				outcome := OrderOutcome{Hash: o.Hash, FillAmount: fillAmount, T1Moved: t1, NetT0: netT0, FeeT0: feeT0}
				if fillAmount >= o.Order.Amount {
					outcome.Fill = FillStateComplete
				} else {
					outcome.Fill = FillStatePartial
				}
				sol.Outcomes = append(sol.Outcomes, outcome)
				continue
			}

			t1, netT0, feeT0 := quantitiesAt(o, best.price, o.Order.Amount, m.Fee)
			sol.Outcomes = append(sol.Outcomes, OrderOutcome{
				Hash: o.Hash, Fill: FillStateComplete,
				FillAmount: o.Order.Amount, T1Moved: t1, NetT0: netT0, FeeT0: feeT0,
			})
		}
	}

	settleSide(m.Book.Bids, true, &bidRemaining)
	settleSide(m.Book.Asks, false, &askRemaining)

	if tob := m.Book.Searcher; tob != nil {
		if tobVec != nil {
			t1, netT0, feeT0 := quantitiesAt(tob, tob.Order.LimitPrice, tob.Order.Amount, m.Fee)
			sol.Outcomes = append(sol.Outcomes, OrderOutcome{
				Hash: tob.Hash, Fill: FillStateComplete,
				FillAmount: tob.Order.Amount, T1Moved: t1, NetT0: netT0, FeeT0: feeT0,
			})
		} else {
			sol.Outcomes = append(sol.Outcomes, OrderOutcome{Hash: tob.Hash, Fill: FillStateUnfilled})
		}
	}

	return sol
}
