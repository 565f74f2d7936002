// Package bundle assembles the per-pool solutions a block's matcher runs
// produce into one settlement-ready bundle: the LP/protocol reward split,
// the LP donation spread across the AMM ranges a pool's net swap crossed,
// and the net per-token flow the whole bundle needs to balance.
//
// This is a SPEC_FULL.md expansion module, not numbered in spec.md's
// module list (which ends at §4.I) — the consensus round's Proposal phase
// needs something concrete to carry downstream, and the bit-exact contract
// ABI encoding that shape eventually needs is explicitly out of scope.
package bundle

import (
	"fmt"
	"math"

	"github.com/angstrom-node/ucpnode/pkg/amm"
	"github.com/angstrom-node/ucpnode/pkg/matching"
	"github.com/angstrom-node/ucpnode/pkg/orderpool"
	"github.com/angstrom-node/ucpnode/pkg/types"
)

// defaultLPDonationFraction is the share of collected order fees that goes
// to LPs via donation rather than straight to the protocol when a pool's
// matcher config leaves MatcherConfig.LPDonationFraction unset, matching
// the 75% split the original assembler hard-coded.
const defaultLPDonationFraction = 0.75

// splitReward divides a pool's collected T0 fee between the LP donation and
// the protocol's own take, using fraction if it's a valid (0, 1] share and
// falling back to defaultLPDonationFraction otherwise. LP rounds up,
// protocol rounds down (Open Question #2): the protocol's share is the
// residual left after LPs are paid, so the two always sum back to total
// exactly — no donation path can manufacture or lose a unit of T0.
func splitReward(total uint64, fraction float64) (lpAmount, protocolAmount uint64) {
	if fraction <= 0 || fraction > 1 {
		fraction = defaultLPDonationFraction
	}
	lpAmount = uint64(math.Ceil(float64(total) * fraction))
	if lpAmount > total {
		lpAmount = total
	}
	return lpAmount, total - lpAmount
}

// PoolInput is everything the assembler needs from one pool's matcher run:
// the solved outcome, the book it was solved against (to recover each
// outcome's direction and gas budget), the pool's token pair, and the net
// AMM swap actually carried out at settlement (nil if the AMM didn't move).
type PoolInput struct {
	Solution matching.PoolSolution
	Book     orderpool.Snapshot
	Token0   types.Address
	Token1   types.Address
	AMMSwap  *amm.SwapVec
	// LPDonationFraction is copied from the pool's MatcherConfig so the
	// reward split here matches the config the pool actually solved
	// under (spec §9 design note). Zero falls back to
	// defaultLPDonationFraction.
	LPDonationFraction float64
}

// PoolResult is one pool's contribution to the bundle: its solution, the
// reward split decided for it, and the LP donation spread across the
// ranges its net swap crossed.
type PoolResult struct {
	PoolId        types.PoolId
	Solution      matching.PoolSolution
	LPDonation    amm.DonationResult
	ProtocolFeeT0 uint64
}

// BundleSolutionSet is the block's complete settlement: one PoolResult per
// pool plus the net signed flow of every token touched, which must sum to
// zero across all of a bundle's internal movement (what flows in from one
// counterparty flows out to another).
type BundleSolutionSet struct {
	Pools       []PoolResult
	AssetDeltas map[types.Address]int64
}

// Assemble turns one block's per-pool matcher outputs into a bundle. An
// error here means a solution referenced an order hash its own book
// didn't contain — a caller bug, since outcomes are only ever produced by
// Matcher.Solve from the very book passed back in.
func Assemble(inputs []PoolInput) (*BundleSolutionSet, error) {
	set := &BundleSolutionSet{AssetDeltas: make(map[types.Address]int64)}

	for _, in := range inputs {
		result, err := assemblePool(in, set.AssetDeltas)
		if err != nil {
			return nil, err
		}
		set.Pools = append(set.Pools, result)
	}

	return set, nil
}

func assemblePool(in PoolInput, deltas map[types.Address]int64) (PoolResult, error) {
	byHash := make(map[types.Hash]*types.OrderWithStorageData, len(in.Book.Bids)+len(in.Book.Asks)+1)
	for _, o := range in.Book.Bids {
		byHash[o.Hash] = o
	}
	for _, o := range in.Book.Asks {
		byHash[o.Hash] = o
	}
	if in.Book.Searcher != nil {
		byHash[in.Book.Searcher.Hash] = in.Book.Searcher
	}

	for _, outcome := range in.Solution.Outcomes {
		if outcome.Fill == matching.FillStateUnfilled || outcome.Fill == matching.FillStateKilled {
			continue
		}
		order, ok := byHash[outcome.Hash]
		if !ok {
			return PoolResult{}, fmt.Errorf("bundle: outcome %x references order not in its own book", outcome.Hash)
		}

		var quantityIn, quantityOut uint64
		if order.IsBid {
			// Paying T1 in, receiving the net T0 the protocol already
			// deducted fee and gas from.
			quantityIn, quantityOut = outcome.T1Moved, outcome.NetT0
		} else {
			// Paying T0 (net sale plus the fee and gas collected from
			// it) in, receiving T1 out.
			quantityIn, quantityOut = outcome.NetT0+outcome.FeeT0+order.Order.MaxExtraFeeAsset0, outcome.T1Moved
		}

		deltas[order.Order.AssetIn] += int64(quantityIn)
		deltas[order.Order.AssetOut] -= int64(quantityOut)
	}

	if net := in.Solution.AmmOrder; net != nil {
		if net.ZeroForOne {
			deltas[in.Token0] += int64(net.QuantityT0)
			deltas[in.Token1] -= int64(net.QuantityT1)
		} else {
			deltas[in.Token1] += int64(net.QuantityT1)
			deltas[in.Token0] -= int64(net.QuantityT0)
		}
	}

	lpAmount, protocolAmount := splitReward(in.Solution.TotalRewardT0, in.LPDonationFraction)

	var donation amm.DonationResult
	if in.AMMSwap != nil {
		donation = in.AMMSwap.T0Donation(lpAmount)
	} else {
		donation = amm.DonationResult{TickDonations: map[amm.TickPair]uint64{}, Remaining: lpAmount}
	}

	return PoolResult{
		PoolId:        in.Solution.PoolId,
		Solution:      in.Solution,
		LPDonation:    donation,
		ProtocolFeeT0: protocolAmount,
	}, nil
}
