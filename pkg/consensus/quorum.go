package consensus

import "github.com/angstrom-node/ucpnode/pkg/types"

// quorumThreshold is ⌈2n/3⌉ for a validator set of size n, the same
// two_thirds_of_validation_set formula the original computes as
// (2 * validators.len()).div_ceil(3).
func quorumThreshold(n int) int {
	if n <= 0 {
		return 0
	}
	return (2*n + 2) / 3
}

// filterQuorumOrders counts, for each order hash, how many of the given
// aggregations mention it in any of their pre-proposals (at most once per
// aggregation), and keeps only those counted in at least threshold
// aggregations — the same fold-into-a-count
// the original's filter_quorum_orders applies before handing orders to the
// matcher.
func filterQuorumOrders(aggregations []PreProposalAggregation, threshold int, pick func(PreProposal) []types.Hash) []types.Hash {
	counts := make(map[types.Hash]int)
	for _, agg := range aggregations {
		seen := make(map[types.Hash]bool)
		for _, pp := range agg.PreProposals {
			for _, h := range pick(pp) {
				if !seen[h] {
					seen[h] = true
					counts[h]++
				}
			}
		}
	}

	var out []types.Hash
	for h, c := range counts {
		if c >= threshold {
			out = append(out, h)
		}
	}
	return out
}
