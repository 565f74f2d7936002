package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angstrom-node/ucpnode/pkg/types"
)

func TestQuorumThresholdMatchesCeilTwoThirds(t *testing.T) {
	cases := map[int]int{0: 0, 1: 1, 2: 2, 3: 2, 4: 3, 6: 4, 7: 5}
	for n, want := range cases {
		require.Equal(t, want, quorumThreshold(n), "n=%d", n)
	}
}

func TestFilterQuorumOrdersKeepsOnlyThoseMeetingThreshold(t *testing.T) {
	a, b, c := addrOf(1), addrOf(2), addrOf(3)
	common := hashOf(1)
	rare := hashOf(2)

	ppA := PreProposal{Validator: a, LimitOrders: []types.Hash{common}}
	ppB := PreProposal{Validator: b, LimitOrders: []types.Hash{common, rare}}
	ppC := PreProposal{Validator: c, LimitOrders: []types.Hash{}}

	aggregations := []PreProposalAggregation{
		{Validator: a, PreProposals: []PreProposal{ppA, ppB}},
		{Validator: b, PreProposals: []PreProposal{ppA, ppC}},
	}

	kept := filterQuorumOrders(aggregations, 2, func(p PreProposal) []types.Hash { return p.LimitOrders })
	require.ElementsMatch(t, []types.Hash{common}, kept)
}
