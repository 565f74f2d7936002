package p2p

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angstrom-node/ucpnode/pkg/consensus"
	"github.com/angstrom-node/ucpnode/pkg/types"
)

func p2pAddr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func p2pHash(b byte) types.Hash {
	var h types.Hash
	h[31] = b
	return h
}

func TestGobRoundTripsPreProposal(t *testing.T) {
	msg := consensus.PropagatePreProposal(consensus.PreProposal{
		Height:         3,
		Validator:      p2pAddr(1),
		LimitOrders:    []types.Hash{p2pHash(1), p2pHash(2)},
		SearcherOrders: []types.Hash{p2pHash(3)},
		Signature:      []byte{9, 9, 9},
	})

	data, err := gobEncode(msg)
	require.NoError(t, err)

	var decoded consensus.ConsensusMessage
	require.NoError(t, gobDecode(data, &decoded))

	require.NotNil(t, decoded.PreProposal)
	require.Equal(t, msg.PreProposal.Height, decoded.PreProposal.Height)
	require.Equal(t, msg.PreProposal.Validator, decoded.PreProposal.Validator)
	require.Equal(t, msg.PreProposal.LimitOrders, decoded.PreProposal.LimitOrders)
	require.Equal(t, msg.PreProposal.SearcherOrders, decoded.PreProposal.SearcherOrders)
	require.Equal(t, msg.PreProposal.Signature, decoded.PreProposal.Signature)

	require.Nil(t, decoded.PreProposalAggregation)
	require.Nil(t, decoded.Proposal)
	require.Nil(t, decoded.EmptyBlockAttestation)
}

func TestGobRoundTripsEmptyBlockAttestation(t *testing.T) {
	msg := consensus.PropagateEmptyBlockAttestation(consensus.EmptyBlockAttestation{
		Height:    7,
		Leader:    p2pAddr(2),
		Signature: []byte{1, 2},
	})

	data, err := gobEncode(msg)
	require.NoError(t, err)

	var decoded consensus.ConsensusMessage
	require.NoError(t, gobDecode(data, &decoded))

	require.NotNil(t, decoded.EmptyBlockAttestation)
	require.Equal(t, msg.EmptyBlockAttestation.Height, decoded.EmptyBlockAttestation.Height)
	require.Equal(t, msg.EmptyBlockAttestation.Leader, decoded.EmptyBlockAttestation.Leader)
	require.Nil(t, decoded.PreProposal)
}

func TestGobRoundTripsProposalWithPayload(t *testing.T) {
	msg := consensus.PropagateProposal(consensus.Proposal{
		Height:    11,
		Leader:    p2pAddr(3),
		Payload:   []byte{0xde, 0xad, 0xbe, 0xef},
		Signature: []byte{5},
	})

	data, err := gobEncode(msg)
	require.NoError(t, err)

	var decoded consensus.ConsensusMessage
	require.NoError(t, gobDecode(data, &decoded))

	require.NotNil(t, decoded.Proposal)
	require.Equal(t, msg.Proposal.Payload, decoded.Proposal.Payload)
}
