package consensus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angstrom-node/ucpnode/pkg/types"
)

// A lone validator is its own quorum of one: a full round runs BidAggregation
// through Proposal/Finalization to submission within a handful of Tick
// calls, with zero phase waits so every exit condition is already met.
func TestRoundSingleValidatorLeaderHappyPath(t *testing.T) {
	self := addrOf(1)
	limit := []types.Hash{hashOf(1)}

	net := &fakeNet{}
	app := &fakeApp{limit: limit, payload: []byte("bundle")}
	signer := fakeSigner{addr: self}

	now := time.Unix(1000, 0)
	r := NewRound(5, self, self, []types.Address{self}, app, net, signer, PhaseTimers{SettleWait: 0}, 0, now)

	require.NoError(t, r.Tick(now)) // BidAggregation -> PreProposal
	require.Equal(t, PhasePreProposal, r.Phase)
	require.Len(t, net.preProposals, 1)

	require.NoError(t, r.Tick(now)) // PreProposal -> PreProposalAggregation
	require.Equal(t, PhasePreProposalAggregation, r.Phase)
	require.Len(t, net.aggregations, 1)

	require.NoError(t, r.Tick(now)) // PreProposalAggregation -> Finalization, leader proposes+submits
	require.Equal(t, PhaseProposalFinalization, r.Phase)
	require.Len(t, net.proposals, 1)
	require.True(t, r.Done())

	require.ElementsMatch(t, limit, app.seenLimit)
	require.Equal(t, []types.BlockNumber{5}, app.submittedHeights)
	require.Equal(t, [][]byte{[]byte("bundle")}, app.submittedPayloads)

	info := r.LastRoundInfo()
	require.True(t, info.WasLeader)
	require.True(t, info.ReachedSubmission)
}

// When Finalize reports nothing to settle, the leader broadcasts an
// EmptyBlockAttestation instead of a Proposal, and still submits (with a
// nil payload) to close out the round.
func TestRoundLeaderBroadcastsEmptyBlockWhenFinalizeReturnsNilPayload(t *testing.T) {
	self := addrOf(1)
	net := &fakeNet{}
	app := &fakeApp{payload: nil}
	signer := fakeSigner{addr: self}

	now := time.Unix(2000, 0)
	r := NewRound(9, self, self, []types.Address{self}, app, net, signer, PhaseTimers{SettleWait: 0}, 0, now)

	require.NoError(t, r.Tick(now))
	require.NoError(t, r.Tick(now))
	require.NoError(t, r.Tick(now))

	require.Empty(t, net.proposals)
	require.Len(t, net.emptyBlocks, 1)
	require.True(t, r.Done())
	require.Equal(t, [][]byte{nil}, app.submittedPayloads)
}

// A follower never calls Finalize itself; it waits for the leader's signed
// Proposal to arrive via HandleMessage and submits once it does.
func TestRoundFollowerSubmitsOnReceivingLeaderProposal(t *testing.T) {
	self := addrOf(2)
	leader := addrOf(1)
	net := &fakeNet{}
	app := &fakeApp{}
	signer := fakeSigner{addr: self}

	now := time.Unix(3000, 0)
	r := NewRound(3, leader, self, []types.Address{leader, self}, app, net, signer, PhaseTimers{SettleWait: 0}, 0, now)

	// Drive the follower's own phases forward; quorum needs both
	// validators' pre-proposals/aggregations, which this lone test never
	// supplies, so the round sits in PreProposal/PreProposalAggregation
	// until the leader's Proposal is delivered directly.
	require.NoError(t, r.Tick(now))
	require.False(t, r.Done())

	msg := PropagateProposal(Proposal{Height: 3, Leader: leader, Payload: []byte("from-leader")})
	r.HandleMessage(msg)

	require.NoError(t, r.Tick(now))
	require.True(t, r.Done())
	require.Equal(t, [][]byte{[]byte("from-leader")}, app.submittedPayloads)
	require.Empty(t, net.proposals) // follower never builds its own

	info := r.LastRoundInfo()
	require.False(t, info.WasLeader)
	require.True(t, info.ReachedSubmission)
}

func TestHandleMessageDropsWrongHeightAndNonValidatorAndDuplicates(t *testing.T) {
	self := addrOf(1)
	peer := addrOf(2)
	stranger := addrOf(9)
	net := &fakeNet{}
	app := &fakeApp{}
	signer := fakeSigner{addr: self}

	now := time.Unix(4000, 0)
	r := NewRound(7, self, self, []types.Address{self, peer}, app, net, signer, PhaseTimers{SettleWait: time.Hour}, time.Hour, now)

	wrongHeight := PreProposal{Height: 8, Validator: peer, LimitOrders: []types.Hash{hashOf(1)}}
	r.HandleMessage(PropagatePreProposal(wrongHeight))
	require.NotContains(t, r.preProposals, peer)

	fromStranger := PreProposal{Height: 7, Validator: stranger, LimitOrders: []types.Hash{hashOf(2)}}
	r.HandleMessage(PropagatePreProposal(fromStranger))
	require.NotContains(t, r.preProposals, stranger)

	first := PreProposal{Height: 7, Validator: peer, LimitOrders: []types.Hash{hashOf(3)}}
	r.HandleMessage(PropagatePreProposal(first))
	require.Equal(t, first, r.preProposals[peer])

	dup := PreProposal{Height: 7, Validator: peer, LimitOrders: []types.Hash{hashOf(4)}}
	r.HandleMessage(PropagatePreProposal(dup))
	require.Equal(t, first, r.preProposals[peer]) // first copy wins, duplicate ignored
}
