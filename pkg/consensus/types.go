// file: pkg/consensus/types.go
//
// Package consensus runs the one-round-per-block, four-phase protocol a
// validator set uses to agree on a single block's settlement bundle:
// BidAggregation, PreProposal, PreProposalAggregation, then
// Proposal/Finalization. Unlike a chained-certificate BFT log, nothing here
// carries forward into the next block beyond the pre-proposal wait-trigger's
// own timing feedback — each height starts a fresh round from scratch.
package consensus

import (
	"time"

	"github.com/angstrom-node/ucpnode/pkg/types"
)

// Phase names one of the round's four sequential stages.
type Phase uint8

const (
	PhaseBidAggregation Phase = iota
	PhasePreProposal
	PhasePreProposalAggregation
	PhaseProposalFinalization
)

func (p Phase) String() string {
	switch p {
	case PhaseBidAggregation:
		return "bid_aggregation"
	case PhasePreProposal:
		return "pre_proposal"
	case PhasePreProposalAggregation:
		return "pre_proposal_aggregation"
	case PhaseProposalFinalization:
		return "proposal_finalization"
	default:
		return "unknown"
	}
}

// Signer is the subset of pkg/crypto.Signer a round needs: identity and the
// ability to sign the bytes of an outbound message.
type Signer interface {
	Address() types.Address
	Sign(hash []byte) ([]byte, error)
}

// LeaderElector picks the validator responsible for proposing a given
// height. Leader selection itself is external input; consensus only ever
// verifies that a Proposal was signed by whoever this returns.
type LeaderElector interface {
	LeaderOf(height types.BlockNumber) types.Address
}

// RoundRobinElector cycles through a fixed validator list by height,
// carried over from the teacher's view-indexed elector with View swapped
// for BlockNumber.
type RoundRobinElector struct{ Validators []types.Address }

func (r RoundRobinElector) LeaderOf(height types.BlockNumber) types.Address {
	if len(r.Validators) == 0 {
		return types.Address{}
	}
	return r.Validators[int(height)%len(r.Validators)]
}

// LastRoundInfo is what a finished round reports back to Engine.StartRound so the
// next round's wait trigger can react to it.
type LastRoundInfo struct {
	// ReachedSubmission is true once this node (leader or follower) saw a
	// Proposal or EmptyBlockAttestation accepted and handed to AppHook.
	ReachedSubmission bool
	// WasLeader is true if this node was the round's leader.
	WasLeader bool
}

// AppHook is the domain-specific work a round delegates to at each phase
// boundary: gathering this node's own order view, running the matcher once
// quorum orders are known, and submitting whatever the round finalized.
type AppHook interface {
	// BuildOrderView is called once BidAggregation's timer expires. It
	// returns this node's own view of resting limit and searcher order
	// hashes for the block, to carry in this node's PreProposal.
	BuildOrderView(height types.BlockNumber) (limitOrders, searcherOrders []types.Hash)

	// Finalize is called only by the round's leader, once
	// PreProposalAggregation reaches quorum, with the orders that appeared
	// in at least quorum aggregations. It runs the matcher per pool and
	// returns the assembled bundle payload to propose. A nil payload with a
	// nil error means no pool had anything to settle: the round emits an
	// EmptyBlockAttestation instead of a Proposal.
	Finalize(height types.BlockNumber, limitOrders, searcherOrders []types.Hash) (payload []byte, err error)

	// Submit is called by every node, leader and followers alike, once the
	// round has a final Proposal or EmptyBlockAttestation to act on.
	Submit(height types.BlockNumber, payload []byte) error
}

// Network broadcasts the round's four message kinds. Concrete transport
// (pkg/p2p) sits behind this the way the teacher's HotStuff Network hid
// libp2p behind BroadcastPropose/BroadcastPrepare.
type Network interface {
	BroadcastPreProposal(PreProposal) error
	BroadcastPreProposalAggregation(PreProposalAggregation) error
	BroadcastProposal(Proposal) error
	BroadcastEmptyBlockAttestation(EmptyBlockAttestation) error
}

// PhaseTimers configures how long PreProposal stays open, counted from
// entering it, before it may move on to aggregation (quorum of peer
// pre-proposals is required as well). BidAggregation
// itself is timed by WaitTrigger, not a fixed duration here.
type PhaseTimers struct {
	SettleWait time.Duration
}
