package consensus

import "github.com/angstrom-node/ucpnode/pkg/types"

// PreProposal is a validator's own view of the block's limit and searcher
// orders, signed and broadcast at the end of BidAggregation.
type PreProposal struct {
	Height         types.BlockNumber
	Validator      types.Address
	LimitOrders    []types.Hash
	SearcherOrders []types.Hash
	Signature      []byte
}

func (p PreProposal) signingPayload() []byte {
	return preProposalPayload(p.Height, p.Validator, p.LimitOrders, p.SearcherOrders)
}

// PreProposalAggregation bundles every PreProposal a validator had collected
// by the time its own settle timer elapsed, signed and broadcast at the end
// of PreProposal.
type PreProposalAggregation struct {
	Height       types.BlockNumber
	Validator    types.Address
	PreProposals []PreProposal
	Signature    []byte
}

func (a PreProposalAggregation) signingPayload() []byte {
	return aggregationPayload(a.Height, a.Validator, a.PreProposals)
}

// Proposal is the round leader's final settlement bundle for the height,
// built from the orders that reached quorum across every collected
// aggregation.
type Proposal struct {
	Height    types.BlockNumber
	Leader    types.Address
	Payload   []byte
	Signature []byte
}

func (p Proposal) signingPayload() []byte {
	return proposalPayload(p.Height, p.Leader, p.Payload)
}

// EmptyBlockAttestation is what the leader signs and broadcasts instead of a
// Proposal when no pool has a quorum order to settle, or the matcher
// returns nothing worth proposing for any pool. Followers accept it in
// place of a Proposal — the round still reaches Finalization, just with no
// bundle to submit.
type EmptyBlockAttestation struct {
	Height    types.BlockNumber
	Leader    types.Address
	Signature []byte
}

func (e EmptyBlockAttestation) signingPayload() []byte {
	return emptyBlockPayload(e.Height, e.Leader)
}

// ConsensusMessage is the tagged union of everything a round's message
// queue carries, mirroring the original's ConsensusMessage enum
// (PropagatePreProposal / PropagatePreProposalAgg / PropagateProposal /
// PropagateEmptyBlockAttestation) with constructors standing in for its
// From<T> conversions.
type ConsensusMessage struct {
	PreProposal            *PreProposal
	PreProposalAggregation *PreProposalAggregation
	Proposal               *Proposal
	EmptyBlockAttestation  *EmptyBlockAttestation
}

func PropagatePreProposal(p PreProposal) ConsensusMessage {
	return ConsensusMessage{PreProposal: &p}
}

func PropagatePreProposalAgg(a PreProposalAggregation) ConsensusMessage {
	return ConsensusMessage{PreProposalAggregation: &a}
}

func PropagateProposal(p Proposal) ConsensusMessage {
	return ConsensusMessage{Proposal: &p}
}

func PropagateEmptyBlockAttestation(e EmptyBlockAttestation) ConsensusMessage {
	return ConsensusMessage{EmptyBlockAttestation: &e}
}

// Height returns the target block height of whichever message variant is
// set, used to discard messages for a height other than the round's own.
func (m ConsensusMessage) Height() (types.BlockNumber, bool) {
	switch {
	case m.PreProposal != nil:
		return m.PreProposal.Height, true
	case m.PreProposalAggregation != nil:
		return m.PreProposalAggregation.Height, true
	case m.Proposal != nil:
		return m.Proposal.Height, true
	case m.EmptyBlockAttestation != nil:
		return m.EmptyBlockAttestation.Height, true
	default:
		return 0, false
	}
}
