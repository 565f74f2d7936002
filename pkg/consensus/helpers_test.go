package consensus

import (
	"github.com/angstrom-node/ucpnode/pkg/types"
)

type fakeSigner struct{ addr types.Address }

func (f fakeSigner) Address() types.Address        { return f.addr }
func (f fakeSigner) Sign(h []byte) ([]byte, error) { return append([]byte{}, h...), nil }

type fakeNet struct {
	preProposals []PreProposal
	aggregations []PreProposalAggregation
	proposals    []Proposal
	emptyBlocks  []EmptyBlockAttestation
}

func (n *fakeNet) BroadcastPreProposal(p PreProposal) error {
	n.preProposals = append(n.preProposals, p)
	return nil
}

func (n *fakeNet) BroadcastPreProposalAggregation(a PreProposalAggregation) error {
	n.aggregations = append(n.aggregations, a)
	return nil
}

func (n *fakeNet) BroadcastProposal(p Proposal) error {
	n.proposals = append(n.proposals, p)
	return nil
}

func (n *fakeNet) BroadcastEmptyBlockAttestation(e EmptyBlockAttestation) error {
	n.emptyBlocks = append(n.emptyBlocks, e)
	return nil
}

type fakeApp struct {
	limit, searcher     []types.Hash
	payload             []byte
	finalizeErr         error
	seenLimit, seenSrch []types.Hash
	submittedHeights    []types.BlockNumber
	submittedPayloads   [][]byte
}

func (a *fakeApp) BuildOrderView(types.BlockNumber) (limit, searcher []types.Hash) {
	return a.limit, a.searcher
}

func (a *fakeApp) Finalize(_ types.BlockNumber, limit, searcher []types.Hash) ([]byte, error) {
	a.seenLimit, a.seenSrch = limit, searcher
	return a.payload, a.finalizeErr
}

func (a *fakeApp) Submit(height types.BlockNumber, payload []byte) error {
	a.submittedHeights = append(a.submittedHeights, height)
	a.submittedPayloads = append(a.submittedPayloads, payload)
	return nil
}

func addrOf(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func hashOf(b byte) types.Hash {
	var h types.Hash
	h[31] = b
	return h
}
