package types

// GlobalBlockStateKind tags the barrier's proposal variants (spec §3, §4.C).
type GlobalBlockStateKind uint8

const (
	BlockStateProcessing GlobalBlockStateKind = iota
	BlockStatePendingProgression
	BlockStatePendingReorg
)

// GlobalBlockState is one queued proposal the block-sync barrier is
// advancing every registered module through.
type GlobalBlockState struct {
	Kind GlobalBlockStateKind

	// Block is valid for Processing and PendingProgression.
	Block BlockNumber

	// ReorgFrom/ReorgTo are valid for PendingReorg, inclusive range.
	ReorgFrom BlockNumber
	ReorgTo   BlockNumber
}

// NewBlockState builds a PendingProgression proposal for block n.
func NewBlockState(n BlockNumber) GlobalBlockState {
	return GlobalBlockState{Kind: BlockStatePendingProgression, Block: n}
}

// ReorgState builds a PendingReorg proposal for the inclusive range [a,b].
func ReorgState(a, b BlockNumber) GlobalBlockState {
	return GlobalBlockState{Kind: BlockStatePendingReorg, ReorgFrom: a, ReorgTo: b}
}

// Equal reports whether two proposals target the same head transition.
func (s GlobalBlockState) Equal(o GlobalBlockState) bool {
	if s.Kind != o.Kind {
		return false
	}
	switch s.Kind {
	case BlockStatePendingReorg:
		return s.ReorgFrom == o.ReorgFrom && s.ReorgTo == o.ReorgTo
	default:
		return s.Block == o.Block
	}
}

// BaselineState is a per-user cached view of on-chain balance/approval
// state, refreshed lazily and amortized across the actions pending
// against it (spec §3, §4.E).
type BaselineState struct {
	TokenApproval map[Address]uint64
	TokenBalance  map[Address]uint64
	AngstromBalance map[Address]uint64
}

// NewBaselineState returns an empty baseline ready for lazy population.
func NewBaselineState() *BaselineState {
	return &BaselineState{
		TokenApproval:   make(map[Address]uint64),
		TokenBalance:    make(map[Address]uint64),
		AngstromBalance: make(map[Address]uint64),
	}
}

// RoundPhase tags the consensus state machine's four sequential phases
// (spec §4.H).
type RoundPhase uint8

const (
	PhaseBidAggregation RoundPhase = iota
	PhasePreProposal
	PhasePreProposalAggregation
	PhaseProposalFinalization
)

func (p RoundPhase) String() string {
	switch p {
	case PhaseBidAggregation:
		return "BidAggregation"
	case PhasePreProposal:
		return "PreProposal"
	case PhasePreProposalAggregation:
		return "PreProposalAggregation"
	case PhaseProposalFinalization:
		return "ProposalFinalization"
	default:
		return "Unknown"
	}
}
