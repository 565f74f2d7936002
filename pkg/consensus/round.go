package consensus

import (
	"fmt"
	"time"

	"github.com/angstrom-node/ucpnode/pkg/types"
)

// isValidator mirrors handle_proposal_verification's first check: reject
// anything from a peer outside the validator set before looking at content.
func isValidator(validators []types.Address, addr types.Address) bool {
	for _, v := range validators {
		if v == addr {
			return true
		}
	}
	return false
}

// Round drives one block height through BidAggregation, PreProposal,
// PreProposalAggregation and Proposal/Finalization. It replaces the
// teacher's chained-certificate Engine/Safety pair: there is no fork
// choice, no 2-chain commit rule and no view-change — a round either
// finishes with a Proposal/EmptyBlockAttestation or it is abandoned when
// Engine.StartRound replaces it, and nothing about it survives into the next height except
// the wait trigger's own timing feedback.
type Round struct {
	Height     types.BlockNumber
	Leader     types.Address
	Self       types.Address
	Validators []types.Address

	Phase      Phase
	bidAggEnd  time.Time
	settleEnd  time.Time
	settleWait time.Duration

	preProposals map[types.Address]PreProposal
	aggregations map[types.Address]PreProposalAggregation
	proposal     *Proposal
	emptyBlock   *EmptyBlockAttestation
	submitted    bool

	app    AppHook
	net    Network
	signer Signer
}

// NewRound starts a fresh BidAggregation phase. bidAggWait comes from the
// caller's WaitTrigger, already decayed/reset for this round.
func NewRound(height types.BlockNumber, leader, self types.Address, validators []types.Address, app AppHook, net Network, signer Signer, timers PhaseTimers, bidAggWait time.Duration, now time.Time) *Round {
	return &Round{
		Height:       height,
		Leader:       leader,
		Self:         self,
		Validators:   validators,
		Phase:        PhaseBidAggregation,
		bidAggEnd:    now.Add(bidAggWait),
		settleWait:   timers.SettleWait,
		preProposals: make(map[types.Address]PreProposal),
		aggregations: make(map[types.Address]PreProposalAggregation),
		app:          app,
		net:          net,
		signer:       signer,
	}
}

func (r *Round) quorum() int { return quorumThreshold(len(r.Validators)) }

func (r *Round) iAmLeader() bool { return r.Self == r.Leader }

// Done reports whether the round has reached a terminal state: either this
// node saw (or produced) a Proposal/EmptyBlockAttestation and handed it to
// AppHook.Submit.
func (r *Round) Done() bool { return r.submitted }

// LastRoundInfo reports how this round ended, for the next round's
// WaitTrigger to react to.
func (r *Round) LastRoundInfo() LastRoundInfo {
	return LastRoundInfo{ReachedSubmission: r.submitted, WasLeader: r.iAmLeader()}
}

// HandleMessage accepts an inbound ConsensusMessage, discarding anything
// for a different height (spec: "all consensus messages carry target block
// height; messages for other heights discarded") and anything from a
// non-validator, then storing the first copy received from each sender —
// duplicates are silently dropped, the same as handle_proposal_verification's
// dedup-by-insert-if-absent pattern. Messages are accepted regardless of
// the round's current phase: network delivery isn't synchronized with
// local phase transitions, so an early PreProposal arriving before this
// node leaves BidAggregation is still recorded rather than lost.
func (r *Round) HandleMessage(msg ConsensusMessage) {
	height, ok := msg.Height()
	if !ok || height != r.Height {
		return
	}

	switch {
	case msg.PreProposal != nil:
		p := *msg.PreProposal
		if !isValidator(r.Validators, p.Validator) {
			return
		}
		if _, dup := r.preProposals[p.Validator]; dup {
			return
		}
		r.preProposals[p.Validator] = p

	case msg.PreProposalAggregation != nil:
		a := *msg.PreProposalAggregation
		if !isValidator(r.Validators, a.Validator) {
			return
		}
		if _, dup := r.aggregations[a.Validator]; dup {
			return
		}
		r.aggregations[a.Validator] = a

	case msg.Proposal != nil:
		p := *msg.Proposal
		if p.Leader != r.Leader || !isValidator(r.Validators, p.Leader) {
			return
		}
		if r.proposal == nil && r.emptyBlock == nil {
			r.proposal = &p
		}

	case msg.EmptyBlockAttestation != nil:
		e := *msg.EmptyBlockAttestation
		if e.Leader != r.Leader || !isValidator(r.Validators, e.Leader) {
			return
		}
		if r.proposal == nil && r.emptyBlock == nil {
			r.emptyBlock = &e
		}
	}
}

// Tick advances the round's phase if its current phase's exit condition is
// met, given the current wall-clock time. It is safe to call repeatedly;
// only the first call past an exit condition does anything.
func (r *Round) Tick(now time.Time) error {
	// A valid Proposal or EmptyBlockAttestation already received (from
	// HandleMessage) short-circuits phase progression straight to
	// Finalization: a follower's own local phase timers don't gate
	// accepting the leader's authoritative word that the round is over.
	if r.proposal != nil || r.emptyBlock != nil {
		r.Phase = PhaseProposalFinalization
		return r.tryFinalize(now)
	}

	switch r.Phase {
	case PhaseBidAggregation:
		if !now.Before(r.bidAggEnd) {
			return r.enterPreProposal(now)
		}

	case PhasePreProposal:
		if len(r.preProposals) >= r.quorum() && !now.Before(r.settleEnd) {
			return r.enterPreProposalAggregation()
		}

	case PhasePreProposalAggregation:
		if len(r.aggregations) >= r.quorum() {
			return r.enterFinalization(now)
		}

	case PhaseProposalFinalization:
		return r.tryFinalize(now)
	}

	return nil
}

func (r *Round) enterPreProposal(now time.Time) error {
	limit, searcher := r.app.BuildOrderView(r.Height)
	own := PreProposal{Height: r.Height, Validator: r.Self, LimitOrders: limit, SearcherOrders: searcher}
	if err := signPreProposal(r.signer, &own); err != nil {
		return fmt.Errorf("consensus: sign pre-proposal: %w", err)
	}

	r.preProposals[r.Self] = own
	r.Phase = PhasePreProposal
	r.settleEnd = now.Add(r.settleWait)

	return r.net.BroadcastPreProposal(own)
}

func (r *Round) enterPreProposalAggregation() error {
	all := make([]PreProposal, 0, len(r.preProposals))
	for _, p := range r.preProposals {
		all = append(all, p)
	}

	own := PreProposalAggregation{Height: r.Height, Validator: r.Self, PreProposals: all}
	if err := signAggregation(r.signer, &own); err != nil {
		return fmt.Errorf("consensus: sign pre-proposal aggregation: %w", err)
	}

	r.aggregations[r.Self] = own
	r.Phase = PhasePreProposalAggregation

	return r.net.BroadcastPreProposalAggregation(own)
}

func (r *Round) enterFinalization(now time.Time) error {
	r.Phase = PhaseProposalFinalization
	return r.tryFinalize(now)
}

// tryFinalize does the leader's work (filter quorum orders, call Finalize,
// broadcast a Proposal or EmptyBlockAttestation) the first time it's
// reached, then on every call (leader or follower) checks whether a final
// message has arrived to submit.
func (r *Round) tryFinalize(now time.Time) error {
	if r.iAmLeader() && r.proposal == nil && r.emptyBlock == nil {
		agg := make([]PreProposalAggregation, 0, len(r.aggregations))
		for _, a := range r.aggregations {
			agg = append(agg, a)
		}
		threshold := r.quorum()
		limit := filterQuorumOrders(agg, threshold, func(p PreProposal) []types.Hash { return p.LimitOrders })
		searcher := filterQuorumOrders(agg, threshold, func(p PreProposal) []types.Hash { return p.SearcherOrders })

		payload, err := r.app.Finalize(r.Height, limit, searcher)
		if err != nil {
			return fmt.Errorf("consensus: finalize: %w", err)
		}

		if payload == nil {
			e := EmptyBlockAttestation{Height: r.Height, Leader: r.Self}
			if err := signEmptyBlock(r.signer, &e); err != nil {
				return fmt.Errorf("consensus: sign empty-block attestation: %w", err)
			}
			r.emptyBlock = &e
			if err := r.net.BroadcastEmptyBlockAttestation(e); err != nil {
				return err
			}
		} else {
			p := Proposal{Height: r.Height, Leader: r.Self, Payload: payload}
			if err := signProposal(r.signer, &p); err != nil {
				return fmt.Errorf("consensus: sign proposal: %w", err)
			}
			r.proposal = &p
			if err := r.net.BroadcastProposal(p); err != nil {
				return err
			}
		}
	}

	if r.submitted {
		return nil
	}

	switch {
	case r.proposal != nil:
		if err := r.app.Submit(r.Height, r.proposal.Payload); err != nil {
			return fmt.Errorf("consensus: submit proposal: %w", err)
		}
		r.submitted = true
	case r.emptyBlock != nil:
		if err := r.app.Submit(r.Height, nil); err != nil {
			return fmt.Errorf("consensus: submit empty block: %w", err)
		}
		r.submitted = true
	}

	return nil
}
