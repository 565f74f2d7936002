package consensus

import "time"

// WaitTrigger times how long BidAggregation waits before cutting a
// PreProposal. It decays toward Min whenever the previous round's leader
// never reached submission, standing in for the original's
// PreProposalWaitTrigger whose own submodule file isn't present in this
// retrieval pack — the decay policy below is read off spec.md's own
// description of the timer ("decays toward target submission slot" /
// "decay the wait-trigger if this node was leader and never reached
// submission") rather than ported line-for-line from Rust.
type WaitTrigger struct {
	Min, Max time.Duration
	current  time.Duration
}

// NewWaitTrigger starts the timer at Max: the first round in a fresh
// process gives peers the most generous window to submit orders.
func NewWaitTrigger(min, max time.Duration) *WaitTrigger {
	return &WaitTrigger{Min: min, Max: max, current: max}
}

// DurationForNewRound returns the wait duration the next round's
// BidAggregation phase should use, applying decay from the prior round's
// outcome first.
func (w *WaitTrigger) DurationForNewRound(prior *LastRoundInfo) time.Duration {
	if prior != nil && prior.WasLeader && !prior.ReachedSubmission {
		w.current = w.current / 2
		if w.current < w.Min {
			w.current = w.Min
		}
	}
	return w.current
}

// ResetBeforeSubmission restores the timer to its maximum once a round
// this node led reaches submission, so a single missed slot doesn't
// permanently shorten every future round.
func (w *WaitTrigger) ResetBeforeSubmission() {
	w.current = w.Max
}
