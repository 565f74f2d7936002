package consensus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/angstrom-node/ucpnode/pkg/types"
	"github.com/angstrom-node/ucpnode/pkg/util"
)

// Engine drives a sequence of Rounds, one per block height, polling the
// current round's Tick on its clock and dispatching inbound
// ConsensusMessages delivered via Deliver. There is no view-change and no
// chained certificate to carry forward — each height's round starts clean,
// the way spec §4.H describes, with only the WaitTrigger's decay state
// surviving a ResetRound call.
type Engine struct {
	Self       types.Address
	Validators []types.Address
	Elector    LeaderElector
	App        AppHook
	Net        Network
	Signer     Signer
	Timers     PhaseTimers
	Wait       *WaitTrigger
	Clock      util.Clock

	Logger         *zap.SugaredLogger
	VerboseLogging bool

	mu       sync.Mutex
	round    *Round
	lastInfo *LastRoundInfo
}

func NewEngine(self types.Address, validators []types.Address, elector LeaderElector, app AppHook, net Network, signer Signer, timers PhaseTimers, wait *WaitTrigger, clock util.Clock) *Engine {
	return &Engine{
		Self:       self,
		Validators: validators,
		Elector:    elector,
		App:        app,
		Net:        net,
		Signer:     signer,
		Timers:     timers,
		Wait:       wait,
		Clock:      clock,
	}
}

// StartRound begins a fresh round at height, decaying/resetting the wait
// trigger from however the previous round (if any) ended.
func (e *Engine) StartRound(height types.BlockNumber) {
	e.mu.Lock()
	defer e.mu.Unlock()

	leader := e.Elector.LeaderOf(height)
	bidAggWait := e.Wait.DurationForNewRound(e.lastInfo)
	now := e.Clock.Now()

	e.round = NewRound(height, leader, e.Self, e.Validators, e.App, e.Net, e.Signer, e.Timers, bidAggWait, now)
	e.lastInfo = nil

	if e.Logger != nil && e.VerboseLogging {
		e.Logger.Infow("round_start", "height", height, "leader", leader, "is_leader", leader == e.Self, "bid_agg_wait", bidAggWait)
	}
}

// Deliver hands an inbound message to the current round, if any.
func (e *Engine) Deliver(msg ConsensusMessage) {
	e.mu.Lock()
	r := e.round
	e.mu.Unlock()
	if r != nil {
		r.HandleMessage(msg)
	}
}

// tick advances the current round and, once it finishes, records its
// LastRoundInfo for the next StartRound to consult. Returns the finished
// round's height when a round completes this tick, or ok=false otherwise.
func (e *Engine) tick(now time.Time) (height types.BlockNumber, ok bool, err error) {
	e.mu.Lock()
	r := e.round
	e.mu.Unlock()
	if r == nil {
		return 0, false, nil
	}

	if err := r.Tick(now); err != nil {
		return 0, false, err
	}

	if !r.Done() {
		return 0, false, nil
	}

	e.mu.Lock()
	info := r.LastRoundInfo()
	e.lastInfo = &info
	if info.WasLeader && info.ReachedSubmission {
		e.Wait.ResetBeforeSubmission()
	}
	finishedHeight := r.Height
	e.mu.Unlock()

	if e.Logger != nil {
		e.Logger.Infow("round_done", "height", finishedHeight, "reached_submission", info.ReachedSubmission, "was_leader", info.WasLeader)
	}

	return finishedHeight, true, nil
}

// Run polls the current round on pollInterval until ctx is cancelled,
// calling nextHeight(h) to learn what height to start next whenever a round
// completes (nextHeight usually just returns h+1, but is left to the
// caller so block-sync can gate advancement on its own barrier).
func (e *Engine) Run(ctx context.Context, pollInterval time.Duration, nextHeight func(finished types.BlockNumber) types.BlockNumber) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.Clock.After(pollInterval):
		}

		finished, done, err := e.tick(e.Clock.Now())
		if err != nil {
			return fmt.Errorf("consensus: round tick: %w", err)
		}
		if done {
			e.StartRound(nextHeight(finished))
		}
	}
}
