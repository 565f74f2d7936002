// Package blocksync implements the block-sync barrier: a coordinator that
// advances every registered module's view of the chain head in lockstep,
// refusing to move the global block number until all modules have signed
// off on the pending block (or reorg). Misuse — signing off on a proposal
// that doesn't exist, or on the wrong one — is a programming error in a
// registered module and panics rather than returning an error, matching the
// barrier's role as a correctness invariant rather than a recoverable
// runtime condition (spec §4.C).
package blocksync

import (
	"fmt"
	"sync"

	"github.com/angstrom-node/ucpnode/pkg/types"
)

// SignOffKind tags which kind of transition a module has signed off on.
type SignOffKind uint8

const (
	signOffReadyForNextBlock SignOffKind = iota
	signOffHandledReorg
)

type signOff struct {
	kind  SignOffKind
	waker func()
}

// Barrier is the global block-sync coordinator. A single instance is shared
// across every block-sensitive module in the node.
type Barrier struct {
	mu sync.Mutex

	pending []types.GlobalBlockState
	block   types.BlockNumber

	modules   map[string][]signOff
	finalized bool
}

// NewBarrier starts the barrier at the given current block number, with no
// modules registered and no pending proposal.
func NewBarrier(block types.BlockNumber) *Barrier {
	return &Barrier{
		block:   block,
		modules: make(map[string][]signOff),
	}
}

// Register adds a module to the set that must sign off on every proposal
// before the barrier advances. Once FinalizeModules has been called,
// further registrations are silently dropped to avoid a race between a
// late-joining module and an in-flight sign-off round.
func (b *Barrier) Register(module string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.finalized {
		return
	}
	if _, exists := b.modules[module]; exists {
		panic(fmt.Sprintf("blocksync: module %q registered twice", module))
	}
	b.modules[module] = nil
}

// FinalizeModules closes the registered-module set. Called once, after
// every module constructor has had a chance to register, typically right
// before the node starts processing blocks.
func (b *Barrier) FinalizeModules() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finalized = true
}

// Clear drops any pending proposal, used when resetting state in tests or
// after a hard restart.
func (b *Barrier) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = nil
}

// SetBlock overrides the current block number directly, bypassing sign-off
// (used only at startup, to seed the barrier from persisted state).
func (b *Barrier) SetBlock(n types.BlockNumber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.block = n
}

// NewBlock queues a new-block proposal. A duplicate trailing proposal for
// the same block number is a no-op.
func (b *Barrier) NewBlock(n types.BlockNumber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	proposal := types.NewBlockState(n)
	if len(b.pending) > 0 && b.pending[len(b.pending)-1].Equal(proposal) {
		return
	}
	b.pending = append(b.pending, proposal)
}

// Reorg queues a reorg proposal covering the inclusive block range [from, to].
func (b *Barrier) Reorg(from, to types.BlockNumber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, types.ReorgState(from, to))
}

// CanOperate reports whether the barrier has no pending proposal, i.e.
// modules are free to process new work against the current block.
func (b *Barrier) CanOperate() bool { return !b.HasProposal() }

// HasProposal reports whether a proposal is awaiting sign-off.
func (b *Barrier) HasProposal() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending) > 0
}

// CurrentBlockNumber returns the barrier's current, fully-signed-off block.
func (b *Barrier) CurrentBlockNumber() types.BlockNumber {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.block
}

// FetchCurrentProposal returns the head-of-queue proposal, if any.
func (b *Barrier) FetchCurrentProposal() (types.GlobalBlockState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return types.GlobalBlockState{}, false
	}
	return b.pending[0], true
}

func (b *Barrier) properProposal(proposal types.GlobalBlockState) bool {
	for _, p := range b.pending {
		if p.Equal(proposal) {
			return true
		}
	}
	return false
}

// SignOffOnBlock records that module has finished handling the pending
// new-block proposal for n. waker, if non-nil, is invoked once this was the
// last module needed to complete the transition — the caller's typical use
// is to resume a parked goroutine waiting on CanOperate. Signing off on a
// proposal that does not exist, or the wrong block number, is a programming
// error and panics.
func (b *Barrier) SignOffOnBlock(module string, n types.BlockNumber, waker func()) {
	b.mu.Lock()

	if len(b.pending) == 0 {
		b.mu.Unlock()
		panic(fmt.Sprintf("blocksync: %s tried to sign off on a proposal that didn't exist", module))
	}
	proposal := types.NewBlockState(n)
	if !b.properProposal(proposal) {
		b.mu.Unlock()
		panic(fmt.Sprintf("blocksync: %s tried to sign off on an incorrect proposal: wanted %+v, pending %+v", module, proposal, b.pending))
	}

	b.recordSignOff(module, signOff{kind: signOffReadyForNextBlock, waker: waker})
	wakers := b.maybeAdvance(signOffReadyForNextBlock)

	b.mu.Unlock()

	for _, w := range wakers {
		if w != nil {
			w()
		}
	}
}

// SignOffReorg records that module has finished handling the pending reorg
// proposal covering [from, to].
func (b *Barrier) SignOffReorg(module string, from, to types.BlockNumber, waker func()) {
	b.mu.Lock()

	if len(b.pending) == 0 {
		b.mu.Unlock()
		panic(fmt.Sprintf("blocksync: %s tried to sign off on a proposal that didn't exist", module))
	}
	proposal := types.ReorgState(from, to)
	if !b.properProposal(proposal) {
		b.mu.Unlock()
		panic(fmt.Sprintf("blocksync: %s tried to sign off on an incorrect reorg proposal: wanted %+v, pending %+v", module, proposal, b.pending))
	}

	b.recordSignOff(module, signOff{kind: signOffHandledReorg, waker: waker})
	wakers := b.maybeAdvance(signOffHandledReorg)

	b.mu.Unlock()

	for _, w := range wakers {
		if w != nil {
			w()
		}
	}
}

func (b *Barrier) recordSignOff(module string, s signOff) {
	queue, ok := b.modules[module]
	if !ok {
		panic(fmt.Sprintf("blocksync: %q signed off but was never registered", module))
	}
	b.modules[module] = append(queue, s)
}

// maybeAdvance checks whether every registered module's sign-off queue now
// has kind at its head; if so the head-of-queue proposal is applied to the
// current block number and every module's queue is popped. It returns the
// wakers to invoke, deferred to the caller so they run with the barrier's
// lock released.
func (b *Barrier) maybeAdvance(kind SignOffKind) []func() {
	ready := true
	for _, queue := range b.modules {
		if len(queue) == 0 || queue[0].kind != kind {
			ready = false
			break
		}
	}
	if !ready {
		return nil
	}

	if len(b.pending) == 0 {
		// Lost the race with a concurrent advance; nothing to do.
		return nil
	}
	proposal := b.pending[0]
	b.pending = b.pending[1:]

	if proposal.Kind == types.BlockStatePendingProgression {
		b.block = proposal.Block
	}

	wakers := make([]func(), 0, len(b.modules))
	for name, queue := range b.modules {
		wakers = append(wakers, queue[0].waker)
		b.modules[name] = queue[1:]
	}
	return wakers
}
