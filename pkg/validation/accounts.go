package validation

import (
	"sort"
	"sync"

	"github.com/angstrom-node/ucpnode/pkg/types"
)

// pendingEntry pairs a PendingUserAction with the order hash it came from,
// since PendingUserAction itself (spec §3) carries only the priority
// struct, not enough to key removal by hash cheaply.
type pendingEntry struct {
	hash   types.Hash
	action types.PendingUserAction
}

// UserAccounts tracks every user's pending actions against their baseline
// on-chain state, recomputing live balances lazily as higher-priority
// actions are admitted ahead of a given order (spec §4.E).
type UserAccounts struct {
	mu sync.RWMutex

	pending  map[types.Address][]pendingEntry
	baseline map[types.Address]*types.BaselineState
}

// NewUserAccounts returns an empty tracker.
func NewUserAccounts() *UserAccounts {
	return &UserAccounts{
		pending:  make(map[types.Address][]pendingEntry),
		baseline: make(map[types.Address]*types.BaselineState),
	}
}

// NewBlock drops all cached state for users whose balances may have moved
// on-chain, and removes any pending action for an order that landed in the
// block, for every user (spec §4.D/§4.E's new-block hook).
func (a *UserAccounts) NewBlock(touchedUsers []types.Address, filledOrders []types.Hash) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, u := range touchedUsers {
		delete(a.pending, u)
		delete(a.baseline, u)
	}

	filled := make(map[types.Hash]struct{}, len(filledOrders))
	for _, h := range filledOrders {
		filled[h] = struct{}{}
	}
	for user, entries := range a.pending {
		kept := entries[:0]
		for _, e := range entries {
			if _, isFilled := filled[e.hash]; !isFilled {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(a.pending, user)
		} else {
			a.pending[user] = kept
		}
	}
}

// CancelOrder removes a user's pending action for orderHash, reporting
// whether anything was removed.
func (a *UserAccounts) CancelOrder(user types.Address, orderHash types.Hash) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	entries, ok := a.pending[user]
	if !ok {
		return false
	}
	removed := false
	kept := entries[:0]
	for _, e := range entries {
		if e.hash == orderHash {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	a.pending[user] = kept
	return removed
}

// RespendConflicts returns a user's pending actions sharing the same
// respend-avoidance key. Block-based (flash/TOB) orders never conflict on
// respend since every flash order targets a single block by construction.
func (a *UserAccounts) RespendConflicts(user types.Address, respendKey uint64, isStanding bool) []types.PendingUserAction {
	if !isStanding {
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []types.PendingUserAction
	for _, e := range a.pending[user] {
		if e.action.Priority.Respend == respendKey {
			out = append(out, e.action)
		}
	}
	return out
}

// LoadStateFor refreshes a user's cached baseline for one token from the
// execution client, overwriting whatever was cached before.
func (a *UserAccounts) LoadStateFor(user, token types.Address, utils StateFetchUtils) error {
	approval, err := utils.FetchApprovalBalance(user, token)
	if err != nil {
		return err
	}
	balance, err := utils.FetchBalance(user, token)
	if err != nil {
		return err
	}
	angstrom, err := utils.FetchAngstromBalance(user, token)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.baseline[user]
	if !ok {
		b = types.NewBaselineState()
		a.baseline[user] = b
	}
	b.TokenApproval[token] = approval
	b.TokenBalance[token] = balance
	b.AngstromBalance[token] = angstrom
	return nil
}

// GetLiveStateForOrder returns the live state a candidate order should be
// checked against: baseline minus every strictly-higher-priority pending
// action already admitted for the same token. Loads baseline state on
// first use.
func (a *UserAccounts) GetLiveStateForOrder(user, token types.Address, priority types.OrderPriority, utils StateFetchUtils) (LiveState, error) {
	if live, ok := a.tryLiveState(user, token, priority); ok {
		return live, nil
	}
	if err := a.LoadStateFor(user, token, utils); err != nil {
		return LiveState{}, err
	}
	live, ok := a.tryLiveState(user, token, priority)
	if !ok {
		panic("validation: baseline state missing immediately after load")
	}
	return live, nil
}

func (a *UserAccounts) tryLiveState(user, token types.Address, priority types.OrderPriority) (LiveState, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	baseline, ok := a.baseline[user]
	if !ok {
		return LiveState{}, false
	}
	approval, hasApproval := baseline.TokenApproval[token]
	balance, hasBalance := baseline.TokenBalance[token]
	angstrom, hasAngstrom := baseline.AngstromBalance[token]
	if !hasApproval || !hasBalance || !hasAngstrom {
		return LiveState{}, false
	}

	var spentApproval, spentBalance, spentAngstrom int64
	for _, e := range a.pending[user] {
		if e.action.TokenAddress != token {
			continue
		}
		if !e.action.Priority.Less(priority) {
			continue
		}
		spentApproval -= e.action.TokenApproval
		spentBalance -= e.action.TokenDelta
		spentAngstrom -= e.action.AngstromDelta
	}

	return LiveState{
		Token:           token,
		Approval:        satSubI64(approval, spentApproval),
		Balance:         satSubI64(balance, spentBalance),
		AngstromBalance: satSubI64(angstrom, spentAngstrom),
	}, true
}

func satSubI64(base uint64, delta int64) uint64 {
	v := int64(base) - delta
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// InsertPendingUserAction admits an action into a user's priority-sorted
// pending list and returns the hashes of every order this invalidates:
// replaying the user's pending actions for its token from the top in
// priority order, every action from the first one that drives the running
// approval, balance or Angstrom balance negative onward, the new action and
// higher-priority ones included (spec §4.E step 6).
func (a *UserAccounts) InsertPendingUserAction(user types.Address, orderHash types.Hash, action types.PendingUserAction) []types.Hash {
	a.mu.Lock()
	defer a.mu.Unlock()

	entries := append(a.pending[user], pendingEntry{hash: orderHash, action: action})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].action.Priority.Less(entries[j].action.Priority)
	})
	a.pending[user] = entries

	return a.fetchInvalidatedOrdersLocked(user, action.TokenAddress)
}

func (a *UserAccounts) fetchInvalidatedOrdersLocked(user, token types.Address) []types.Hash {
	baseline, ok := a.baseline[user]
	if !ok {
		return nil
	}
	approval, ok1 := baseline.TokenApproval[token]
	balance, ok2 := baseline.TokenBalance[token]
	angstrom, ok3 := baseline.AngstromBalance[token]
	if !ok1 || !ok2 || !ok3 {
		return nil
	}

	runApproval, runBalance, runAngstrom := int64(approval), int64(balance), int64(angstrom)
	overflowed := false

	var bad []types.Hash
	for _, e := range a.pending[user] {
		if e.action.TokenAddress != token {
			continue
		}
		runApproval += e.action.TokenApproval
		runBalance += e.action.TokenDelta
		runAngstrom += e.action.AngstromDelta
		if runApproval < 0 || runBalance < 0 || runAngstrom < 0 {
			overflowed = true
		}
		if overflowed {
			bad = append(bad, e.hash)
		}
	}
	return bad
}
