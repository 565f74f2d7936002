package validation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angstrom-node/ucpnode/pkg/types"
)

type stubFetcher struct {
	approval map[types.Address]uint64
	balance  map[types.Address]uint64
	angstrom map[types.Address]uint64
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		approval: make(map[types.Address]uint64),
		balance:  make(map[types.Address]uint64),
		angstrom: make(map[types.Address]uint64),
	}
}

func (s *stubFetcher) FetchApprovalBalance(user, token types.Address) (uint64, error) {
	return s.approval[token], nil
}

func (s *stubFetcher) FetchBalance(user, token types.Address) (uint64, error) {
	return s.balance[token], nil
}

func (s *stubFetcher) FetchAngstromBalance(user, token types.Address) (uint64, error) {
	return s.angstrom[token], nil
}

func priorityFor(h types.Hash, respend uint64) types.OrderPriority {
	return types.OrderPriority{Hash: h, Respend: respend}
}

func TestGetLiveStateForOrderLoadsBaselineOnce(t *testing.T) {
	accts := NewUserAccounts()
	fetch := newStubFetcher()
	fetch.balance[addr(1)] = 1000
	fetch.approval[addr(1)] = 1000

	user := addr(9)
	live, err := accts.GetLiveStateForOrder(user, addr(1), priorityFor(hashOf(1), 0), fetch)
	require.NoError(t, err)
	require.EqualValues(t, 1000, live.Balance)
	require.EqualValues(t, 1000, live.Approval)

	// Mutate the stub; cached baseline should not change until NewBlock.
	fetch.balance[addr(1)] = 0
	live, err = accts.GetLiveStateForOrder(user, addr(1), priorityFor(hashOf(2), 0), fetch)
	require.NoError(t, err)
	require.EqualValues(t, 1000, live.Balance)
}

func TestGetLiveStateForOrderNetsOutHigherPriorityPendingActions(t *testing.T) {
	accts := NewUserAccounts()
	fetch := newStubFetcher()
	fetch.balance[addr(1)] = 1000
	fetch.approval[addr(1)] = 1000
	user := addr(9)

	_, err := accts.GetLiveStateForOrder(user, addr(1), priorityFor(hashOf(1), 10), fetch)
	require.NoError(t, err)

	high := types.PendingUserAction{
		Priority:      types.OrderPriority{Hash: hashOf(1), IsTOB: true},
		TokenAddress:  addr(1),
		TokenDelta:    -300,
		TokenApproval: -300,
	}
	accts.InsertPendingUserAction(user, hashOf(1), high)

	live, err := accts.GetLiveStateForOrder(user, addr(1), priorityFor(hashOf(2), 10), fetch)
	require.NoError(t, err)
	require.EqualValues(t, 700, live.Balance)
	require.EqualValues(t, 700, live.Approval)
}

func TestGetLiveStateForOrderIgnoresLowerOrEqualPriorityActions(t *testing.T) {
	accts := NewUserAccounts()
	fetch := newStubFetcher()
	fetch.balance[addr(1)] = 1000
	fetch.approval[addr(1)] = 1000
	user := addr(9)

	_, err := accts.GetLiveStateForOrder(user, addr(1), priorityFor(hashOf(1), 0), fetch)
	require.NoError(t, err)

	low := types.PendingUserAction{
		Priority:      types.OrderPriority{Hash: hashOf(9)},
		TokenAddress:  addr(1),
		TokenDelta:    -300,
		TokenApproval: -300,
	}
	accts.InsertPendingUserAction(user, hashOf(9), low)

	// hashOf(1) < hashOf(9), so this order outranks the pending one.
	live, err := accts.GetLiveStateForOrder(user, addr(1), priorityFor(hashOf(1), 0), fetch)
	require.NoError(t, err)
	require.EqualValues(t, 1000, live.Balance)
}

func TestCancelOrderRemovesPendingAction(t *testing.T) {
	accts := NewUserAccounts()
	user := addr(9)
	accts.InsertPendingUserAction(user, hashOf(1), types.PendingUserAction{TokenAddress: addr(1)})

	require.True(t, accts.CancelOrder(user, hashOf(1)))
	require.False(t, accts.CancelOrder(user, hashOf(1)))
}

func TestCancelOrderOnUnknownUserReturnsFalse(t *testing.T) {
	accts := NewUserAccounts()
	require.False(t, accts.CancelOrder(addr(9), hashOf(1)))
}

func TestRespendConflictsOnlyForStandingOrders(t *testing.T) {
	accts := NewUserAccounts()
	user := addr(9)
	accts.InsertPendingUserAction(user, hashOf(1), types.PendingUserAction{
		Priority:     types.OrderPriority{Hash: hashOf(1), Respend: 5},
		TokenAddress: addr(1),
	})

	require.Empty(t, accts.RespendConflicts(user, 5, false))
	conflicts := accts.RespendConflicts(user, 5, true)
	require.Len(t, conflicts, 1)
}

func TestNewBlockDropsCachedStateAndFilledOrders(t *testing.T) {
	accts := NewUserAccounts()
	fetch := newStubFetcher()
	fetch.balance[addr(1)] = 1000
	fetch.approval[addr(1)] = 1000
	user := addr(9)

	_, err := accts.GetLiveStateForOrder(user, addr(1), priorityFor(hashOf(1), 0), fetch)
	require.NoError(t, err)
	accts.InsertPendingUserAction(user, hashOf(2), types.PendingUserAction{TokenAddress: addr(1)})

	accts.NewBlock([]types.Address{user}, nil)

	_, ok := accts.baseline[user]
	require.False(t, ok)
	_, ok = accts.pending[user]
	require.False(t, ok)
}

func TestNewBlockRemovesOnlyFilledOrdersPendingAction(t *testing.T) {
	accts := NewUserAccounts()
	user := addr(9)
	accts.InsertPendingUserAction(user, hashOf(1), types.PendingUserAction{TokenAddress: addr(1)})
	accts.InsertPendingUserAction(user, hashOf(2), types.PendingUserAction{TokenAddress: addr(1)})

	accts.NewBlock(nil, []types.Hash{hashOf(1)})

	entries := accts.pending[user]
	require.Len(t, entries, 1)
	require.Equal(t, hashOf(2), entries[0].hash)
}

func TestInsertPendingUserActionInvalidatesOverdrawnLowerPriorityOrders(t *testing.T) {
	accts := NewUserAccounts()
	fetch := newStubFetcher()
	fetch.balance[addr(1)] = 100
	fetch.approval[addr(1)] = 100
	user := addr(9)
	require.NoError(t, accts.LoadStateFor(user, addr(1), fetch))

	// Lower-priority order spends 80.
	lowPriority := types.PendingUserAction{
		Priority:      types.OrderPriority{Hash: hashOf(9)},
		TokenAddress:  addr(1),
		TokenDelta:    -80,
		TokenApproval: -80,
	}
	bad := accts.InsertPendingUserAction(user, hashOf(9), lowPriority)
	require.Empty(t, bad)

	// Higher-priority TOB order spends 50, pushing the running total negative
	// once the lower-priority order is also applied.
	highPriority := types.PendingUserAction{
		Priority:      types.OrderPriority{Hash: hashOf(1), IsTOB: true},
		TokenAddress:  addr(1),
		TokenDelta:    -50,
		TokenApproval: -50,
	}
	bad = accts.InsertPendingUserAction(user, hashOf(1), highPriority)
	require.Equal(t, []types.Hash{hashOf(9)}, bad)
}

func TestInsertPendingUserActionWithNoBaselineReturnsNoInvalidations(t *testing.T) {
	accts := NewUserAccounts()
	user := addr(9)
	bad := accts.InsertPendingUserAction(user, hashOf(1), types.PendingUserAction{TokenAddress: addr(1)})
	require.Empty(t, bad)
}

func TestInsertPendingUserActionStickyOverflowMarksEveryFollowingAction(t *testing.T) {
	accts := NewUserAccounts()
	fetch := newStubFetcher()
	fetch.balance[addr(1)] = 50
	fetch.approval[addr(1)] = 50
	user := addr(9)
	require.NoError(t, accts.LoadStateFor(user, addr(1), fetch))

	first := types.PendingUserAction{
		Priority: types.OrderPriority{Hash: hashOf(1), IsTOB: true}, TokenAddress: addr(1),
		TokenDelta: -40, TokenApproval: -40,
	}
	accts.InsertPendingUserAction(user, hashOf(1), first)

	second := types.PendingUserAction{
		Priority: types.OrderPriority{Hash: hashOf(2), IsTOB: true}, TokenAddress: addr(1),
		TokenDelta: -40, TokenApproval: -40,
	}
	bad := accts.InsertPendingUserAction(user, hashOf(2), second)
	require.Contains(t, bad, hashOf(2))

	third := types.PendingUserAction{
		Priority: types.OrderPriority{Hash: hashOf(3)}, TokenAddress: addr(1),
		TokenDelta: 0, TokenApproval: 0,
	}
	bad = accts.InsertPendingUserAction(user, hashOf(3), third)
	require.Contains(t, bad, hashOf(2))
	require.Contains(t, bad, hashOf(3))
}
