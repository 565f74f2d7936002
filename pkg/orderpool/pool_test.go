package orderpool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angstrom-node/ucpnode/pkg/fixedpoint"
	"github.com/angstrom-node/ucpnode/pkg/types"
)

func testPoolId(b byte) types.PoolId {
	var id types.PoolId
	id[0] = b
	return id
}

func limitOrder(pool types.PoolId, isBid bool, price uint64, h byte) *types.OrderWithStorageData {
	var hash types.Hash
	hash[31] = h
	return &types.OrderWithStorageData{
		Order:    &types.Order{Kind: types.KindExactStanding},
		Hash:     hash,
		PoolId:   pool,
		IsBid:    isBid,
		Priority: types.PriorityData{Price: fixedpoint.RayFromUint64(price)},
	}
}

func TestNewPoolThenRemovePoolEmptiesBooks(t *testing.T) {
	s := NewOrderStorage()
	pool := testPoolId(1)
	s.NewPool(pool)

	ok := s.AddLimitOrder(limitOrder(pool, true, 100, 1))
	require.True(t, ok)

	snap, ok := s.GetOrdersByPool(pool)
	require.True(t, ok)
	require.Len(t, snap.Bids, 1)

	s.RemovePool(pool)
	_, ok = s.GetOrdersByPool(pool)
	require.False(t, ok)
}

func TestAddLimitOrderToUnknownPoolFails(t *testing.T) {
	s := NewOrderStorage()
	require.False(t, s.AddLimitOrder(limitOrder(testPoolId(9), true, 100, 1)))
}

func TestAddSearcherOrderReplacesPrevious(t *testing.T) {
	s := NewOrderStorage()
	pool := testPoolId(1)
	s.NewPool(pool)

	first := limitOrder(pool, true, 100, 1)
	second := limitOrder(pool, true, 200, 2)
	require.True(t, s.AddSearcherOrder(first))
	require.True(t, s.AddSearcherOrder(second))

	snap, _ := s.GetOrdersByPool(pool)
	require.Equal(t, second.Hash, snap.Searcher.Hash)
}

func TestRemoveOrderFindsItAcrossBidsAsksAndSearcher(t *testing.T) {
	s := NewOrderStorage()
	pool := testPoolId(1)
	s.NewPool(pool)

	bid := limitOrder(pool, true, 100, 1)
	ask := limitOrder(pool, false, 200, 2)
	s.AddLimitOrder(bid)
	s.AddLimitOrder(ask)

	removed, ok := s.RemoveOrder(bid.Hash)
	require.True(t, ok)
	require.Equal(t, bid.Hash, removed.Hash)

	snap, _ := s.GetOrdersByPool(pool)
	require.Empty(t, snap.Bids)
	require.Len(t, snap.Asks, 1)
}

func TestAddFilledOrdersThenReorgReturnsOrphaned(t *testing.T) {
	s := NewOrderStorage()
	pool := testPoolId(1)
	s.NewPool(pool)

	orphan := limitOrder(pool, true, 100, 1)
	stillFilled := limitOrder(pool, true, 100, 2)
	s.AddFilledOrders(10, []*types.OrderWithStorageData{orphan, stillFilled})

	unfilled := s.Reorg([]types.Hash{stillFilled.Hash})
	require.Len(t, unfilled, 1)
	require.Equal(t, orphan.Hash, unfilled[0].Hash)
}

func TestFinalizedBlockDropsFilledHistory(t *testing.T) {
	s := NewOrderStorage()
	pool := testPoolId(1)
	s.NewPool(pool)

	order := limitOrder(pool, true, 100, 1)
	s.AddFilledOrders(10, []*types.OrderWithStorageData{order})
	s.FinalizedBlock(10)

	unfilled := s.Reorg(nil)
	require.Empty(t, unfilled)
}

func TestFetchStatusOfOrderFindsRestingAndFilled(t *testing.T) {
	s := NewOrderStorage()
	pool := testPoolId(1)
	s.NewPool(pool)

	resting := limitOrder(pool, true, 100, 1)
	s.AddLimitOrder(resting)
	_, ok := s.FetchStatusOfOrder(resting.Hash)
	require.True(t, ok)

	filled := limitOrder(pool, true, 100, 2)
	s.AddFilledOrders(5, []*types.OrderWithStorageData{filled})
	_, ok = s.FetchStatusOfOrder(filled.Hash)
	require.True(t, ok)

	var unknown types.Hash
	unknown[0] = 0xff
	_, ok = s.FetchStatusOfOrder(unknown)
	require.False(t, ok)
}
