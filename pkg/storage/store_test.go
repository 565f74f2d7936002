package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angstrom-node/ucpnode/pkg/bundle"
	"github.com/angstrom-node/ucpnode/pkg/types"
)

func testAddr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func testHash(b byte) types.Hash {
	var h types.Hash
	h[31] = b
	return h
}

func testPoolID(b byte) types.PoolId {
	var p types.PoolId
	p[31] = b
	return p
}

func TestInMemoryStoreBarrierHeadRoundTrip(t *testing.T) {
	s := NewInMemoryStore()

	_, ok, err := s.LoadBarrierHead()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SaveBarrierHead(42))

	got, ok, err := s.LoadBarrierHead()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, types.BlockNumber(42), got)

	require.NoError(t, s.SaveBarrierHead(43))
	got, ok, err = s.LoadBarrierHead()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, types.BlockNumber(43), got)
}

func TestInMemoryStoreBundleRoundTrip(t *testing.T) {
	s := NewInMemoryStore()

	set := &bundle.BundleSolutionSet{
		AssetDeltas: map[types.Address]int64{
			testAddr(1): 100,
			testAddr(2): -100,
		},
	}

	_, ok, err := s.LoadBundle(7)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SaveBundle(7, set))

	got, ok, err := s.LoadBundle(7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, set, got)
}

func TestInMemoryStorePoolConfigsRoundTripAndCopiesOnRead(t *testing.T) {
	s := NewInMemoryStore()

	id := testPoolID(1)
	key := types.NewPoolKey(testAddr(1), testAddr(2), 3000, 60, types.Address{})
	require.NoError(t, s.SavePoolConfig(id, key))

	pools, err := s.LoadPoolConfigs()
	require.NoError(t, err)
	require.Equal(t, key, pools[id])

	// mutating the returned map must not affect internal state
	delete(pools, id)
	pools2, err := s.LoadPoolConfigs()
	require.NoError(t, err)
	require.Contains(t, pools2, id)
}

func TestInMemoryStoreRestingOrdersRoundTripAndDelete(t *testing.T) {
	s := NewInMemoryStore()

	pool := testPoolID(1)
	o1 := &types.OrderWithStorageData{PoolId: pool, Hash: testHash(1)}
	o2 := &types.OrderWithStorageData{PoolId: pool, Hash: testHash(2)}

	require.NoError(t, s.SaveRestingOrder(o1))
	require.NoError(t, s.SaveRestingOrder(o2))

	orders, err := s.LoadRestingOrders(pool)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	require.NoError(t, s.DeleteRestingOrder(pool, testHash(1)))

	orders, err = s.LoadRestingOrders(pool)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, testHash(2), orders[0].Hash)
}

func TestInMemoryStoreRestingOrdersScopedPerPool(t *testing.T) {
	s := NewInMemoryStore()

	poolA := testPoolID(1)
	poolB := testPoolID(2)
	require.NoError(t, s.SaveRestingOrder(&types.OrderWithStorageData{PoolId: poolA, Hash: testHash(1)}))
	require.NoError(t, s.SaveRestingOrder(&types.OrderWithStorageData{PoolId: poolB, Hash: testHash(2)}))

	ordersA, err := s.LoadRestingOrders(poolA)
	require.NoError(t, err)
	require.Len(t, ordersA, 1)
	require.Equal(t, poolA, ordersA[0].PoolId)
}

func TestWALImplementationsDoNotPanic(t *testing.T) {
	var w WAL = NewNopWAL()
	w.Append("anything")
}
