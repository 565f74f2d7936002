package chainevents

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angstrom-node/ucpnode/pkg/types"
)

func poolID(b byte) types.PoolId {
	var id types.PoolId
	id[0] = b
	return id
}

func TestPoolConfigStoreAssignsDenseIndexes(t *testing.T) {
	s := NewPoolConfigStore()
	s.AddPool(poolID(1), types.PoolKey{})
	s.AddPool(poolID(2), types.PoolKey{})
	s.AddPool(poolID(3), types.PoolKey{})

	_, idx, ok := s.Get(poolID(2))
	require.True(t, ok)
	require.EqualValues(t, 1, idx)
	require.Equal(t, 3, s.Len())
}

func TestRemovePoolDecrementsLaterIndexes(t *testing.T) {
	s := NewPoolConfigStore()
	s.AddPool(poolID(1), types.PoolKey{})
	s.AddPool(poolID(2), types.PoolKey{})
	s.AddPool(poolID(3), types.PoolKey{})

	require.NoError(t, s.RemovePool(poolID(1)))

	_, idx2, ok := s.Get(poolID(2))
	require.True(t, ok)
	require.EqualValues(t, 0, idx2)

	_, idx3, ok := s.Get(poolID(3))
	require.True(t, ok)
	require.EqualValues(t, 1, idx3)

	require.Equal(t, 2, s.Len())
	_, _, ok = s.Get(poolID(1))
	require.False(t, ok)
}

func TestRemoveUnknownPoolErrors(t *testing.T) {
	s := NewPoolConfigStore()
	require.Error(t, s.RemovePool(poolID(9)))
}

func TestByStoreIndexRoundTrip(t *testing.T) {
	s := NewPoolConfigStore()
	s.AddPool(poolID(1), types.PoolKey{})
	s.AddPool(poolID(2), types.PoolKey{})

	id, ok := s.ByStoreIndex(1)
	require.True(t, ok)
	require.Equal(t, poolID(2), id)

	_, ok = s.ByStoreIndex(5)
	require.False(t, ok)
}
