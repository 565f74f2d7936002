package chainevents

import (
	"testing"

	gethcommon "github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/angstrom-node/ucpnode/pkg/types"
)

func transferLog(token, from, to gethcommon.Address) gethtypes.Log {
	return gethtypes.Log{
		Address: token,
		Topics: []gethcommon.Hash{
			transferTopic,
			gethcommon.BytesToHash(from.Bytes()),
			gethcommon.BytesToHash(to.Bytes()),
		},
	}
}

func TestCommitExtractsAddressChangesetFromTrackedTokenTransfers(t *testing.T) {
	token := gethcommon.HexToAddress("0x1111111111111111111111111111111111111111")
	other := gethcommon.HexToAddress("0x2222222222222222222222222222222222222222")
	alice := gethcommon.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	bob := gethcommon.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	c := NewCleanser(NewPoolConfigStore(), []types.Address{token}, nil, nil)
	block := Block{
		Number: 100,
		Logs: []gethtypes.Log{
			transferLog(token, alice, bob),
			transferLog(other, alice, bob), // untracked token, ignored
		},
	}

	transitions := c.Commit(block)
	require.ElementsMatch(t, []types.Address{alice, bob}, transitions.AddressChangeset)
}

func TestCommitIncludesBundleSubmitters(t *testing.T) {
	submitter := gethcommon.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	c := NewCleanser(NewPoolConfigStore(), nil, nil, nil)

	transitions := c.Commit(Block{Number: 1, Submitters: []types.Address{submitter}})
	require.Equal(t, []types.Address{submitter}, transitions.AddressChangeset)
}

func TestCommitAppliesPoolAdminEvents(t *testing.T) {
	store := NewPoolConfigStore()
	var poolID types.PoolId
	poolID[0] = 7

	decode := func(l gethtypes.Log) (PoolAdminEvent, types.PoolId, bool) {
		return PoolAdminEvent{Kind: PoolAdded, Pool: types.PoolKey{FeePips: 500}}, poolID, true
	}
	c := NewCleanser(store, nil, decode, nil)

	c.Commit(Block{Number: 1, Logs: []gethtypes.Log{{}}})

	key, idx, ok := store.Get(poolID)
	require.True(t, ok)
	require.EqualValues(t, 0, idx)
	require.EqualValues(t, 500, key.FeePips)
}

func TestReorgReturnsOrdersFilledOnlyOnOrphanedChain(t *testing.T) {
	c := NewCleanser(NewPoolConfigStore(), nil, nil, nil)

	orphanedOrder := types.Hash{1}
	stillFilledOrder := types.Hash{2}

	c.Commit(Block{Number: 10, FilledOrders: []types.Hash{orphanedOrder, stillFilledOrder}})

	result := c.Reorg([]types.BlockNumber{10}, []Block{
		{Number: 10, FilledOrders: []types.Hash{stillFilledOrder}},
	})

	require.Equal(t, []types.Hash{orphanedOrder}, result.Hashes)
	require.EqualValues(t, 10, result.RangeFrom)
	require.EqualValues(t, 10, result.RangeTo)
}
