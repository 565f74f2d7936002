package validation

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/angstrom-node/ucpnode/pkg/fixedpoint"
	"github.com/angstrom-node/ucpnode/pkg/types"
)

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func hashOf(b byte) types.Hash {
	var h types.Hash
	h[31] = b
	return h
}

func onePrice() fixedpoint.Ray {
	return fixedpoint.RayFromUint256(new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(27))) // 1.0
}

func exactAskOrder(amount uint64) *types.Order {
	return &types.Order{
		Kind:       types.KindExactStanding,
		AssetIn:    addr(1), // T0
		AssetOut:   addr(2), // T1
		LimitPrice: onePrice(),
		Amount:     amount,
		ExactIn:    true,
	}
}

func TestFetchAmountInExactIsAmountRegardlessOfSide(t *testing.T) {
	o := exactAskOrder(100)
	require.EqualValues(t, 100, fetchAmountIn(o, false))
	require.EqualValues(t, 100, fetchAmountIn(o, true))
}

func TestFetchAmountInImplicitAskAddsGasInT0(t *testing.T) {
	o := &types.Order{LimitPrice: onePrice(), Amount: 100, MaxExtraFeeAsset0: 5, ExactIn: false}
	require.EqualValues(t, 105, fetchAmountIn(o, false))
}

func TestFetchAmountInImplicitBidConvertsThroughPriceThenAddsGas(t *testing.T) {
	o := &types.Order{LimitPrice: onePrice(), Amount: 100, MaxExtraFeeAsset0: 5, ExactIn: false}
	require.EqualValues(t, 105, fetchAmountIn(o, true))
}

func TestCanSupportOrderInternalBalanceSufficient(t *testing.T) {
	live := LiveState{Token: addr(1), AngstromBalance: 200}
	o := exactAskOrder(100)

	action, err := live.CanSupportOrder(o, hashOf(1), types.OrderPriority{}, false, true)
	require.NoError(t, err)
	require.EqualValues(t, -100, action.AngstromDelta)
	require.Zero(t, action.TokenDelta)
	require.Zero(t, action.TokenApproval)
}

func TestCanSupportOrderInternalBalanceInsufficient(t *testing.T) {
	live := LiveState{Token: addr(1), AngstromBalance: 50}
	o := exactAskOrder(100)

	_, err := live.CanSupportOrder(o, hashOf(1), types.OrderPriority{}, false, true)
	require.Error(t, err)
	var stateErr *InsufficientStateError
	require.ErrorAs(t, err, &stateErr)
	require.Equal(t, types.StateErrInsufficientBalance, stateErr.Kind)
	require.EqualValues(t, 50, stateErr.Amount)
}

func TestCanSupportOrderOnChainSufficient(t *testing.T) {
	live := LiveState{Token: addr(1), Approval: 200, Balance: 200}
	o := exactAskOrder(100)

	action, err := live.CanSupportOrder(o, hashOf(1), types.OrderPriority{}, false, false)
	require.NoError(t, err)
	require.EqualValues(t, -100, action.TokenDelta)
	require.EqualValues(t, -100, action.TokenApproval)
	require.Zero(t, action.AngstromDelta)
}

func TestCanSupportOrderInsufficientApprovalOnly(t *testing.T) {
	live := LiveState{Token: addr(1), Approval: 10, Balance: 200}
	o := exactAskOrder(100)

	_, err := live.CanSupportOrder(o, hashOf(1), types.OrderPriority{}, false, false)
	var stateErr *InsufficientStateError
	require.ErrorAs(t, err, &stateErr)
	require.Equal(t, types.StateErrInsufficientApproval, stateErr.Kind)
	require.EqualValues(t, 90, stateErr.Amount)
}

func TestCanSupportOrderInsufficientBalanceOnly(t *testing.T) {
	live := LiveState{Token: addr(1), Approval: 200, Balance: 10}
	o := exactAskOrder(100)

	_, err := live.CanSupportOrder(o, hashOf(1), types.OrderPriority{}, false, false)
	var stateErr *InsufficientStateError
	require.ErrorAs(t, err, &stateErr)
	require.Equal(t, types.StateErrInsufficientBalance, stateErr.Kind)
	require.EqualValues(t, 90, stateErr.Amount)
}

func TestCanSupportOrderInsufficientBoth(t *testing.T) {
	live := LiveState{Token: addr(1), Approval: 10, Balance: 20}
	o := exactAskOrder(100)

	_, err := live.CanSupportOrder(o, hashOf(1), types.OrderPriority{}, false, false)
	var stateErr *InsufficientStateError
	require.ErrorAs(t, err, &stateErr)
	require.Equal(t, types.StateErrInsufficientBoth, stateErr.Kind)
	require.EqualValues(t, 90, stateErr.Amount)
}
