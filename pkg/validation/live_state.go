package validation

import (
	"fmt"

	"github.com/angstrom-node/ucpnode/pkg/types"
)

// LiveState is a user's balance/approval for one token, net of every
// higher-priority pending action already admitted ahead of the order being
// checked (spec §4.E).
type LiveState struct {
	Token           types.Address
	Approval        uint64
	Balance         uint64
	AngstromBalance uint64
}

// InsufficientStateError reports that a user's live state can't cover an
// order's required amount_in.
type InsufficientStateError struct {
	Kind      types.StateError
	OrderHash types.Hash
	Token     types.Address
	Amount    uint64 // shortfall
}

func (e *InsufficientStateError) Error() string {
	return fmt.Sprintf("validation: %s for order %s token %s, short %d", e.Kind, e.OrderHash, e.Token.Hex(), e.Amount)
}

// fetchAmountIn computes how much of AssetIn an order needs to reserve.
// Gas is always charged in T0: a bid with an implicit (non-exact) amount
// needs its T1-denominated fill converted to T0 via the inverse price, plus
// the gas allowance; an ask with an implicit amount needs the gas allowance
// added directly since it's already in T0 (spec §4.E step 5).
func fetchAmountIn(o *types.Order, isBid bool) uint64 {
	if o.ExactIn {
		return o.Amount
	}
	if isBid {
		return o.LimitPrice.InverseQuantity(o.Amount, true) + o.MaxExtraFeeAsset0
	}
	return o.LimitPrice.InverseQuantity(o.Amount, true) + o.MaxExtraFeeAsset0
}

// CanSupportOrder checks a live state against an order, returning the
// PendingUserAction to admit if the user can cover amount_in from either
// their Angstrom-internal balance (useInternal) or their on-chain
// balance+approval.
func (s LiveState) CanSupportOrder(o *types.Order, orderHash types.Hash, priority types.OrderPriority, isBid, useInternal bool) (types.PendingUserAction, error) {
	amountIn := fetchAmountIn(o, isBid)

	var tokenDelta, tokenApproval, angstromDelta int64
	if useInternal {
		if s.AngstromBalance < amountIn {
			return types.PendingUserAction{}, &InsufficientStateError{
				Kind: types.StateErrInsufficientBalance, OrderHash: orderHash, Token: s.Token,
				Amount: amountIn - s.AngstromBalance,
			}
		}
		angstromDelta = -int64(amountIn)
	} else {
		shortApproval := s.Approval < amountIn
		shortBalance := s.Balance < amountIn
		switch {
		case shortApproval && shortBalance:
			return types.PendingUserAction{}, &InsufficientStateError{
				Kind: types.StateErrInsufficientBoth, OrderHash: orderHash, Token: s.Token,
				Amount: max64(amountIn-s.Approval, amountIn-s.Balance),
			}
		case shortApproval:
			return types.PendingUserAction{}, &InsufficientStateError{
				Kind: types.StateErrInsufficientApproval, OrderHash: orderHash, Token: s.Token,
				Amount: amountIn - s.Approval,
			}
		case shortBalance:
			return types.PendingUserAction{}, &InsufficientStateError{
				Kind: types.StateErrInsufficientBalance, OrderHash: orderHash, Token: s.Token,
				Amount: amountIn - s.Balance,
			}
		}
		tokenDelta = -int64(amountIn)
		tokenApproval = -int64(amountIn)
	}

	return types.PendingUserAction{
		Priority:      priority,
		TokenAddress:  s.Token,
		TokenDelta:    tokenDelta,
		TokenApproval: tokenApproval,
		AngstromDelta: angstromDelta,
	}, nil
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
