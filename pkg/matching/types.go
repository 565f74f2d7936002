package matching

import (
	"github.com/angstrom-node/ucpnode/pkg/fixedpoint"
	"github.com/angstrom-node/ucpnode/pkg/types"
)

// OrderFillState tags how much of an order the solved price filled.
type OrderFillState uint8

const (
	FillStateUnfilled OrderFillState = iota
	FillStatePartial
	FillStateComplete
	// FillStateKilled marks an exact order sitting exactly at the clearing
	// price that the solver removed to close a supply/demand gap neither
	// side's slack could absorb (spec §4.G step 3b).
	FillStateKilled
)

// OrderOutcome is one order's result at a pool's uniform clearing price,
// the unit the bundle assembler turns into a contract-side order receipt
// (spec §4.G, §4.H).
type OrderOutcome struct {
	Hash       types.Hash
	Fill       OrderFillState
	FillAmount uint64 // units of the order's own "amount" axis (T0 for exact-in asks/exact-out bids, T1 otherwise)
	T1Moved    uint64
	NetT0      uint64
	FeeT0      uint64
}

// NetAmmOrder is the AMM's side of the match, expressed as the net T0/T1 it
// must move to carry the pool from its pre-block price to the uniform
// clearing price (spec §4.B, §4.G).
type NetAmmOrder struct {
	ZeroForOne bool // true: AMM receives T0, pays out T1 (price falls)
	QuantityT0 uint64
	QuantityT1 uint64
}

// PoolSolution is one pool's complete match result for the block: the
// uniform clearing price, every order's outcome at it, the AMM's net
// counter-order, and the T0 collected from order fees available for LP
// donation (spec §4.G, §4.H).
type PoolSolution struct {
	PoolId        types.PoolId
	UCP           fixedpoint.Ray
	Outcomes      []OrderOutcome
	AmmOrder      *NetAmmOrder
	TotalRewardT0 uint64
}
