package types

import (
	"sort"

	"github.com/angstrom-node/ucpnode/pkg/fixedpoint"
)

// OrderKind tags the five shapes an order can take.
type OrderKind uint8

const (
	KindExactStanding OrderKind = iota
	KindPartialStanding
	KindExactFlash
	KindPartialFlash
	KindTopOfBlock
)

func (k OrderKind) String() string {
	switch k {
	case KindExactStanding:
		return "ExactStanding"
	case KindPartialStanding:
		return "PartialStanding"
	case KindExactFlash:
		return "ExactFlash"
	case KindPartialFlash:
		return "PartialFlash"
	case KindTopOfBlock:
		return "TopOfBlock"
	default:
		return "Unknown"
	}
}

// IsPartial reports whether the kind fills anywhere in [min, max] rather
// than all-or-nothing.
func (k OrderKind) IsPartial() bool {
	return k == KindPartialStanding || k == KindPartialFlash
}

// IsStanding reports whether respend avoidance is nonce-based (true) or
// block-based (false, flash/TOB orders).
func (k OrderKind) IsStanding() bool {
	return k == KindExactStanding || k == KindPartialStanding
}

// Order is the tagged variant described in spec §3 (AllOrders). Every
// shape carries the same common fields; Nonce/Deadline apply to standing
// orders, ValidForBlock applies to flash orders and TOB.
type Order struct {
	Kind OrderKind

	AssetIn  Address
	AssetOut Address

	// LimitPrice is expressed in T1/T0 (see fixedpoint.Ray), independent of
	// which asset is "in" — direction is derived from AssetIn/AssetOut below.
	LimitPrice fixedpoint.Ray

	// Amount is the exact fill amount (exact kinds) or the maximum fill
	// amount (partial kinds, paired with MinAmount).
	Amount    uint64
	MinAmount uint64 // only meaningful when Kind.IsPartial()

	MaxExtraFeeAsset0 uint64

	Signature []byte
	From      Address
	Recipient *Address
	HookData  []byte

	Nonce         uint64 // standing orders
	Deadline      uint64 // standing orders, unix seconds; 0 = no expiry
	ValidForBlock BlockNumber // flash orders and TOB

	// ExactIn distinguishes "sell exactly Amount of AssetIn" from
	// "buy exactly Amount of AssetOut" for exact-kind orders.
	ExactIn bool
}

// IsBid reports whether the order buys token0 with token1 (asset_in ==
// token1), per spec §3's derived field.
func (o *Order) IsBid(token1 Address) bool {
	return o.AssetIn == token1
}

// IsPartial mirrors Kind.IsPartial for ergonomic call sites.
func (o *Order) IsPartial() bool { return o.Kind.IsPartial() }

// RespendKey returns the value used for respend-avoidance comparisons:
// the nonce for standing orders, the target block for flash/TOB orders.
func (o *Order) RespendKey() uint64 {
	if o.Kind.IsStanding() {
		return o.Nonce
	}
	return uint64(o.ValidForBlock)
}

// OrderHasher computes the EIP-712 order digest over the shape-specific
// fields plus From. The concrete typed-data encoding lives in pkg/crypto,
// whose EIP712Signer implements this interface; keeping only the interface
// here avoids an import cycle (pkg/crypto depends on pkg/types for field
// access).
type OrderHasher interface {
	HashOrder(o *Order) Hash
}

// OrderWithStorageData wraps an order with pool/priority/validity metadata
// attached once it enters the order pool (spec §3).
type OrderWithStorageData struct {
	Order *Order
	Hash  Hash

	PoolId       PoolId
	IsBid        bool
	ValidBlock   BlockNumber
	Priority     PriorityData
	Invalidates  []Hash
	CurrentError StateError // StateErrNone when currently valid
	OrderID      uint64
}

// PriorityData carries the fields the order pool and matcher sort by.
type PriorityData struct {
	Price    fixedpoint.Ray
	Volume   uint64
	Gas      uint64 // gas price the order bids, for tie-breaking
	GasUnits uint64
}

// IsCurrentlyValid reports whether the order can execute against live state.
func (o *OrderWithStorageData) IsCurrentlyValid() bool { return o.CurrentError == StateErrNone }

// OrderPriority orders PendingUserAction entries: TOB > partials > exacts,
// then ascending respend value, then ascending hash (spec §3, Open
// Question #1 resolved to ascending hash).
type OrderPriority struct {
	Hash      Hash
	IsTOB     bool
	IsPartial bool
	Respend   uint64
}

// Less implements the total order described in spec §3's PendingUserAction.
func (p OrderPriority) Less(other OrderPriority) bool {
	if p.IsTOB != other.IsTOB {
		return p.IsTOB // TOB first
	}
	if p.IsPartial != other.IsPartial {
		return p.IsPartial // partials before exacts
	}
	if p.Respend != other.Respend {
		return p.Respend < other.Respend
	}
	return lessHash(p.Hash, other.Hash)
}

func lessHash(a, b Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// PendingUserAction is one user's pending order represented as its effect
// on that user's balances (spec §3).
type PendingUserAction struct {
	Priority       OrderPriority
	TokenAddress   Address
	TokenDelta     int64 // signed: negative = consumes balance
	TokenApproval  int64
	AngstromDelta  int64
}

// SortPendingActions sorts a user's pending actions into priority order,
// highest priority first.
func SortPendingActions(actions []PendingUserAction) {
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Priority.Less(actions[j].Priority)
	})
}
