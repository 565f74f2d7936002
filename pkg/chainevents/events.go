// Package chainevents is the "cleanser": it turns the canonical-state
// notifications the node receives from its execution client (new blocks,
// reorgs) into the typed events the rest of the node consumes — which
// orders landed, which addresses need a balance/approval refresh, and
// updates to the in-memory pool-admin registry (spec §4.D).
package chainevents

import (
	"github.com/angstrom-node/ucpnode/pkg/types"
)

// PoolAdminEventKind tags a decoded pool-registry admin log.
type PoolAdminEventKind uint8

const (
	PoolAdded PoolAdminEventKind = iota
	PoolRemoved
	NodeAdded
	NodeRemoved
)

// PoolAdminEvent is a decoded log from the pool-registry contract.
type PoolAdminEvent struct {
	Kind PoolAdminEventKind
	Pool types.PoolKey
	Node types.Address
}

// NewBlockTransitions is emitted on Commit: the set of order hashes that
// landed in the block's bundle transaction, and the addresses whose
// balance/approval state may have changed as a result of this block.
type NewBlockTransitions struct {
	Block            types.BlockNumber
	FilledOrders     []types.Hash
	AddressChangeset []types.Address
}

// ReorgedOrders is emitted on Reorg: order hashes that were filled in the
// orphaned chain but are not filled in the new canonical chain, and so must
// be returned to the order pool as live again.
type ReorgedOrders struct {
	Hashes    []types.Hash
	RangeFrom types.BlockNumber
	RangeTo   types.BlockNumber
}
