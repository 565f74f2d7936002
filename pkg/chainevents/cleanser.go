package chainevents

import (
	gethcommon "github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/angstrom-node/ucpnode/pkg/types"
)

var (
	transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	approvalTopic = crypto.Keccak256Hash([]byte("Approval(address,address,uint256)"))
)

// AdminDecoder decodes a raw execution-client log into a pool-admin event,
// returning ok=false for logs the pool registry doesn't care about. Kept as
// an injected function rather than a concrete ABI dependency so the
// cleanser doesn't need the pool-registry contract's compiled bindings to
// be tested.
type AdminDecoder func(log gethtypes.Log) (ev PoolAdminEvent, id types.PoolId, ok bool)

// Block is the minimal view of a committed block the cleanser needs: its
// logs and the order hashes the bundle transaction filled.
type Block struct {
	Number       types.BlockNumber
	Logs         []gethtypes.Log
	FilledOrders []types.Hash
	Submitters   []types.Address // accounts that landed a bundle transaction
}

// Cleanser turns committed/reorged blocks into NewBlockTransitions and
// ReorgedOrders events, and keeps a PoolConfigStore up to date from
// pool-admin logs along the way (spec §4.D).
type Cleanser struct {
	Pools         *PoolConfigStore
	TrackedTokens map[types.Address]struct{}
	DecodeAdmin   AdminDecoder
	Log           *zap.Logger

	filledByBlock map[types.BlockNumber][]types.Hash
}

// NewCleanser builds a cleanser tracking the given ERC-20 tokens for
// address-changeset purposes.
func NewCleanser(pools *PoolConfigStore, trackedTokens []types.Address, decode AdminDecoder, log *zap.Logger) *Cleanser {
	tracked := make(map[types.Address]struct{}, len(trackedTokens))
	for _, t := range trackedTokens {
		tracked[t] = struct{}{}
	}
	return &Cleanser{
		Pools:         pools,
		TrackedTokens: tracked,
		DecodeAdmin:   decode,
		Log:           log,
		filledByBlock: make(map[types.BlockNumber][]types.Hash),
	}
}

// Commit decodes a newly committed block's admin events, updates the pool
// registry, and emits the block's filled orders and touched-address
// changeset.
func (c *Cleanser) Commit(b Block) NewBlockTransitions {
	for _, l := range b.Logs {
		if c.DecodeAdmin == nil {
			break
		}
		ev, id, ok := c.DecodeAdmin(l)
		if !ok {
			continue
		}
		if err := c.Pools.Apply(ev, id); err != nil && c.Log != nil {
			c.Log.Warn("chainevents: failed to apply pool admin event", zap.Error(err), zap.Uint64("block", uint64(b.Number)))
		}
	}

	changeset := c.addressChangeset(b)
	c.filledByBlock[b.Number] = append([]types.Hash(nil), b.FilledOrders...)

	return NewBlockTransitions{
		Block:            b.Number,
		FilledOrders:     b.FilledOrders,
		AddressChangeset: changeset,
	}
}

// addressChangeset collects every address that appeared as from/to/owner/
// spender in a tracked token's Transfer/Approval logs, plus every account
// that submitted a landed bundle transaction.
func (c *Cleanser) addressChangeset(b Block) []types.Address {
	seen := make(map[types.Address]struct{})
	for _, l := range b.Logs {
		if _, tracked := c.TrackedTokens[types.Address(l.Address)]; !tracked {
			continue
		}
		if len(l.Topics) < 3 {
			continue
		}
		switch l.Topics[0] {
		case transferTopic, approvalTopic:
			seen[topicToAddress(l.Topics[1])] = struct{}{}
			seen[topicToAddress(l.Topics[2])] = struct{}{}
		}
	}
	for _, s := range b.Submitters {
		seen[s] = struct{}{}
	}

	out := make([]types.Address, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	return out
}

func topicToAddress(t gethcommon.Hash) types.Address {
	var a types.Address
	copy(a[:], t[12:])
	return a
}

// Reorg replays admin events for the new canonical range and returns the
// order hashes that were filled on the orphaned chain but are no longer
// filled on the new one, so the order pool can make them live again.
func (c *Cleanser) Reorg(oldRange []types.BlockNumber, newBlocks []Block) ReorgedOrders {
	oldFilled := make(map[types.Hash]struct{})
	for _, n := range oldRange {
		for _, h := range c.filledByBlock[n] {
			oldFilled[h] = struct{}{}
		}
		delete(c.filledByBlock, n)
	}

	newFilled := make(map[types.Hash]struct{})
	for _, b := range newBlocks {
		c.Commit(b)
		for _, h := range b.FilledOrders {
			newFilled[h] = struct{}{}
		}
	}

	var from, to types.BlockNumber
	if len(oldRange) > 0 {
		from, to = oldRange[0], oldRange[len(oldRange)-1]
	}

	var diff []types.Hash
	for h := range oldFilled {
		if _, stillFilled := newFilled[h]; !stillFilled {
			diff = append(diff, h)
		}
	}

	return ReorgedOrders{Hashes: diff, RangeFrom: from, RangeTo: to}
}
