// Package abci bridges pkg/consensus's AppHook to the resting order book,
// pool registry and matcher. It plays the role the teacher's ABCI-style
// Application interface (PrepareProposal/ProcessProposal/FinalizeBlock)
// played for a transaction mempool, reshaped around a batch-auction bundle
// instead of a list of transactions: BuildOrderView stands in for
// PrepareProposal, Finalize for ProcessProposal's validation-plus-assembly,
// Submit for FinalizeBlock's commit step.
package abci

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/angstrom-node/ucpnode/pkg/amm"
	"github.com/angstrom-node/ucpnode/pkg/bundle"
	"github.com/angstrom-node/ucpnode/pkg/chainevents"
	"github.com/angstrom-node/ucpnode/pkg/consensus"
	"github.com/angstrom-node/ucpnode/pkg/fixedpoint"
	"github.com/angstrom-node/ucpnode/pkg/matching"
	"github.com/angstrom-node/ucpnode/pkg/orderpool"
	"github.com/angstrom-node/ucpnode/pkg/types"
)

// Settler commits a finalized bundle for height to durable state, once
// Submit has decoded it from the round's wire payload. A nil set means the
// round produced an EmptyBlockAttestation: nothing settled this height.
// cmd/node passes a closure that persists the bundle through
// pkg/storage.Store and broadcasts it over pkg/api; tests pass their own.
type Settler func(height types.BlockNumber, set *bundle.BundleSolutionSet) error

// App implements consensus.AppHook over an order book and pool registry
// shared with the rest of the node.
type App struct {
	mu sync.Mutex

	storage *orderpool.OrderStorage
	pools   *chainevents.PoolConfigStore
	amms    map[types.PoolId]*amm.PoolSnapshot

	solveTimeout  time.Duration
	matcherConfig matching.MatcherConfig
	settle        Settler
	logger        *zap.SugaredLogger
}

func NewApp(storage *orderpool.OrderStorage, pools *chainevents.PoolConfigStore, solveTimeout time.Duration, matcherConfig matching.MatcherConfig, settle Settler, logger *zap.SugaredLogger) *App {
	return &App{
		storage:       storage,
		pools:         pools,
		amms:          make(map[types.PoolId]*amm.PoolSnapshot),
		solveTimeout:  solveTimeout,
		matcherConfig: matcherConfig,
		settle:        settle,
		logger:        logger,
	}
}

var _ consensus.AppHook = (*App)(nil)

// SetPoolAMM installs the current AMM snapshot for a pool (spec §4.B).
// Nothing in this module calls it. A pool with no snapshot matches against
// its resting book alone, the same as Matcher.Solve does for a nil AMM.
func (a *App) SetPoolAMM(id types.PoolId, snap *amm.PoolSnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.amms[id] = snap
}

func (a *App) poolAMM(id types.PoolId) *amm.PoolSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.amms[id]
}

// BuildOrderView flattens every pool's resting books into the hash lists a
// PreProposal carries, the local half of §4.H's BidAggregation phase.
func (a *App) BuildOrderView(types.BlockNumber) (limitOrders, searcherOrders []types.Hash) {
	for _, id := range a.trackedPools() {
		snap, ok := a.storage.GetOrdersByPool(id)
		if !ok {
			continue
		}
		for _, o := range snap.Bids {
			limitOrders = append(limitOrders, o.Hash)
		}
		for _, o := range snap.Asks {
			limitOrders = append(limitOrders, o.Hash)
		}
		if snap.Searcher != nil {
			searcherOrders = append(searcherOrders, snap.Searcher.Hash)
		}
	}
	return limitOrders, searcherOrders
}

func (a *App) trackedPools() []types.PoolId {
	n := a.pools.Len()
	out := make([]types.PoolId, 0, n)
	for i := 0; i < n; i++ {
		if id, ok := a.pools.ByStoreIndex(uint32(i)); ok {
			out = append(out, id)
		}
	}
	return out
}

// Finalize runs the matcher over every pool restricted to the orders that
// reached quorum, assembles the resulting bundle, and encodes it to the
// wire payload a Proposal carries (spec §4.G, §4.H). A nil payload means
// no pool had anything to settle.
func (a *App) Finalize(height types.BlockNumber, limitOrders, searcherOrders []types.Hash) ([]byte, error) {
	quorumLimit := hashSet(limitOrders)
	quorumSearcher := hashSet(searcherOrders)

	var deadline time.Time
	if a.solveTimeout > 0 {
		deadline = time.Now().Add(a.solveTimeout)
	}

	var inputs []bundle.PoolInput
	for _, id := range a.trackedPools() {
		key, _, ok := a.pools.Get(id)
		if !ok {
			continue
		}
		snap, ok := a.storage.GetOrdersByPool(id)
		if !ok {
			continue
		}

		filtered := restrictToQuorum(snap, quorumLimit, quorumSearcher)
		if len(filtered.Bids) == 0 && len(filtered.Asks) == 0 && filtered.Searcher == nil {
			continue
		}

		ammSnap := a.poolAMM(id)
		matcher := &matching.Matcher{PoolId: id, Book: filtered, AMM: ammSnap, Fee: key.FeePips, Config: a.matcherConfig}
		solution := matcher.Solve(deadline)

		var swap *amm.SwapVec
		if ammSnap != nil && solution.AmmOrder != nil {
			target := fixedpoint.SqrtPriceX96FromRay(solution.UCP, false)
			s, err := ammSnap.SwapToPrice(target)
			if err != nil {
				return nil, fmt.Errorf("abci: swap pool %s to clearing price: %w", id, err)
			}
			swap = s
		}

		inputs = append(inputs, bundle.PoolInput{
			Solution:           solution,
			Book:               filtered,
			Token0:             key.Currency0,
			Token1:             key.Currency1,
			AMMSwap:            swap,
			LPDonationFraction: a.matcherConfig.LPDonationFraction,
		})
	}

	if len(inputs) == 0 {
		return nil, nil
	}

	set, err := bundle.Assemble(inputs)
	if err != nil {
		return nil, fmt.Errorf("abci: assemble bundle: %w", err)
	}
	if len(set.AssetDeltas) == 0 {
		return nil, nil
	}

	return encodeBundle(set), nil
}

// Submit decodes the round's final payload and hands it to the configured
// Settler. Every node — leader and followers alike — reaches this from the
// same wire bytes, so settlement never depends on which node happened to
// run the matcher.
func (a *App) Submit(height types.BlockNumber, payload []byte) error {
	if payload == nil {
		if a.logger != nil {
			a.logger.Infow("empty_block", "height", height)
		}
		if a.settle != nil {
			return a.settle(height, nil)
		}
		return nil
	}

	set, err := decodeBundle(payload)
	if err != nil {
		return fmt.Errorf("abci: decode bundle payload: %w", err)
	}

	if a.logger != nil {
		a.logger.Infow("submit_bundle", "height", height, "pools", len(set.Pools))
	}
	if a.settle != nil {
		return a.settle(height, set)
	}
	return nil
}

func hashSet(hashes []types.Hash) map[types.Hash]struct{} {
	set := make(map[types.Hash]struct{}, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	return set
}

// restrictToQuorum keeps only the orders that appeared in at least quorum
// of the collected pre-proposal aggregations (spec §4.H), the input the
// leader's matcher run is allowed to consider.
func restrictToQuorum(snap orderpool.Snapshot, limit, searcher map[types.Hash]struct{}) orderpool.Snapshot {
	var out orderpool.Snapshot
	for _, o := range snap.Bids {
		if _, ok := limit[o.Hash]; ok {
			out.Bids = append(out.Bids, o)
		}
	}
	for _, o := range snap.Asks {
		if _, ok := limit[o.Hash]; ok {
			out.Asks = append(out.Asks, o)
		}
	}
	if snap.Searcher != nil {
		if _, ok := searcher[snap.Searcher.Hash]; ok {
			out.Searcher = snap.Searcher
		}
	}
	return out
}

// encodeBundle/decodeBundle are a compact node-to-node wire format for a
// BundleSolutionSet, distinct from the bit-exact contract ABI encoding
// pkg/bundle's own doc comment defers as out of scope: this format only
// carries what Submit needs to settle — per-pool reward totals and the net
// asset deltas — not the per-tick LP donation breakdown a settlement
// contract call would require.
const (
	poolRecordLen  = 32 + 32 + 8 + 8 + 8
	deltaRecordLen = 20 + 8
)

func encodeBundle(set *bundle.BundleSolutionSet) []byte {
	buf := make([]byte, 4, 64)
	binary.BigEndian.PutUint32(buf, uint32(len(set.Pools)))

	for _, p := range set.Pools {
		buf = append(buf, p.PoolId[:]...)
		ucp := p.Solution.UCP.Uint256().Bytes32()
		buf = append(buf, ucp[:]...)
		buf = appendUint64(buf, p.Solution.TotalRewardT0)
		buf = appendUint64(buf, p.ProtocolFeeT0)
		buf = appendUint64(buf, p.LPDonation.TotalDonated)
	}

	buf = appendUint32(buf, uint32(len(set.AssetDeltas)))
	for addr, delta := range set.AssetDeltas {
		buf = append(buf, addr[:]...)
		buf = appendUint64(buf, uint64(delta))
	}

	return buf
}

func decodeBundle(payload []byte) (*bundle.BundleSolutionSet, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("abci: payload too short for pool count")
	}
	numPools := binary.BigEndian.Uint32(payload)
	offset := 4

	set := &bundle.BundleSolutionSet{AssetDeltas: make(map[types.Address]int64)}
	for i := uint32(0); i < numPools; i++ {
		if len(payload) < offset+poolRecordLen {
			return nil, fmt.Errorf("abci: payload truncated in pool record %d", i)
		}
		var id types.PoolId
		copy(id[:], payload[offset:offset+32])
		offset += 32

		ucp, err := fixedpoint.RayFromBig(new(big.Int).SetBytes(payload[offset:offset+32]))
		if err != nil {
			return nil, fmt.Errorf("abci: decode UCP for pool %s: %w", id, err)
		}
		offset += 32

		reward := binary.BigEndian.Uint64(payload[offset : offset+8])
		offset += 8
		protocolFee := binary.BigEndian.Uint64(payload[offset : offset+8])
		offset += 8
		donated := binary.BigEndian.Uint64(payload[offset : offset+8])
		offset += 8

		set.Pools = append(set.Pools, bundle.PoolResult{
			PoolId:        id,
			Solution:      matching.PoolSolution{PoolId: id, UCP: ucp, TotalRewardT0: reward},
			ProtocolFeeT0: protocolFee,
			LPDonation:    amm.DonationResult{TotalDonated: donated},
		})
	}

	if len(payload) < offset+4 {
		return nil, fmt.Errorf("abci: payload truncated before delta count")
	}
	numDeltas := binary.BigEndian.Uint32(payload[offset : offset+4])
	offset += 4

	for i := uint32(0); i < numDeltas; i++ {
		if len(payload) < offset+deltaRecordLen {
			return nil, fmt.Errorf("abci: payload truncated in delta record %d", i)
		}
		var addr types.Address
		copy(addr[:], payload[offset:offset+20])
		offset += 20
		delta := int64(binary.BigEndian.Uint64(payload[offset : offset+8]))
		offset += 8
		set.AssetDeltas[addr] = delta
	}

	return set, nil
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}
