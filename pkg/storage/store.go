package storage

import (
	"sync"

	"github.com/angstrom-node/ucpnode/pkg/bundle"
	"github.com/angstrom-node/ucpnode/pkg/types"
)

// Store is the durable-state contract cmd/node wires pkg/abci's Settler and
// the barrier/pool-registry bootstrap path against. Unlike the teacher's
// BlockStore (keyed by chained-certificate Hash/View, with a single
// GetCommitted pointer walking the chain backward), nothing here chains:
// each height's settled bundle stands alone, the same way a
// pkg/consensus.Round starts each height's agreement fresh with no
// certificate carried forward.
type Store interface {
	// SaveBarrierHead/LoadBarrierHead persist the block-sync barrier's
	// current head across restarts, the one piece of cross-height state
	// this node keeps (the WaitTrigger's decay state is intentionally
	// process-local and never persisted).
	SaveBarrierHead(n types.BlockNumber) error
	LoadBarrierHead() (types.BlockNumber, bool, error)

	// SaveBundle/LoadBundle persist the settlement a height's Proposal
	// carried, once pkg/abci.App.Submit decodes it — this is what
	// pkg/abci.Settler is expected to call into.
	SaveBundle(height types.BlockNumber, set *bundle.BundleSolutionSet) error
	LoadBundle(height types.BlockNumber) (*bundle.BundleSolutionSet, bool, error)

	// SavePoolConfig/LoadPoolConfigs persist the pool registry so
	// pkg/chainevents.PoolConfigStore can be rehydrated at startup instead
	// of replaying every PoolAdminEvent from genesis.
	SavePoolConfig(id types.PoolId, key types.PoolKey) error
	LoadPoolConfigs() (map[types.PoolId]types.PoolKey, error)

	// SaveRestingOrder/DeleteRestingOrder/LoadRestingOrders persist a pool's
	// resting book so pkg/orderpool.OrderStorage survives a restart instead
	// of starting each pool empty.
	SaveRestingOrder(o *types.OrderWithStorageData) error
	DeleteRestingOrder(pool types.PoolId, hash types.Hash) error
	LoadRestingOrders(pool types.PoolId) ([]*types.OrderWithStorageData, error)
}

// InMemoryStore is a map-backed Store for single-node dev mode and tests,
// the role the teacher's InMemoryBlockStore played for its own chain state.
type InMemoryStore struct {
	mu sync.Mutex

	barrierHead   *types.BlockNumber
	bundles       map[types.BlockNumber]*bundle.BundleSolutionSet
	pools         map[types.PoolId]types.PoolKey
	restingOrders map[types.PoolId]map[types.Hash]*types.OrderWithStorageData
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		bundles:       make(map[types.BlockNumber]*bundle.BundleSolutionSet),
		pools:         make(map[types.PoolId]types.PoolKey),
		restingOrders: make(map[types.PoolId]map[types.Hash]*types.OrderWithStorageData),
	}
}

func (s *InMemoryStore) SaveBarrierHead(n types.BlockNumber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.barrierHead = &n
	return nil
}

func (s *InMemoryStore) LoadBarrierHead() (types.BlockNumber, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.barrierHead == nil {
		return 0, false, nil
	}
	return *s.barrierHead, true, nil
}

func (s *InMemoryStore) SaveBundle(height types.BlockNumber, set *bundle.BundleSolutionSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles[height] = set
	return nil
}

func (s *InMemoryStore) LoadBundle(height types.BlockNumber) (*bundle.BundleSolutionSet, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.bundles[height]
	return set, ok, nil
}

func (s *InMemoryStore) SavePoolConfig(id types.PoolId, key types.PoolKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[id] = key
	return nil
}

func (s *InMemoryStore) LoadPoolConfigs() (map[types.PoolId]types.PoolKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[types.PoolId]types.PoolKey, len(s.pools))
	for k, v := range s.pools {
		out[k] = v
	}
	return out, nil
}

func (s *InMemoryStore) SaveRestingOrder(o *types.OrderWithStorageData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byHash, ok := s.restingOrders[o.PoolId]
	if !ok {
		byHash = make(map[types.Hash]*types.OrderWithStorageData)
		s.restingOrders[o.PoolId] = byHash
	}
	byHash[o.Hash] = o
	return nil
}

func (s *InMemoryStore) DeleteRestingOrder(pool types.PoolId, hash types.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.restingOrders[pool], hash)
	return nil
}

func (s *InMemoryStore) LoadRestingOrders(pool types.PoolId) ([]*types.OrderWithStorageData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byHash := s.restingOrders[pool]
	out := make([]*types.OrderWithStorageData, 0, len(byHash))
	for _, o := range byHash {
		out = append(out, o)
	}
	return out, nil
}

var _ Store = (*InMemoryStore)(nil)
