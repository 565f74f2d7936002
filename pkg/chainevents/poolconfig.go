package chainevents

import (
	"fmt"
	"sync"

	"github.com/angstrom-node/ucpnode/pkg/types"
)

// poolConfigEntry is one pool's on-chain registration as tracked by the
// cleanser, including the dense store_index the bundle-encoding layer uses
// to reference pools compactly (spec §4.D, §6).
type poolConfigEntry struct {
	Key        types.PoolKey
	ID         types.PoolId
	StoreIndex uint32
}

// PoolConfigStore is the in-memory mirror of the pool-registry contract's
// admin state, kept dense: removing a pool decrements every other pool's
// store_index that was strictly greater than the removed one, so indexes
// never develop holes.
type PoolConfigStore struct {
	mu      sync.RWMutex
	byID    map[types.PoolId]*poolConfigEntry
	byIndex []types.PoolId // byIndex[i] is the pool currently holding store_index i
}

// NewPoolConfigStore returns an empty registry.
func NewPoolConfigStore() *PoolConfigStore {
	return &PoolConfigStore{byID: make(map[types.PoolId]*poolConfigEntry)}
}

// AddPool registers a new pool, appending it at the next free store_index.
func (s *PoolConfigStore) AddPool(id types.PoolId, key types.PoolKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[id]; exists {
		return
	}
	entry := &poolConfigEntry{Key: key, ID: id, StoreIndex: uint32(len(s.byIndex))}
	s.byID[id] = entry
	s.byIndex = append(s.byIndex, id)
}

// RemovePool removes a pool and decrements the store_index of every pool
// that was registered after it, keeping the index space dense.
func (s *PoolConfigStore) RemovePool(id types.PoolId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("chainevents: unknown pool %s", id.String())
	}
	removedIdx := entry.StoreIndex
	delete(s.byID, id)

	s.byIndex = append(s.byIndex[:removedIdx], s.byIndex[removedIdx+1:]...)
	for i := removedIdx; i < uint32(len(s.byIndex)); i++ {
		s.byID[s.byIndex[i]].StoreIndex = i
	}
	return nil
}

// Get returns the registration for a pool, if tracked.
func (s *PoolConfigStore) Get(id types.PoolId) (types.PoolKey, uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return types.PoolKey{}, 0, false
	}
	return e.Key, e.StoreIndex, true
}

// ByStoreIndex returns the pool currently occupying a given index.
func (s *PoolConfigStore) ByStoreIndex(idx uint32) (types.PoolId, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(idx) >= len(s.byIndex) {
		return types.PoolId{}, false
	}
	return s.byIndex[idx], true
}

// Len returns the number of tracked pools.
func (s *PoolConfigStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byIndex)
}

// Apply folds a decoded admin event into the store. Node admin events are
// tracked by the validator set, not the pool registry, and are ignored here.
func (s *PoolConfigStore) Apply(ev PoolAdminEvent, id types.PoolId) error {
	switch ev.Kind {
	case PoolAdded:
		s.AddPool(id, ev.Pool)
		return nil
	case PoolRemoved:
		return s.RemovePool(id)
	default:
		return nil
	}
}
