package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/angstrom-node/ucpnode/pkg/bundle"
	"github.com/angstrom-node/ucpnode/pkg/types"
)

// PebbleStore is the durable Store backing, generalizing the teacher's own
// PebbleStore (which paired a consensus BlockStore with a perp account/
// position/trade ledger) to this domain's Store contract. Records are JSON
// rather than the teacher's gob encoding for consensus state: every type
// crossing this boundary (BundleSolutionSet, PoolKey,
// OrderWithStorageData) embeds fixedpoint.Ray/SqrtPriceX96 at some depth,
// and Ray/SqrtPriceX96's sole field is unexported — gob requires at least
// one exported field and would reject them outright, so they carry their
// own MarshalJSON instead (see pkg/fixedpoint).
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

func (s *PebbleStore) SaveBarrierHead(n types.BlockNumber) error {
	if err := s.db.Set([]byte(keyBarrierHead), heightKey(n), pebble.Sync); err != nil {
		return fmt.Errorf("storage: save barrier head: %w", err)
	}
	return nil
}

func (s *PebbleStore) LoadBarrierHead() (types.BlockNumber, bool, error) {
	val, closer, err := s.db.Get([]byte(keyBarrierHead))
	if err == pebble.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("storage: load barrier head: %w", err)
	}
	defer closer.Close()
	return decodeHeight(val), true, nil
}

func (s *PebbleStore) SaveBundle(height types.BlockNumber, set *bundle.BundleSolutionSet) error {
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("storage: marshal bundle: %w", err)
	}
	if err := s.db.Set(bundleKey(height), data, pebble.Sync); err != nil {
		return fmt.Errorf("storage: save bundle: %w", err)
	}
	return nil
}

func (s *PebbleStore) LoadBundle(height types.BlockNumber) (*bundle.BundleSolutionSet, bool, error) {
	val, closer, err := s.db.Get(bundleKey(height))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: load bundle: %w", err)
	}
	defer closer.Close()

	var set bundle.BundleSolutionSet
	if err := json.Unmarshal(val, &set); err != nil {
		return nil, false, fmt.Errorf("storage: unmarshal bundle: %w", err)
	}
	return &set, true, nil
}

func (s *PebbleStore) SavePoolConfig(id types.PoolId, key types.PoolKey) error {
	data, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("storage: marshal pool config: %w", err)
	}
	if err := s.db.Set(poolKeyOf(id), data, pebble.Sync); err != nil {
		return fmt.Errorf("storage: save pool config: %w", err)
	}
	return nil
}

func (s *PebbleStore) LoadPoolConfigs() (map[types.PoolId]types.PoolKey, error) {
	prefix := poolPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: iterate pool configs: %w", err)
	}
	defer iter.Close()

	out := make(map[types.PoolId]types.PoolKey)
	for iter.First(); iter.Valid(); iter.Next() {
		var key types.PoolKey
		if err := json.Unmarshal(iter.Value(), &key); err != nil {
			continue // a corrupt record shouldn't block startup over every other pool
		}
		out[poolIDFromKey(iter.Key())] = key
	}
	return out, nil
}

func (s *PebbleStore) SaveRestingOrder(o *types.OrderWithStorageData) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("storage: marshal resting order: %w", err)
	}
	if err := s.db.Set(orderKeyOf(o.PoolId, o.Hash), data, pebble.Sync); err != nil {
		return fmt.Errorf("storage: save resting order: %w", err)
	}
	return nil
}

func (s *PebbleStore) DeleteRestingOrder(pool types.PoolId, hash types.Hash) error {
	if err := s.db.Delete(orderKeyOf(pool, hash), pebble.Sync); err != nil {
		return fmt.Errorf("storage: delete resting order: %w", err)
	}
	return nil
}

func (s *PebbleStore) LoadRestingOrders(pool types.PoolId) ([]*types.OrderWithStorageData, error) {
	prefix := orderPoolPrefix(pool)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: iterate resting orders: %w", err)
	}
	defer iter.Close()

	var out []*types.OrderWithStorageData
	for iter.First(); iter.Valid(); iter.Next() {
		var o types.OrderWithStorageData
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			continue
		}
		out = append(out, &o)
	}
	return out, nil
}

var _ Store = (*PebbleStore)(nil)
