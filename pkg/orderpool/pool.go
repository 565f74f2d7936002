package orderpool

import (
	"sync"

	"github.com/angstrom-node/ucpnode/pkg/types"
)

// PoolBooks is one pool's resting limit orders plus its current TOB
// (searcher) order slot (spec §4.F, §4.G).
type PoolBooks struct {
	Id types.PoolId

	LimitBids *Book
	LimitAsks *Book

	searcher *types.OrderWithStorageData
}

func newPoolBooks(id types.PoolId) *PoolBooks {
	return &PoolBooks{
		Id:        id,
		LimitBids: newBook(true),
		LimitAsks: newBook(false),
	}
}

// Snapshot is the matcher's §4.G input for one pool, built fresh from the
// current books on each match attempt.
type Snapshot struct {
	Bids     []*types.OrderWithStorageData
	Asks     []*types.OrderWithStorageData
	Searcher *types.OrderWithStorageData
}

// OrderStorage owns every pool's books plus the filled-by-block history
// needed to answer reorgs (spec §4.F, §4.D).
type OrderStorage struct {
	mu sync.RWMutex

	pools map[types.PoolId]*PoolBooks

	filledByBlock map[types.BlockNumber][]types.Hash
	filledOrders  map[types.Hash]*types.OrderWithStorageData
}

// NewOrderStorage returns an empty storage with no registered pools.
func NewOrderStorage() *OrderStorage {
	return &OrderStorage{
		pools:         make(map[types.PoolId]*PoolBooks),
		filledByBlock: make(map[types.BlockNumber][]types.Hash),
		filledOrders:  make(map[types.Hash]*types.OrderWithStorageData),
	}
}

// NewPool creates empty limit+searcher books for a pool (spec §4.F).
func (s *OrderStorage) NewPool(id types.PoolId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pools[id]; exists {
		return
	}
	s.pools[id] = newPoolBooks(id)
}

// RemovePool empties and forgets a pool's books.
func (s *OrderStorage) RemovePool(id types.PoolId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pools, id)
}

// AddLimitOrder inserts a resting limit order into the correct side of its
// pool's book.
func (s *OrderStorage) AddLimitOrder(o *types.OrderWithStorageData) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pb, ok := s.pools[o.PoolId]
	if !ok {
		return false
	}
	if o.IsBid {
		pb.LimitBids.Insert(o)
	} else {
		pb.LimitAsks.Insert(o)
	}
	return true
}

// AddSearcherOrder installs a TOB order as the pool's current searcher
// slot, replacing whatever was there (only one TOB order per pool per
// block can win the auction).
func (s *OrderStorage) AddSearcherOrder(o *types.OrderWithStorageData) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pb, ok := s.pools[o.PoolId]
	if !ok {
		return false
	}
	pb.searcher = o
	return true
}

// RemoveOrder removes an order by hash from wherever it rests, searching
// every pool's bid/ask/searcher slots.
func (s *OrderStorage) RemoveOrder(hash types.Hash) (*types.OrderWithStorageData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pb := range s.pools {
		for _, o := range pb.LimitBids.orders {
			if o.Hash == hash {
				pb.LimitBids.Remove(hash)
				return o, true
			}
		}
		for _, o := range pb.LimitAsks.orders {
			if o.Hash == hash {
				pb.LimitAsks.Remove(hash)
				return o, true
			}
		}
		if pb.searcher != nil && pb.searcher.Hash == hash {
			o := pb.searcher
			pb.searcher = nil
			return o, true
		}
	}
	return nil, false
}

// GetOrdersByPool returns a matcher-ready snapshot of one pool's books.
func (s *OrderStorage) GetOrdersByPool(id types.PoolId) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pb, ok := s.pools[id]
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{Bids: pb.LimitBids.Orders(), Asks: pb.LimitAsks.Orders(), Searcher: pb.searcher}, true
}

// AllOrders returns every resting order across every pool, unordered.
func (s *OrderStorage) AllOrders() []*types.OrderWithStorageData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.OrderWithStorageData
	for _, pb := range s.pools {
		out = append(out, pb.LimitBids.Orders()...)
		out = append(out, pb.LimitAsks.Orders()...)
		if pb.searcher != nil {
			out = append(out, pb.searcher)
		}
	}
	return out
}

// AddFilledOrders records which orders filled in block, for reorg
// resolution. It does not remove them from the books.
func (s *OrderStorage) AddFilledOrders(block types.BlockNumber, orders []*types.OrderWithStorageData) {
	if len(orders) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range orders {
		s.filledByBlock[block] = append(s.filledByBlock[block], o.Hash)
		s.filledOrders[o.Hash] = o
	}
}

// Reorg drops the filled-order record for every hash no longer filled
// on the new canonical chain and returns those orders so the caller can
// re-validate and re-admit them.
func (s *OrderStorage) Reorg(stillFilled []types.Hash) []*types.OrderWithStorageData {
	s.mu.Lock()
	defer s.mu.Unlock()

	stillFilledSet := make(map[types.Hash]struct{}, len(stillFilled))
	for _, h := range stillFilled {
		stillFilledSet[h] = struct{}{}
	}

	var unfilled []*types.OrderWithStorageData
	for block, hashes := range s.filledByBlock {
		kept := hashes[:0]
		for _, h := range hashes {
			if _, ok := stillFilledSet[h]; ok {
				kept = append(kept, h)
				continue
			}
			if o, ok := s.filledOrders[h]; ok {
				unfilled = append(unfilled, o)
				delete(s.filledOrders, h)
			}
		}
		if len(kept) == 0 {
			delete(s.filledByBlock, block)
		} else {
			s.filledByBlock[block] = kept
		}
	}
	return unfilled
}

// FinalizedBlock drops filled-order history for block, since it can no
// longer be reorged away.
func (s *OrderStorage) FinalizedBlock(block types.BlockNumber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.filledByBlock[block] {
		delete(s.filledOrders, h)
	}
	delete(s.filledByBlock, block)
}

// FetchStatusOfOrder returns the order for a hash that is currently resting
// or recorded as filled, and false when storage does not know it. The
// result does not say which of the two it found.
func (s *OrderStorage) FetchStatusOfOrder(hash types.Hash) (types.OrderWithStorageData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if o, ok := s.filledOrders[hash]; ok {
		return *o, true
	}
	for _, pb := range s.pools {
		for _, o := range pb.LimitBids.orders {
			if o.Hash == hash {
				return *o, true
			}
		}
		for _, o := range pb.LimitAsks.orders {
			if o.Hash == hash {
				return *o, true
			}
		}
		if pb.searcher != nil && pb.searcher.Hash == hash {
			return *pb.searcher, true
		}
	}
	return types.OrderWithStorageData{}, false
}
