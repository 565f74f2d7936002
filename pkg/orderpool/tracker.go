package orderpool

import (
	"sync"

	"github.com/angstrom-node/ucpnode/pkg/types"
)

// PeerID names the gossip-layer origin of a network order, used for
// propagation scoring; kept as a bare string here so this package doesn't
// need to import the libp2p peer-ID type.
type PeerID string

// OrderTracker is the bookkeeping layer sitting in front of OrderStorage:
// hash→order-id, address→hashes, order-hash→peer-ids for gossip scoring,
// plus the cancelled/seen-invalid/in-flight-validation sets every order
// passes through before it lands in a book (spec §4.F).
type OrderTracker struct {
	mu sync.Mutex

	hashToOrderID   map[types.Hash]uint64
	addressToHashes map[types.Address]map[types.Hash]struct{}
	hashToPeers     map[types.Hash][]PeerID
	cancelled       map[types.Hash]types.Address
	seenInvalid     map[types.Hash]struct{}
	validating      map[types.Hash]struct{}
	parked          map[types.Hash]*types.OrderWithStorageData
}

// NewOrderTracker returns an empty tracker.
func NewOrderTracker() *OrderTracker {
	return &OrderTracker{
		hashToOrderID:   make(map[types.Hash]uint64),
		addressToHashes: make(map[types.Address]map[types.Hash]struct{}),
		hashToPeers:     make(map[types.Hash][]PeerID),
		cancelled:       make(map[types.Hash]types.Address),
		seenInvalid:     make(map[types.Hash]struct{}),
		validating:      make(map[types.Hash]struct{}),
		parked:          make(map[types.Hash]*types.OrderWithStorageData),
	}
}

// TrackPeerID records the gossip peer an order arrived from, if any.
func (t *OrderTracker) TrackPeerID(hash types.Hash, peer *PeerID) {
	if peer == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hashToPeers[hash] = append(t.hashToPeers[hash], *peer)
}

// IsDuplicate reports whether hash is already tracked as order-id'd or
// currently validating.
func (t *OrderTracker) IsDuplicate(hash types.Hash) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, hasID := t.hashToOrderID[hash]
	_, validating := t.validating[hash]
	return hasID || validating
}

func (t *OrderTracker) IsSeenInvalid(hash types.Hash) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seenInvalid[hash]
	return ok
}

func (t *OrderTracker) IsCancelled(hash types.Hash) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.cancelled[hash]
	return ok
}

// IsValidCancel reports whether hash was cancelled by the same user now
// resubmitting it.
func (t *OrderTracker) IsValidCancel(hash types.Hash, from types.Address) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	who, ok := t.cancelled[hash]
	return ok && who == from
}

func (t *OrderTracker) IsValidating(hash types.Hash) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.validating[hash]
	return ok
}

func (t *OrderTracker) StartValidating(hash types.Hash) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.validating[hash] = struct{}{}
}

func (t *OrderTracker) StopValidating(hash types.Hash) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.validating, hash)
}

// NewValidOrder registers a freshly-admitted order's id and owning
// address.
func (t *OrderTracker) NewValidOrder(hash types.Hash, from types.Address, orderID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hashToOrderID[hash] = orderID
	if t.addressToHashes[from] == nil {
		t.addressToHashes[from] = make(map[types.Hash]struct{})
	}
	t.addressToHashes[from][hash] = struct{}{}
}

func (t *OrderTracker) forgetLocked(hash types.Hash, from types.Address) {
	delete(t.hashToOrderID, hash)
	delete(t.hashToPeers, hash)
	if set, ok := t.addressToHashes[from]; ok {
		delete(set, hash)
		if len(set) == 0 {
			delete(t.addressToHashes, from)
		}
	}
}

// CancelOrder removes a user's order from the storage and tracker,
// reporting whether it was a TOB order and which pool it belonged to.
func (t *OrderTracker) CancelOrder(from types.Address, hash types.Hash, storage *OrderStorage) (isTOB bool, poolID types.PoolId, ok bool) {
	removed, found := storage.RemoveOrder(hash)
	if !found {
		return false, types.PoolId{}, false
	}

	t.mu.Lock()
	t.forgetLocked(hash, from)
	t.cancelled[hash] = from
	t.mu.Unlock()

	return removed.Order.Kind == types.KindTopOfBlock, removed.PoolId, true
}

// InvalidVerification marks hash as seen-invalid and returns the peers who
// gossiped it, for reputation scoring by the caller.
func (t *OrderTracker) InvalidVerification(hash types.Hash) []PeerID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seenInvalid[hash] = struct{}{}
	peers := t.hashToPeers[hash]
	delete(t.hashToPeers, hash)
	return peers
}

// ClearInvalid drops the seen-invalid set, since invalidity can be
// state-dependent and a new block may make a previously-invalid order
// valid again. Nothing in this module calls it outside tests.
func (t *OrderTracker) ClearInvalid() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seenInvalid = make(map[types.Hash]struct{})
}

// ParkOrders moves every hash in invalidates out of its book and into the
// parked set, to be re-validated once the order that invalidated them
// settles.
func (t *OrderTracker) ParkOrders(invalidates []types.Hash, storage *OrderStorage) {
	for _, h := range invalidates {
		order, ok := storage.RemoveOrder(h)
		if !ok {
			continue
		}
		t.mu.Lock()
		t.parked[h] = order
		t.mu.Unlock()
	}
}

// PendingOrdersForAddress returns every order tracked for an address,
// resolved through fetch (which may consult the live book or the parked
// set depending on the caller's intent).
func (t *OrderTracker) PendingOrdersForAddress(address types.Address, storage *OrderStorage, fetch func(hash types.Hash, storage *OrderStorage) *types.OrderWithStorageData) []*types.OrderWithStorageData {
	t.mu.Lock()
	hashes := make([]types.Hash, 0, len(t.addressToHashes[address]))
	for h := range t.addressToHashes[address] {
		hashes = append(hashes, h)
	}
	t.mu.Unlock()

	var out []*types.OrderWithStorageData
	for _, h := range hashes {
		if o := fetch(h, storage); o != nil {
			out = append(out, o)
		}
	}
	return out
}

// RemoveParkedOrder pops an order out of the parked set, for re-validation.
func (t *OrderTracker) RemoveParkedOrder(hash types.Hash) *types.OrderWithStorageData {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.parked[hash]
	if !ok {
		return nil
	}
	delete(t.parked, hash)
	return o
}

// EOAStateChanges re-validates every tracked order for the touched
// addresses, typically because their on-chain balance/approval changed.
func (t *OrderTracker) EOAStateChanges(addrs []types.Address, storage *OrderStorage, revalidate func(hash types.Hash, storage *OrderStorage)) {
	for _, a := range addrs {
		t.mu.Lock()
		hashes := make([]types.Hash, 0, len(t.addressToHashes[a]))
		for h := range t.addressToHashes[a] {
			hashes = append(hashes, h)
		}
		t.mu.Unlock()

		for _, h := range hashes {
			revalidate(h, storage)
		}
	}
}

// FilledOrders resolves a block's filled hashes against storage, removing
// each from its book/tracker bookkeeping, and returns the resolved orders.
func (t *OrderTracker) FilledOrders(hashes []types.Hash, storage *OrderStorage) []*types.OrderWithStorageData {
	var out []*types.OrderWithStorageData
	for _, h := range hashes {
		removed, ok := storage.RemoveOrder(h)
		if !ok {
			continue
		}
		t.mu.Lock()
		t.forgetLocked(h, removed.Order.From)
		t.mu.Unlock()
		out = append(out, removed)
	}
	return out
}

// RemoveExpiredOrders drops every standing order whose deadline has
// passed as of blockTime, returning their hashes.
func (t *OrderTracker) RemoveExpiredOrders(blockTime uint64, storage *OrderStorage) []types.Hash {
	var expired []types.Hash
	for _, o := range storage.AllOrders() {
		if o.Order.Kind.IsStanding() && o.Order.Deadline != 0 && o.Order.Deadline <= blockTime {
			expired = append(expired, o.Hash)
		}
	}
	for _, h := range expired {
		removed, ok := storage.RemoveOrder(h)
		if !ok {
			continue
		}
		t.mu.Lock()
		t.forgetLocked(h, removed.Order.From)
		t.mu.Unlock()
	}
	return expired
}
