// Package orderpool owns per-pool resting order books, the tracker that
// maps order hashes to peers/addresses/ids for gossip scoring and
// cancellation, and the pool lifecycle hooks the chain-event cleanser
// drives as pools are registered and removed (spec §4.F).
package orderpool

import (
	"sort"

	"github.com/angstrom-node/ucpnode/pkg/types"
)

// Book holds one side's resting orders for one pool, kept sorted by the
// price/volume/gas/hash ordering policy (spec §4.F): bids descending by
// effective price, asks ascending, ties broken by larger volume, then
// higher gas bid, then ascending hash.
type Book struct {
	isBid  bool
	orders []*types.OrderWithStorageData
}

func newBook(isBid bool) *Book {
	return &Book{isBid: isBid}
}

// Insert adds an order and re-sorts the book.
func (b *Book) Insert(o *types.OrderWithStorageData) {
	b.orders = append(b.orders, o)
	b.sort()
}

// Remove drops the order with the given hash, reporting whether it was
// present.
func (b *Book) Remove(hash types.Hash) bool {
	for i, o := range b.orders {
		if o.Hash == hash {
			b.orders = append(b.orders[:i], b.orders[i+1:]...)
			return true
		}
	}
	return false
}

// Orders returns the book's contents in priority order. Callers must not
// mutate the returned slice.
func (b *Book) Orders() []*types.OrderWithStorageData { return b.orders }

func (b *Book) sort() {
	sort.SliceStable(b.orders, func(i, j int) bool {
		return less(b.orders[i], b.orders[j], b.isBid)
	})
}

func less(a, b *types.OrderWithStorageData, isBid bool) bool {
	if cmp := a.Priority.Price.Cmp(b.Priority.Price); cmp != 0 {
		if isBid {
			return cmp > 0
		}
		return cmp < 0
	}
	if a.Priority.Volume != b.Priority.Volume {
		return a.Priority.Volume > b.Priority.Volume
	}
	if a.Priority.GasUnits*a.Priority.Gas != b.Priority.GasUnits*b.Priority.Gas {
		return a.Priority.GasUnits*a.Priority.Gas > b.Priority.GasUnits*b.Priority.Gas
	}
	return lessHash(a.Hash, b.Hash)
}

func lessHash(a, b types.Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
