package storage

import (
	"encoding/binary"

	"github.com/angstrom-node/ucpnode/pkg/types"
)

// Key schema for Pebble storage. Unlike the teacher's chained-certificate
// schema (b:<hash> -> Block, c:<view> -> Certificate, cm -> committed hash),
// nothing here is keyed by a hash chain: each height's settlement stands
// alone, so the schema is height- and pool-keyed instead.
//
//	barrier:head          -> current barrier block number
//	bundle:<height>       -> settled BundleSolutionSet for that height
//	pool:<poolid>         -> PoolKey
//	order:<poolid>:<hash> -> resting OrderWithStorageData
const (
	keyBarrierHead = "barrier:head"
	prefixBundle   = "bundle:"
	prefixPool     = "pool:"
	prefixOrder    = "order:"
)

func heightKey(h types.BlockNumber) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(h))
	return k[:]
}

func decodeHeight(b []byte) types.BlockNumber {
	return types.BlockNumber(binary.BigEndian.Uint64(b))
}

func bundleKey(h types.BlockNumber) []byte {
	return append([]byte(prefixBundle), heightKey(h)...)
}

func poolKeyOf(id types.PoolId) []byte {
	return append([]byte(prefixPool), id[:]...)
}

func poolPrefix() []byte { return []byte(prefixPool) }

func orderKeyOf(pool types.PoolId, hash types.Hash) []byte {
	k := append([]byte(prefixOrder), pool[:]...)
	k = append(k, ':')
	return append(k, hash[:]...)
}

func orderPoolPrefix(pool types.PoolId) []byte {
	k := append([]byte(prefixOrder), pool[:]...)
	return append(k, ':')
}

func poolIDFromKey(key []byte) types.PoolId {
	var id types.PoolId
	copy(id[:], key[len(prefixPool):])
	return id
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
