// Package types holds the core data model shared across the node: opaque
// chain identifiers, pool identifiers, tick bounds, and the order/priority
// shapes that flow from the RPC surface through validation, the order pool,
// and into the matcher.
package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Address is a 20-byte EVM account or contract address.
type Address = common.Address

// Hash is a 32-byte digest, typically an EIP-712 order hash or a block hash.
type Hash = common.Hash

// BlockNumber is a canonical chain height.
type BlockNumber uint64

// Tick is a signed 24-bit log-price index. Liquidity is piecewise-constant
// between adjacent initialized ticks.
type Tick int32

const (
	// MinTick and MaxTick bound the domain every Tick must lie within.
	MinTick Tick = -887272
	MaxTick Tick = 887272
)

// InRange reports whether t lies within [MinTick, MaxTick].
func (t Tick) InRange() bool { return t >= MinTick && t <= MaxTick }

// TickSpacing is the positive granularity a pool's initialized ticks must
// be divisible by.
type TickSpacing int32

// Aligned reports whether t is divisible by the spacing.
func (s TickSpacing) Aligned(t Tick) bool {
	if s <= 0 {
		return false
	}
	return int32(t)%int32(s) == 0
}

// PoolId stably identifies an AMM pool. It is derived from the unordered
// pair (token0, token1) plus the pool's fee/spacing/hooks parameters by
// whatever on-chain pool-key hashing the execution client uses; the core
// treats it as an opaque comparable key.
type PoolId Hash

func (p PoolId) String() string { return Hash(p).Hex() }

// PoolKey is the bit-exact wire shape the execution client expects when
// identifying a pool: currency0 < currency1 is enforced by the constructor.
type PoolKey struct {
	Currency0 Address
	Currency1 Address
	FeePips   uint32 // u24 on the wire; stored widened
	Spacing   int32  // i24 on the wire; stored widened
	Hooks     Address
}

// NewPoolKey orders the two currencies and returns the canonical key.
func NewPoolKey(tokenA, tokenB Address, feePips uint32, spacing int32, hooks Address) PoolKey {
	c0, c1 := tokenA, tokenB
	if bytesGreater(c0[:], c1[:]) {
		c0, c1 = c1, c0
	}
	return PoolKey{Currency0: c0, Currency1: c1, FeePips: feePips, Spacing: spacing, Hooks: hooks}
}

func bytesGreater(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}

// Quorum describes a validator set's BFT quorum threshold: N = 3f+1
// validators, quorum = ceil(2N/3).
type Quorum struct {
	N int
}

// Threshold returns ceil(2N/3), the number of distinct validator
// signatures required for a quorum.
func (q Quorum) Threshold() int {
	if q.N <= 0 {
		return 0
	}
	return (2*q.N + 2) / 3
}

// ValidatorID names a member of the known validator set.
type ValidatorID string

func (v ValidatorID) String() string { return string(v) }

// StateError enumerates why an order currently cannot execute (§4.E, §7).
type StateError int

const (
	StateErrNone StateError = iota
	StateErrInsufficientApproval
	StateErrInsufficientBalance
	StateErrInsufficientBoth
	StateErrInvalidNonce
	StateErrBadBlock
)

func (e StateError) String() string {
	switch e {
	case StateErrNone:
		return "none"
	case StateErrInsufficientApproval:
		return "insufficient_approval"
	case StateErrInsufficientBalance:
		return "insufficient_balance"
	case StateErrInsufficientBoth:
		return "insufficient_both"
	case StateErrInvalidNonce:
		return "invalid_nonce"
	case StateErrBadBlock:
		return "bad_block"
	default:
		return fmt.Sprintf("state_error(%d)", int(e))
	}
}
