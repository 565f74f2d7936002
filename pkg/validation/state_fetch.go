// Package validation is the order ingress pipeline: it turns a freshly
// received order into a PendingUserAction against a user's live
// balance/approval state, tracks every user's pending actions in priority
// order, and sweeps out whatever becomes unsupportable as state changes
// (spec §4.E).
package validation

import "github.com/angstrom-node/ucpnode/pkg/types"

// StateFetchUtils is the execution-client boundary: given a user and a
// token, return their current approval and balance. Implementations
// typically read an eth_call against the token contract and the Angstrom
// internal-balance contract; kept as an interface so the pipeline can be
// tested without a live client.
type StateFetchUtils interface {
	FetchApprovalBalance(user, token types.Address) (approval uint64, err error)
	FetchBalance(user, token types.Address) (balance uint64, err error)
	FetchAngstromBalance(user, token types.Address) (balance uint64, err error)
}
