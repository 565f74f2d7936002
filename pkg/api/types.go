package api

import "github.com/angstrom-node/ucpnode/pkg/types"

// API response and request types for REST endpoints and WebSocket messages.

// ==============================
// REST Response Types
// ==============================

// PoolInfo is a pool's on-chain registration as the registry tracks it.
type PoolInfo struct {
	PoolID     string `json:"poolId"`
	Currency0  string `json:"currency0"`
	Currency1  string `json:"currency1"`
	FeePips    uint32 `json:"feePips"`
	Spacing    int32  `json:"spacing"`
	Hooks      string `json:"hooks"`
	StoreIndex uint32 `json:"storeIndex"`
}

// OrderbookSnapshot is one pool's resting book, priority-sorted.
type OrderbookSnapshot struct {
	PoolID    string                          `json:"poolId"`
	Bids      []*types.OrderWithStorageData   `json:"bids"`
	Asks      []*types.OrderWithStorageData   `json:"asks"`
	Searcher  *types.OrderWithStorageData     `json:"searcher,omitempty"`
	Timestamp int64                           `json:"timestamp"`
}

// SettlementInfo is one height's finalized result, as broadcast over
// "settlement:<poolId>". No REST endpoint returns it.
type SettlementInfo struct {
	Height        int64  `json:"height"`
	PoolID        string `json:"poolId"`
	ClearingPrice string `json:"clearingPrice"` // Ray decimal string
	TotalRewardT0 uint64 `json:"totalRewardT0"`
	ProtocolFeeT0 uint64 `json:"protocolFeeT0"`
	Timestamp     int64  `json:"timestamp"`
}

// ChainStatus reports this node's view of consensus progress.
type ChainStatus struct {
	Height     int64 `json:"height"`
	Validators int   `json:"validators"`
	IsLeader   bool  `json:"isLeader"`
}

// QuoteRequest is the payload for POST /api/v1/pools/{poolId}/quote.
type QuoteRequest struct {
	AssetIn  string `json:"assetIn"`
	AssetOut string `json:"assetOut"`
	Amount   uint64 `json:"amount"`
	ExactIn  bool   `json:"exactIn"`
}

// QuoteResponse estimates a fill by walking the pool's current resting
// book, without admitting anything. The AMM snapshot is not consulted, and
// ClearingPrice is the limit price of the last resting order the walk
// reached.
type QuoteResponse struct {
	EstimatedOut  uint64 `json:"estimatedOut"`
	ClearingPrice string `json:"clearingPrice"` // Ray decimal string
}

// ==============================
// WebSocket Message Types
// ==============================

// WSMessage is the base structure for all WebSocket messages.
type WSMessage struct {
	Type string      `json:"type"` // "orderbook", "settlement"
	Data interface{} `json:"data"`
}

// WSSubscribeRequest is sent by a client to subscribe to channels.
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g. ["orderbook:<poolId>", "settlement:<poolId>"]
}

// OrderbookUpdate is broadcast whenever a pool's resting book is touched by
// an admitted order or a settled height.
type OrderbookUpdate struct {
	Type      string `json:"type"` // "orderbook"
	PoolID    string `json:"poolId"`
	Snapshot  OrderbookSnapshot `json:"snapshot"`
	Height    int64  `json:"height"`
}

// SettlementUpdate is broadcast when a height's Proposal settles a pool.
type SettlementUpdate struct {
	Type string         `json:"type"` // "settlement"
	Info SettlementInfo `json:"info"`
}

// ==============================
// REST Request Types
// ==============================

// SubmitOrderRequest wraps a types.Order for POST /api/v1/orders. PoolID
// names the pool this order trades against (the client already knows it
// from the /pools listing); every field of types.Order itself round-trips
// through JSON already (fixedpoint.Ray and go-ethereum's Address/Hash both
// carry their own MarshalJSON), so the order body is the domain type
// directly rather than a bespoke DTO.
type SubmitOrderRequest struct {
	PoolID string       `json:"poolId"`
	Order  *types.Order `json:"order"`
}

// CancelOrderRequest is the EIP-712-signed cancellation payload for POST
// /api/v1/orders/cancel, carried over the wire as hex strings.
type CancelOrderRequest struct {
	OrderHash string `json:"orderHash"`
	Nonce     uint64 `json:"nonce"`
	Owner     string `json:"owner"`
	Signature string `json:"signature"` // hex-encoded 65-byte ECDSA signature
}

// SubmitOrderResponse is the response from order submission.
type SubmitOrderResponse struct {
	Status    string `json:"status"` // "accepted", "rejected"
	OrderHash string `json:"orderHash"`
	Message   string `json:"message,omitempty"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
