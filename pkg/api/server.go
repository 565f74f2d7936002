package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/angstrom-node/ucpnode/pkg/bundle"
	"github.com/angstrom-node/ucpnode/pkg/chainevents"
	"github.com/angstrom-node/ucpnode/pkg/crypto"
	"github.com/angstrom-node/ucpnode/pkg/orderpool"
	"github.com/angstrom-node/ucpnode/pkg/types"
)

// Server handles REST API and WebSocket connections over the node's
// resting order book and pool registry, generalizing the teacher's
// perp-market REST surface (markets/accounts/positions) to this domain's
// pools/orderbook/settlements.
type Server struct {
	storage *orderpool.OrderStorage
	pools   *chainevents.PoolConfigStore
	signer  *crypto.EIP712Signer

	router *mux.Router
	hub    *Hub

	heightFn func() (height int64, isLeader bool, validators int)

	txLog *os.File
}

// NewServer wires a Server over the shared order book and pool registry an
// abci.App also reads from, so submissions here and orders a round admits
// both land in the same storage.
func NewServer(storage *orderpool.OrderStorage, pools *chainevents.PoolConfigStore, signer *crypto.EIP712Signer) *Server {
	txLogPath := os.Getenv("TX_LOG_FILE")
	if txLogPath == "" {
		txLogPath = "data/transactions.log"
	}
	os.MkdirAll("data", 0755)

	txLog, err := os.OpenFile(txLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("[api] WARNING: failed to open tx log file %s: %v", txLogPath, err)
		txLog = nil
	} else {
		log.Printf("[api] transaction log: %s", txLogPath)
	}

	s := &Server{
		storage: storage,
		pools:   pools,
		signer:  signer,
		router:  mux.NewRouter(),
		hub:     NewHub(),
		txLog:   txLog,
	}

	s.setupRoutes()
	return s
}

// SetHeightSource wires the chain-status endpoint to the running consensus
// engine, rather than taking an Engine dependency directly: cmd/node is the
// only caller that knows both, and server.go shouldn't import pkg/consensus
// just to read three fields off it.
func (s *Server) SetHeightSource(fn func() (height int64, isLeader bool, validators int)) {
	s.heightFn = fn
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/pools", s.handleListPools).Methods("GET")
	api.HandleFunc("/pools/{poolId}/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/pools/{poolId}/quote", s.handleQuote).Methods("POST")

	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/{hash}", s.handleGetOrderStatus).Methods("GET")

	api.HandleFunc("/chain/status", s.handleGetChainStatus).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	handler := c.Handler(s.router)

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, handler)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleListPools(w http.ResponseWriter, r *http.Request) {
	n := s.pools.Len()
	out := make([]PoolInfo, 0, n)
	for i := uint32(0); i < uint32(n); i++ {
		id, ok := s.pools.ByStoreIndex(i)
		if !ok {
			continue
		}
		key, idx, ok := s.pools.Get(id)
		if !ok {
			continue
		}
		out = append(out, PoolInfo{
			PoolID:     id.String(),
			Currency0:  key.Currency0.Hex(),
			Currency1:  key.Currency1.Hex(),
			FeePips:    key.FeePips,
			Spacing:    key.Spacing,
			Hooks:      key.Hooks.Hex(),
			StoreIndex: idx,
		})
	}
	respondJSON(w, out)
}

func (s *Server) poolFromPath(r *http.Request) (types.PoolId, bool) {
	vars := mux.Vars(r)
	return parsePoolID(vars["poolId"])
}

func parsePoolID(s string) (types.PoolId, bool) {
	if len(s) != 66 || s[:2] != "0x" {
		return types.PoolId{}, false
	}
	return types.PoolId(common.HexToHash(s)), true
}

func (s *Server) snapshotFor(id types.PoolId) (OrderbookSnapshot, bool) {
	snap, ok := s.storage.GetOrdersByPool(id)
	if !ok {
		return OrderbookSnapshot{}, false
	}
	return OrderbookSnapshot{
		PoolID:    id.String(),
		Bids:      snap.Bids,
		Asks:      snap.Asks,
		Searcher:  snap.Searcher,
		Timestamp: time.Now().UnixMilli(),
	}, true
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.poolFromPath(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid pool id", "")
		return
	}
	snapshot, ok := s.snapshotFor(id)
	if !ok {
		respondError(w, http.StatusNotFound, "pool not found", "")
		return
	}
	respondJSON(w, snapshot)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := s.poolFromPath(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid pool id", "")
		return
	}
	if _, _, ok := s.pools.Get(id); !ok {
		respondError(w, http.StatusNotFound, "pool not found", "")
		return
	}

	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	// A quote walks the resting book at its current priority order without
	// admitting anything: a rough fill estimate against what's already
	// resting, deliberately ignoring the AMM leg and the batch-auction
	// clearing price that only gets computed once a round reaches
	// settlement quorum.
	snap, ok := s.storage.GetOrdersByPool(id)
	if !ok {
		respondError(w, http.StatusNotFound, "pool not found", "")
		return
	}

	side := snap.Asks
	if !req.ExactIn {
		side = snap.Bids
	}

	var filled uint64
	var clearing string
	for _, o := range side {
		if filled >= req.Amount {
			break
		}
		remaining := req.Amount - filled
		take := o.Priority.Volume
		if take > remaining {
			take = remaining
		}
		filled += take
		clearing = o.Priority.Price.Uint256().ToBig().String()
	}

	respondJSON(w, QuoteResponse{EstimatedOut: filled, ClearingPrice: clearing})
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body", err.Error())
		return
	}

	var req SubmitOrderRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON order", err.Error())
		return
	}
	if req.Order == nil {
		respondError(w, http.StatusBadRequest, "missing order", "")
		return
	}

	poolID, ok := parsePoolID(req.PoolID)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid pool id", "")
		return
	}
	key, _, ok := s.pools.Get(poolID)
	if !ok {
		respondError(w, http.StatusNotFound, "pool not found", "")
		return
	}
	if req.Order.AssetIn != key.Currency0 && req.Order.AssetIn != key.Currency1 {
		respondError(w, http.StatusBadRequest, "order asset does not belong to pool", "")
		return
	}

	valid, err := s.signer.VerifyOrderSignature(req.Order)
	if err != nil || !valid {
		respondError(w, http.StatusBadRequest, "invalid order signature", fmt.Sprint(err))
		return
	}

	hash := s.signer.HashOrder(req.Order)
	resting := &types.OrderWithStorageData{
		Order:      req.Order,
		Hash:       hash,
		PoolId:     poolID,
		IsBid:      req.Order.IsBid(key.Currency1),
		ValidBlock: req.Order.ValidForBlock,
		Priority: types.PriorityData{
			Price:  req.Order.LimitPrice,
			Volume: req.Order.Amount,
		},
	}

	var accepted bool
	if req.Order.Kind == types.KindTopOfBlock {
		accepted = s.storage.AddSearcherOrder(resting)
	} else {
		accepted = s.storage.AddLimitOrder(resting)
	}
	if !accepted {
		respondError(w, http.StatusInternalServerError, "order pool rejected order", "")
		return
	}

	s.logTransaction("ORDER_SUBMIT", map[string]interface{}{
		"order_hash": hash.Hex(),
		"pool_id":    poolID.String(),
		"from":       req.Order.From.Hex(),
	})

	if snapshot, ok := s.snapshotFor(poolID); ok {
		s.hub.BroadcastToChannel("orderbook:"+poolID.String(), OrderbookUpdate{
			Type: "orderbook", PoolID: poolID.String(), Snapshot: snapshot,
		})
	}

	respondJSON(w, SubmitOrderResponse{Status: "accepted", OrderHash: hash.Hex()})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.OrderHash == "" || req.Owner == "" {
		respondError(w, http.StatusBadRequest, "missing orderHash or owner", "")
		return
	}

	cancel := &crypto.CancelRequest{
		OrderHash: common.HexToHash(req.OrderHash),
		Nonce:     req.Nonce,
		Owner:     common.HexToAddress(req.Owner),
	}
	sig := common.FromHex(req.Signature)
	valid, err := s.signer.VerifyCancelSignature(cancel, sig)
	if err != nil || !valid {
		respondError(w, http.StatusBadRequest, "invalid cancel signature", fmt.Sprint(err))
		return
	}

	order, ok := s.storage.RemoveOrder(cancel.OrderHash)
	if !ok {
		respondError(w, http.StatusNotFound, "order not found", "")
		return
	}
	if order.Order.From != cancel.Owner {
		// put it back; the caller doesn't own this order
		s.storage.AddLimitOrder(order)
		respondError(w, http.StatusForbidden, "order does not belong to owner", "")
		return
	}

	s.logTransaction("ORDER_CANCEL", map[string]interface{}{
		"order_hash": req.OrderHash,
		"owner":      req.Owner,
	})

	respondJSON(w, map[string]string{"status": "cancelled", "orderHash": req.OrderHash})
}

func (s *Server) handleGetOrderStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	hash := common.HexToHash(vars["hash"])

	o, ok := s.storage.FetchStatusOfOrder(hash)
	if !ok {
		respondError(w, http.StatusNotFound, "order not found", "")
		return
	}
	respondJSON(w, o)
}

func (s *Server) handleGetChainStatus(w http.ResponseWriter, r *http.Request) {
	var height int64
	var isLeader bool
	var validators int
	if s.heightFn != nil {
		height, isLeader, validators = s.heightFn()
	}
	respondJSON(w, ChainStatus{Height: height, IsLeader: isLeader, Validators: validators})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast Methods (called from consensus/abci)
// ==============================

// BroadcastOrderbook pushes a pool's current book to subscribers, the hook
// abci.App / cmd/node call after a round admits or settles orders.
func (s *Server) BroadcastOrderbook(poolID types.PoolId, height int64) {
	snapshot, ok := s.snapshotFor(poolID)
	if !ok {
		return
	}
	s.hub.BroadcastToChannel("orderbook:"+poolID.String(), OrderbookUpdate{
		Type: "orderbook", PoolID: poolID.String(), Snapshot: snapshot, Height: height,
	})
}

// BroadcastBundle fans a settled bundle's per-pool results out to each
// pool's settlement channel, the hook a Settler (pkg/storage.Store's
// SaveBundle caller in cmd/node) invokes once a height commits.
func (s *Server) BroadcastBundle(height types.BlockNumber, set *bundle.BundleSolutionSet) {
	if set == nil {
		return
	}
	for _, p := range set.Pools {
		s.hub.BroadcastToChannel("settlement:"+p.PoolId.String(), SettlementUpdate{
			Type: "settlement",
			Info: SettlementInfo{
				Height:        int64(height),
				PoolID:        p.PoolId.String(),
				ClearingPrice: p.Solution.UCP.Uint256().ToBig().String(),
				TotalRewardT0: p.Solution.TotalRewardT0,
				ProtocolFeeT0: p.ProtocolFeeT0,
				Timestamp:     time.Now().UnixMilli(),
			},
		})
	}
}

// ==============================
// Helper Functions
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errMsg, Message: message})
}

func (s *Server) logTransaction(eventType string, data map[string]interface{}) {
	if s.txLog == nil {
		return
	}
	entry := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
		"event":     eventType,
		"data":      data,
	}
	jsonData, err := json.Marshal(entry)
	if err != nil {
		log.Printf("[api] failed to marshal tx log entry: %v", err)
		return
	}
	s.txLog.Write(jsonData)
	s.txLog.Write([]byte("\n"))
}
