package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/angstrom-node/ucpnode/params"
	"github.com/angstrom-node/ucpnode/pkg/abci"
	"github.com/angstrom-node/ucpnode/pkg/api"
	"github.com/angstrom-node/ucpnode/pkg/bundle"
	"github.com/angstrom-node/ucpnode/pkg/chainevents"
	"github.com/angstrom-node/ucpnode/pkg/consensus"
	"github.com/angstrom-node/ucpnode/pkg/crypto"
	"github.com/angstrom-node/ucpnode/pkg/fixedpoint"
	"github.com/angstrom-node/ucpnode/pkg/matching"
	"github.com/angstrom-node/ucpnode/pkg/orderpool"
	"github.com/angstrom-node/ucpnode/pkg/p2p"
	"github.com/angstrom-node/ucpnode/pkg/storage"
	"github.com/angstrom-node/ucpnode/pkg/types"
	"github.com/angstrom-node/ucpnode/pkg/util"
)

func main() {
	cfg, err := params.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := os.MkdirAll(cfg.Node.DataDir, 0755); err != nil {
		log.Fatalf("data dir: %v", err)
	}

	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = cfg.Node.DataDir + "/node.log"
	}
	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	signer, err := loadSigner()
	if err != nil {
		sugar.Fatalw("signer_init_failed", "err", err)
	}
	self := signer.Address()
	sugar.Infow("node_identity", "address", self.Hex())

	validators := parseValidators(cfg.Consensus.Validators)
	if cfg.Node.SingleNode {
		validators = []types.Address{self}
	}

	// ---- Durable state ----
	var store storage.Store
	if cfg.Storage.UsePebble {
		ps, err := storage.NewPebbleStore(cfg.Storage.Path)
		if err != nil {
			sugar.Fatalw("pebble_open_failed", "err", err, "path", cfg.Storage.Path)
		}
		defer ps.Close()
		store = ps
	} else {
		store = storage.NewInMemoryStore()
	}

	wal, err := storage.NewFileWAL(cfg.Storage.WALFile)
	if err != nil {
		sugar.Fatalw("wal_open_failed", "err", err, "path", cfg.Storage.WALFile)
	}
	defer wal.Close()

	// ---- Order book and pool registry, restored from the last run ----
	bookStorage := orderpool.NewOrderStorage()
	pools := chainevents.NewPoolConfigStore()

	persisted, err := store.LoadPoolConfigs()
	if err != nil {
		sugar.Fatalw("load_pool_configs_failed", "err", err)
	}
	for id, key := range persisted {
		pools.AddPool(id, key)
		bookStorage.NewPool(id)

		orders, err := store.LoadRestingOrders(id)
		if err != nil {
			sugar.Fatalw("load_resting_orders_failed", "err", err, "pool", id.String())
		}
		for _, o := range orders {
			if o.Order != nil && o.Order.Kind == types.KindTopOfBlock {
				bookStorage.AddSearcherOrder(o)
			} else {
				bookStorage.AddLimitOrder(o)
			}
		}
	}
	sugar.Infow("state_restored", "pools", pools.Len())

	// ---- API server ----
	eip712 := crypto.NewEIP712Signer(crypto.DefaultDomain())
	apiServer := api.NewServer(bookStorage, pools, eip712)

	// ---- ABCI bridge: settles a finalized bundle to durable state and
	// fans it out to API subscribers ----
	settle := func(height types.BlockNumber, set *bundle.BundleSolutionSet) error {
		if err := store.SaveBarrierHead(height); err != nil {
			return err
		}
		if set == nil {
			wal.Append("empty_block height=" + strconv.FormatUint(uint64(height), 10))
			return nil
		}
		if err := store.SaveBundle(height, set); err != nil {
			return err
		}
		wal.Append("settled height=" + strconv.FormatUint(uint64(height), 10) +
			" pools=" + strconv.Itoa(len(set.Pools)))
		apiServer.BroadcastBundle(height, set)
		for _, p := range set.Pools {
			apiServer.BroadcastOrderbook(p.PoolId, int64(height))
		}
		return nil
	}

	matcherConfig := matching.MatcherConfig{
		LPDonationFraction: cfg.Matching.LPDonationFraction,
		DustToleranceRay:   dustToleranceRay(cfg.Matching.DustTolerancePips),
	}
	app := abci.NewApp(bookStorage, pools, 0, matcherConfig, settle, sugar)

	// ---- Network ----
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	net, err := p2p.NewLibp2pNet(ctx, p2p.Libp2pConfig{
		ListenAddr: cfg.Network.ListenAddr,
		Bootstrap:  cfg.Network.Bootstrap,
		Logger:     sugar,
	})
	if err != nil {
		sugar.Fatalw("libp2p_init_failed", "err", err)
	}

	// ---- Consensus ----
	elector := consensus.RoundRobinElector{Validators: validators}
	wait := consensus.NewWaitTrigger(cfg.Consensus.SettleWait, 4*cfg.Consensus.SettleWait)
	engine := consensus.NewEngine(self, validators, elector, app, net, signer, consensus.PhaseTimers{SettleWait: cfg.Consensus.SettleWait}, wait, util.RealClock{})
	engine.Logger = sugar
	engine.VerboseLogging = os.Getenv("VERBOSE") == "true"

	net.SetHandlers(p2p.Handlers{OnMessage: engine.Deliver})

	var currentHeight atomic.Uint64
	apiServer.SetHeightSource(func() (int64, bool, int) {
		h := types.BlockNumber(currentHeight.Load())
		return int64(h), elector.LeaderOf(h) == self, len(validators)
	})

	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.API.ListenAddr)
		if err := apiServer.Start(cfg.API.ListenAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	barrier, _, err := store.LoadBarrierHead()
	if err != nil {
		sugar.Fatalw("load_barrier_head_failed", "err", err)
	}
	startHeight := barrier + 1

	sugar.Infow("node_starting",
		"validators", len(validators),
		"single_node", cfg.Node.SingleNode,
		"start_height", startHeight)

	currentHeight.Store(uint64(startHeight))
	engine.StartRound(startHeight)

	go func() {
		pollInterval := cfg.Node.MinBlockTime
		if pollInterval <= 0 {
			pollInterval = 20 * time.Millisecond
		}
		nextHeight := func(finished types.BlockNumber) types.BlockNumber {
			next := finished + 1
			currentHeight.Store(uint64(next))
			return next
		}
		if err := engine.Run(ctx, pollInterval, nextHeight); err != nil && ctx.Err() == nil {
			sugar.Fatalw("engine_failed", "err", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutting down")
}

// loadSigner loads this node's validator key from NODE_PRIVATE_KEY, or
// generates an ephemeral one for devnet bring-up when unset — the
// single-node default a fresh checkout runs with before any key
// provisioning has happened.
func loadSigner() (*crypto.Signer, error) {
	if hexKey := os.Getenv("NODE_PRIVATE_KEY"); hexKey != "" {
		return crypto.FromPrivateKeyHex(hexKey)
	}
	return crypto.GenerateKey()
}

func parseValidators(raw []string) []types.Address {
	out := make([]types.Address, 0, len(raw))
	for _, s := range raw {
		out = append(out, common.HexToAddress(s))
	}
	return out
}

// dustToleranceRay turns a parts-per-million config knob into the Ray the
// matcher's bisection loop compares bracket widths against; zero pips
// leaves the dust check disabled.
func dustToleranceRay(pips uint32) fixedpoint.Ray {
	if pips == 0 {
		return fixedpoint.Ray{}
	}
	if pips > 1_000_000 {
		pips = 1_000_000
	}
	return fixedpoint.RayFromUint64(1).ScaleToFee(1_000_000 - pips)
}

