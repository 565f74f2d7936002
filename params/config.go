// Package params loads node configuration from an optional YAML file, a
// local .env file, and environment variables, in that order of increasing
// precedence: a .env entry never overrides a variable that is already set
// in the environment.
package params

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Consensus configures round-robin leader election and phase timing.
type Consensus struct {
	Validators []string      `mapstructure:"validators"`
	Self       string        `mapstructure:"self"`
	SettleWait time.Duration `mapstructure:"settle_wait"`
}

// Node configures this process's own block pacing and on-disk layout.
type Node struct {
	SingleNode bool `mapstructure:"single_node"`
	// MinBlockTime throttles block production to prevent excessive empty
	// blocks in a single-node devnet with the fast path enabled; in a
	// multi-validator network, vote collection and gossip pace block
	// production on their own and this should be left at zero.
	MinBlockTime time.Duration `mapstructure:"min_block_time"`
	DataDir      string        `mapstructure:"data_dir"`
}

// Network configures the libp2p transport gossiping consensus messages
// between validators.
type Network struct {
	ListenAddr string   `mapstructure:"listen_addr"`
	Bootstrap  []string `mapstructure:"bootstrap"`
}

// API configures the REST/WebSocket surface order submission and book
// queries come in through.
type API struct {
	ListenAddr string `mapstructure:"listen_addr"`
	TxLogFile  string `mapstructure:"tx_log_file"`
}

// Oracle configures the rolling gas-to-T0 price window.
type Oracle struct {
	BaseGasToken string `mapstructure:"base_gas_token"`
	WindowBlocks uint64 `mapstructure:"window_blocks"`
}

// Storage configures where durable node state lives.
type Storage struct {
	Path      string `mapstructure:"path"`
	UsePebble bool   `mapstructure:"use_pebble"`
	WALFile   string `mapstructure:"wal_file"`
}

// Matching configures the parts of a pool's uniform-clearing-price solve
// that aren't fixed by its own book/AMM state.
type Matching struct {
	// LPDonationFraction is the share of a pool's collected order fees
	// that goes to LPs via donation rather than straight to the
	// protocol (spec §9 design note).
	LPDonationFraction float64 `mapstructure:"lp_donation_fraction"`
	// DustTolerancePips is the minimum meaningful price gap the
	// bisection solver keeps refining for, expressed in parts-per-million
	// of one unit of the opposite token's price. Zero disables the
	// check and runs the full step budget every solve.
	DustTolerancePips uint32 `mapstructure:"dust_tolerance_pips"`
}

// Config is the unified configuration for a node process.
type Config struct {
	Consensus Consensus `mapstructure:"consensus"`
	Node      Node      `mapstructure:"node"`
	Network   Network   `mapstructure:"network"`
	API       API       `mapstructure:"api"`
	Oracle    Oracle    `mapstructure:"oracle"`
	Storage   Storage   `mapstructure:"storage"`
	Matching  Matching  `mapstructure:"matching"`
}

func setDefaults() {
	viper.SetDefault("consensus.validators", []string{"val1", "val2", "val3", "val4"})
	viper.SetDefault("consensus.self", "val1")
	viper.SetDefault("consensus.settle_wait", 150*time.Millisecond)

	viper.SetDefault("node.single_node", true)
	viper.SetDefault("node.min_block_time", 200*time.Millisecond)
	viper.SetDefault("node.data_dir", "data")

	viper.SetDefault("network.listen_addr", "/ip4/0.0.0.0/tcp/0")
	viper.SetDefault("network.bootstrap", []string{})

	viper.SetDefault("api.listen_addr", ":8080")
	viper.SetDefault("api.tx_log_file", "data/transactions.log")

	viper.SetDefault("oracle.window_blocks", 15)

	viper.SetDefault("storage.path", "data/db")
	viper.SetDefault("storage.use_pebble", false)
	viper.SetDefault("storage.wal_file", "data/settlement.wal")

	viper.SetDefault("matching.lp_donation_fraction", 0.75)
	viper.SetDefault("matching.dust_tolerance_pips", 0)
}

// Load reads config.yaml (if present, at configPath or in the working
// directory), layers environment variables on top of it (dots and dashes
// in a mapstructure path fold to underscores, so consensus.settle_wait
// becomes CONSENSUS_SETTLE_WAIT), and loads a local .env file into the
// process environment for variables not already set there, following the
// teacher's own godotenv-for-local-overrides pattern.
// configPath may be empty.
func Load(configPath string) (Config, error) {
	setDefaults()

	viper.SetConfigType("yaml")
	viper.SetConfigName("config")
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
	}
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// godotenv populates the process environment directly; AutomaticEnv
	// reads through os.Getenv lazily, so no re-bind is needed after this.
	_ = godotenv.Load()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration produced by defaults alone, with no
// config file, environment, or .env layer — used by tests and by callers
// that explicitly want the baked-in validator set.
func Default() Config {
	viper.Reset()
	cfg, _ := Load("")
	return cfg
}
