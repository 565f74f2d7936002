package params

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestDefaultUsesBakedInValidatorSet(t *testing.T) {
	cfg := Default()

	require.Equal(t, []string{"val1", "val2", "val3", "val4"}, cfg.Consensus.Validators)
	require.Equal(t, "val1", cfg.Consensus.Self)
	require.Equal(t, 150*time.Millisecond, cfg.Consensus.SettleWait)
	require.True(t, cfg.Node.SingleNode)
	require.Equal(t, 200*time.Millisecond, cfg.Node.MinBlockTime)
	require.Equal(t, uint64(15), cfg.Oracle.WindowBlocks)
	require.Equal(t, ":8080", cfg.API.ListenAddr)
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	viper.Reset()
	t.Setenv("CONSENSUS_SELF", "val3")
	t.Setenv("NODE_SINGLE_NODE", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "val3", cfg.Consensus.Self)
	require.False(t, cfg.Node.SingleNode)
	// untouched keys still fall back to defaults
	require.Equal(t, []string{"val1", "val2", "val3", "val4"}, cfg.Consensus.Validators)
}
