package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/lendkeeper/internal/flagx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJSON(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"network":               "ic",
		"lending_canister_id":   poolID,
		"tracked_ledgers":       []string{"mxzaz-hqaaa-aaaar-qaada-cai"},
		"root_key_retry_delay":  "250ms",
		"balance_poll_interval": "1m",
		"query_rate_limit":      5,
	})

	t.Run("loads from flag", func(t *testing.T) {
		t.Setenv(flagx.ConfigEnv, "")
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJSON(cfg, []string{"-config", path}))

		assert.Equal(t, "ic", cfg.Network)
		assert.Equal(t, poolID, cfg.LendingCanisterID)
		assert.Equal(t, []string{"mxzaz-hqaaa-aaaar-qaada-cai"}, cfg.TrackedLedgers)
		assert.Equal(t, 250*time.Millisecond, cfg.RootKeyRetryDelay)
		assert.Equal(t, time.Minute, cfg.BalancePollInterval)
		assert.InDelta(t, 5.0, cfg.QueryRateLimit, 1e-9)
		assert.Equal(t, 3, cfg.RootKeyAttempts, "unset fields keep defaults")
	})

	t.Run("loads from env", func(t *testing.T) {
		t.Setenv(flagx.ConfigEnv, path)
		cfg := &Config{}
		require.NoError(t, parseJSON(cfg, nil))
		assert.Equal(t, "ic", cfg.Network)
	})

	t.Run("no file means no changes", func(t *testing.T) {
		t.Setenv(flagx.ConfigEnv, "")
		cfg := &Config{Network: "local", Host: "h:1"}
		require.NoError(t, parseJSON(cfg, nil))
		assert.Equal(t, &Config{Network: "local", Host: "h:1"}, cfg)
	})

	t.Run("missing file", func(t *testing.T) {
		require.Error(t, parseJSON(&Config{}, []string{"-c", filepath.Join(t.TempDir(), "nope.json")}))
	})

	t.Run("bad json", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
		require.Error(t, parseJSON(&Config{}, []string{"-c", bad}))
	})
}

func TestFlagsOverrideJSON(t *testing.T) {
	t.Setenv(flagx.ConfigEnv, "")
	path := writeTempJSON(t, map[string]any{"host": "from-json:1", "log_level": "debug"})

	cfg, err := LoadConfig([]string{"-c", path, "-a", "from-flag:2"})
	require.NoError(t, err)
	assert.Equal(t, "from-flag:2", cfg.Host)
	assert.Equal(t, "debug", cfg.LogLevel)
}
