package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
agent:
  rpc_url: "https://rpc.example"
  contract_address: "0x1111111111111111111111111111111111111111"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.PollInterval())
	assert.InDelta(t, 0.2, cfg.Agent.MinProfitThreshold, 0.0001)
	assert.Equal(t, "AI_AGENT_PRIVATE_KEY", cfg.Agent.PrivateKeyEnv)
	assert.Equal(t, int64(10), cfg.Gas.MaxFeeGwei)
	assert.Equal(t, "merchant_memory.db", cfg.Storage.DSN)
	assert.Equal(t, "agent_status.json", cfg.Status.File)
	assert.Equal(t, ":8000", cfg.Status.ListenAddr)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadRequiresRPCURL(t *testing.T) {
	path := writeConfig(t, `
agent:
  contract_address: "0x1111111111111111111111111111111111111111"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc_url")
}

func TestLoadFactoryModeRequiresFactoryAddress(t *testing.T) {
	path := writeConfig(t, `
agent:
  rpc_url: "https://rpc.example"
  use_factory: true
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "factory_address")
}

func TestPrivateKeyFromEnv(t *testing.T) {
	path := writeConfig(t, `
agent:
  rpc_url: "https://rpc.example"
  contract_address: "0x1111111111111111111111111111111111111111"
  private_key_env: "TEST_AGENT_KEY"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	_, err = cfg.PrivateKey()
	assert.Error(t, err)

	t.Setenv("TEST_AGENT_KEY", "deadbeef")
	key, err := cfg.PrivateKey()
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", key)
}
