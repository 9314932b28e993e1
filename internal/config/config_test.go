package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "app:\n  name: test-sweeper\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-sweeper", cfg.App.Name)
	assert.Equal(t, uint64(8453), cfg.Ethereum.ChainID)
	assert.Equal(t, 2*time.Minute, cfg.Ethereum.ReceiptTimeout)
	assert.Equal(t, "https://api.0x.org", cfg.Quote.BaseURL)
	assert.Equal(t, QuoteModeDirect, cfg.Quote.Mode)
	assert.Equal(t, 500, cfg.Quote.SlippageBps)
	assert.Equal(t, 100, cfg.Quote.FeeBps)
	assert.Equal(t, time.Second, cfg.Sweep.RequestDelay)
	assert.Equal(t, 100, cfg.Sweep.Percent)
	assert.Equal(t, 0, cfg.Sweep.SafetyMarginBps)
	assert.Equal(t, "USDC", cfg.Sweep.Target)
	assert.Equal(t, 5*time.Minute, cfg.Holdings.CacheTTL)
	assert.Equal(t, DenylistMemory, cfg.Denylist.Backend)
	assert.Equal(t, 8090, cfg.API.Port)
}

func TestLoad_FileOverrides(t *testing.T) {
	path := writeConfig(t, `
quote:
  mode: permit
  slippage_bps: 100
sweep:
  percent: 50
  safety_margin_bps: 100
  request_delay: 250ms
holdings:
  tokens:
    - "0x4200000000000000000000000000000000000006"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, QuoteModePermit, cfg.Quote.Mode)
	assert.Equal(t, 100, cfg.Quote.SlippageBps)
	assert.Equal(t, 50, cfg.Sweep.Percent)
	assert.Equal(t, 100, cfg.Sweep.SafetyMarginBps)
	assert.Equal(t, 250*time.Millisecond, cfg.Sweep.RequestDelay)
	require.Len(t, cfg.Holdings.TokenAddresses(), 1)
}

func TestLoad_EnvSecrets(t *testing.T) {
	t.Setenv("ZEROX_API_KEY", "test-key")
	t.Setenv("SWEEP_RPC_URL", "http://localhost:8545")

	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.Quote.APIKey)
	assert.Equal(t, "http://localhost:8545", cfg.Ethereum.RPCURL)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Ethereum: EthereumConfig{RPCURL: "http://rpc", ChainID: 8453},
			Quote:    QuoteConfig{BaseURL: "http://q", Mode: QuoteModeDirect, SlippageBps: 500},
			Sweep: SweepConfig{
				Percent:        100,
				NativeSentinel: "0x0000000000000000000000000000000000000000",
			},
			Denylist: DenylistConfig{Backend: DenylistMemory},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing rpc", func(c *Config) { c.Ethereum.RPCURL = "" }},
		{"bad mode", func(c *Config) { c.Quote.Mode = "bridge" }},
		{"percent not multiple of 5", func(c *Config) { c.Sweep.Percent = 33 }},
		{"percent zero", func(c *Config) { c.Sweep.Percent = 0 }},
		{"margin too large", func(c *Config) { c.Sweep.SafetyMarginBps = 10_000 }},
		{"file backend without path", func(c *Config) { c.Denylist.Backend = DenylistFile }},
		{"postgres backend without dsn", func(c *Config) { c.Denylist.Backend = DenylistPostgres }},
		{"bad fee recipient", func(c *Config) { c.Quote.FeeRecipient = "nope" }},
		{"bad holdings token", func(c *Config) { c.Holdings.Tokens = []string{"0x12"} }},
		{"scheduler without cron", func(c *Config) { c.Scheduler.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
