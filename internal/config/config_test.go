package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ownerHex = "0x1000000000000000000000000000000000000001"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("addr", "", "")
	fs.String("owner", "", "")
	fs.String("log-level", "", "")
	fs.String("log-env", "", "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LEDGER_TOKEN__OWNER", ownerHex)

	cfg, err := Load("", "", nil)
	require.NoError(t, err)

	assert.Equal(t, uint8(DefaultDecimals), cfg.Token.Decimals)
	assert.Equal(t, DefaultHTTPAddr, cfg.HTTP.Addr)
	assert.Equal(t, DefaultLogEnv, cfg.Log.Env)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultKafkaTopic, cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.False(t, cfg.Token.ScaleInitialSupply)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, "ledger.yaml", `
token:
  name: CE20V1
  symbol: CE20V1
  decimals: 6
  initial_supply: "1000"
  owner: "0x2000000000000000000000000000000000000002"
http:
  addr: ":9000"
log:
  level: warn
kafka:
  brokers: ["k1:9092", "k2:9092"]
`)
	t.Setenv("LEDGER_HTTP__ADDR", ":9100")
	t.Setenv("LEDGER_TOKEN__SCALE_INITIAL_SUPPLY", "true")

	cfg, err := Load(path, "", testFlags(t, "--addr", ":9200", "--owner", ownerHex))
	require.NoError(t, err)

	assert.Equal(t, "CE20V1", cfg.Token.Name)
	assert.Equal(t, uint8(6), cfg.Token.Decimals)
	assert.Equal(t, "1000", cfg.Token.InitialSupply)
	assert.True(t, cfg.Token.ScaleInitialSupply, "env overrides file")
	assert.Equal(t, ":9200", cfg.HTTP.Addr, "flag overrides env and file")
	assert.Equal(t, ownerHex, cfg.Token.Owner)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_DotenvFile(t *testing.T) {
	envPath := writeFile(t, ".env", "LEDGER_TOKEN__OWNER="+ownerHex+"\nLEDGER_KAFKA__BROKERS=a:1, b:2\n")
	t.Cleanup(func() {
		os.Unsetenv("LEDGER_TOKEN__OWNER")
		os.Unsetenv("LEDGER_KAFKA__BROKERS")
	})

	cfg, err := Load("", envPath, nil)
	require.NoError(t, err)
	assert.Equal(t, ownerHex, cfg.Token.Owner)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
}

func TestLoad_MissingDotenvIgnored(t *testing.T) {
	t.Setenv("LEDGER_TOKEN__OWNER", ownerHex)

	_, err := Load("", filepath.Join(t.TempDir(), "absent.env"), nil)
	assert.NoError(t, err)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		errSubstr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing owner", mutate: func(c *Config) { c.Token.Owner = "" }, errSubstr: "token.owner is required"},
		{name: "bad owner", mutate: func(c *Config) { c.Token.Owner = "0xnope" }, errSubstr: "not a hex address"},
		{name: "bad supply", mutate: func(c *Config) { c.Token.InitialSupply = "12.5" }, errSubstr: "token.initial_supply"},
		{name: "no addr", mutate: func(c *Config) { c.HTTP.Addr = "" }, errSubstr: "http.addr is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				Token: TokenConfig{Owner: ownerHex, InitialSupply: "1000"},
				HTTP:  HTTPConfig{Addr: DefaultHTTPAddr},
			}
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestConfig_LedgerConfig(t *testing.T) {
	cfg := Config{Token: TokenConfig{
		Name:               "CE20V1",
		Symbol:             "CE20",
		Decimals:           18,
		InitialSupply:      "10000",
		ScaleInitialSupply: true,
		Owner:              ownerHex,
	}}

	lc, err := cfg.LedgerConfig()
	require.NoError(t, err)
	assert.Equal(t, "CE20V1", lc.Name)
	assert.Equal(t, "CE20", lc.Symbol)
	assert.Equal(t, uint8(18), lc.Decimals)
	assert.True(t, lc.ScaleInitialSupply)
	assert.Equal(t, uint256.NewInt(10000), lc.InitialSupply)
	assert.Equal(t, common.HexToAddress(ownerHex), lc.Owner)
}
