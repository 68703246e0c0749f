package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
service:
  name: ledger-test
grpc:
  addr: ":6000"
store:
  backend: sql
  auto_migrate: true
database:
  driver: postgres
  host: db
  port: 5432
  dbname: ledger
engine:
  max_conflict_retries: 3
  conflict_retry_base: 5ms
feed:
  enabled: true
  interval: 250ms
  kafka:
    brokers: ["kafka:9092"]
accounts:
  - id: 1
    opening_balance: "150.00"
  - id: 2
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.yaml", sample))
	require.NoError(t, err)

	assert.Equal(t, "ledger-test", cfg.Service.Name)
	assert.Equal(t, ":6000", cfg.GRPC.Addr)
	assert.Equal(t, ":8081", cfg.Ops.Addr, "default kept")
	assert.Equal(t, BackendSQL, cfg.Store.Backend)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 100, cfg.Database.MaxOpenConns, "default kept")
	assert.EqualValues(t, 3, cfg.Engine.MaxConflictRetries)
	assert.Equal(t, 5*time.Millisecond, cfg.Engine.ConflictRetryBase)
	assert.Equal(t, 250*time.Millisecond, cfg.Feed.Interval)
	assert.Equal(t, 30*time.Second, cfg.Feed.GapTimeout, "default kept")
	assert.Equal(t, []string{"kafka:9092"}, cfg.Feed.Kafka.Brokers)
	assert.Equal(t, "ledger.entries", cfg.Feed.Kafka.Topic)
	require.Len(t, cfg.Accounts, 2)
	assert.Equal(t, "150.00", cfg.Accounts[0].OpeningBalance)
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("LEDGER_GRPC_ADDR", ":7000")
	t.Setenv("LEDGER_DB_HOST", "primary.db")
	t.Setenv("LEDGER_FEED_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("LEDGER_ENGINE_CONFLICT_RETRY_BASE", "10ms")

	cfg, err := Load(writeFile(t, "config.yaml", sample))
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.GRPC.Addr)
	assert.Equal(t, "primary.db", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port, "yaml value kept")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Feed.Kafka.Brokers)
	assert.Equal(t, 10*time.Millisecond, cfg.Engine.ConflictRetryBase)
}

func TestDotenvFile(t *testing.T) {
	env := writeFile(t, ".env", "LEDGER_LOG_LEVEL=debug\n")
	t.Cleanup(func() { _ = os.Unsetenv("LEDGER_LOG_LEVEL") })

	cfg, err := Load("", env, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
}

func TestMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidation(t *testing.T) {
	tests := map[string]string{
		"unknown backend":    "store:\n  backend: redis\n",
		"bad log level":      "log:\n  level: loud\n",
		"feed needs brokers": "feed:\n  enabled: true\n",
		"bad seed id":        "accounts:\n  - id: 0\n",
		"bad seed balance":   "accounts:\n  - id: 1\n    opening_balance: lots\n",
		"bad sql driver":     "store:\n  backend: sql\ndatabase:\n  driver: oracle\n",
		"malformed yaml":     "store: [\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", content))
			assert.Error(t, err)
		})
	}
}
