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
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: production
model:
  order: 3
source:
  symbols: [AAPL, MSFT]
output:
  print_table: false
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, 3, c.Model.Order)
	assert.Equal(t, 5, c.Model.Horizon)
	assert.Equal(t, 10000, c.Model.NumSteps)
	assert.Equal(t, 0.01, c.Model.LearningRate)
	assert.Equal(t, "adam", c.Model.Solver)
	assert.Equal(t, "rate", c.Rank)
	assert.Equal(t, 3.0, c.Thresholds.HighlyBelow)
	assert.Equal(t, -3.0, c.Thresholds.HighlyAbove)
	assert.Equal(t, 15*time.Second, c.Yahoo.Timeout)
	assert.Equal(t, []string{"AAPL", "MSFT"}, c.Source.Symbols)
	assert.False(t, c.Output.PrintTable)
	assert.True(t, c.Metrics.Enabled)
	assert.Equal(t, "info", c.Logger.Level)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"rank":       "rank: alphabetical\n",
		"solver":     "model:\n  solver: sgd\n",
		"order":      "model:\n  order: 0\n",
		"thresholds": "thresholds:\n  along: 5\n",
		"source":     "source:\n  type: clickhouse\n",
		"kafka":      "kafka:\n  enabled: true\n",
		"yaml":       "model: [\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("SYMBOLS", "aapl, msft,GOOG")
	t.Setenv("RANK", "GROWTH")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_ADDR", "redis:6379")

	c, err := LoadWithEnv("")
	require.NoError(t, err)
	assert.Equal(t, []string{"aapl", "msft", "GOOG"}, c.Source.Symbols)
	assert.Equal(t, "growth", c.Rank)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Cache.Redis.Enabled)
	assert.Equal(t, "redis:6379", c.Cache.Redis.Addr)
}

func TestLoadWithEnvValidatesOverrides(t *testing.T) {
	t.Setenv("SOURCE", "bloomberg")
	_, err := LoadWithEnv("")
	assert.Error(t, err)
}

func TestResolveSymbols(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "symbols_list.txt")
	require.NoError(t, os.WriteFile(path, []byte("aapl MSFT\nxom\n"), 0o644))
	c.Source.SymbolsFile = path

	got, err := c.ResolveSymbols()
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "XOM"}, got)

	c.Source.Symbols = []string{"IBM"}
	got, err = c.ResolveSymbols()
	require.NoError(t, err)
	assert.Equal(t, []string{"IBM"}, got)

	c.Source.Symbols = nil
	c.Source.SymbolsFile = filepath.Join(t.TempDir(), "none.txt")
	_, err = c.ResolveSymbols()
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitList(" a,b  c,,"))
	assert.Empty(t, SplitList(" , "))
}
