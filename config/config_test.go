package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sniper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT", "XRPUSDT"}, cfg.Scanner.Symbols)
	assert.Equal(t, "15m", cfg.Scanner.Interval)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.Interval)
	assert.True(t, cfg.Scheduler.RunOnStart)
	assert.Equal(t, 70.0, cfg.Selection.TradeThreshold)
	assert.Equal(t, 55.0, cfg.Selection.WatchThreshold)
	assert.Equal(t, []float64{2.0, 3.0, 4.5}, cfg.Strategy.TakeProfitR)
	assert.Equal(t, 15, cfg.Ledger.Leverage)
	assert.Equal(t, "USDT", cfg.Ledger.Currency)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.False(t, cfg.DatabaseEnabled())
	assert.False(t, cfg.Scanner.Watchlist.Enabled)
	assert.Equal(t, 30, cfg.Scanner.Watchlist.Size)
	assert.Equal(t, 300000.0, cfg.Scanner.Watchlist.MinVolumeUSD)
	assert.Equal(t, time.Hour, cfg.Scanner.Watchlist.Refresh)
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := writeFile(t, `
scanner:
  symbols: [ADAUSDT, DOGEUSDT]
  interval: 1h
scheduler:
  interval: 1h
  run_on_start: false
selection:
  trade_threshold: 75
  watch_threshold: 60
database:
  host: db.internal
  user: sniper
log:
  level: debug
`)
	t.Setenv("TRADING_SYMBOLS", "btcusdt, ethusdt")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("BINANCE_API_KEY", "key")
	t.Setenv("WATCHLIST_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Scanner.Symbols)
	assert.Equal(t, "1h", cfg.Scanner.Interval)
	assert.Equal(t, time.Hour, cfg.Scheduler.Interval)
	assert.False(t, cfg.Scheduler.RunOnStart)
	assert.Equal(t, 75.0, cfg.Selection.TradeThreshold)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.True(t, cfg.DatabaseEnabled())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Notify.Kafka.Brokers)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "key", cfg.Exchange.APIKey)
	assert.True(t, cfg.Scanner.Watchlist.Enabled)
	// untouched sections keep their defaults
	assert.Equal(t, 200, cfg.Scanner.Lookback)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"extreme not above abnormal", "analysis:\n  abnormal_volume_k: 2.5\n  extreme_volume_k: 2.0\n"},
		{"watch not below trade", "selection:\n  trade_threshold: 60\n  watch_threshold: 65\n"},
		{"unsupported interval", "scanner:\n  interval: 3m\n"},
		{"empty symbols", "scanner:\n  symbols: []\n"},
		{"unknown profile", "strategy:\n  profile: yolo\n"},
		{"too many targets", "strategy:\n  take_profit_r: [1, 2, 3, 4]\n"},
		{"db host without user", "database:\n  host: db.internal\n"},
		{"scheduler too fast", "scheduler:\n  interval: 10s\n"},
		{"watchlist refresh too fast", "scanner:\n  watchlist:\n    refresh: 5s\n"},
		{"lowercase watchlist exclusion", "scanner:\n  watchlist:\n    excluded: [dogeusdt]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestLoadMalformedFile(t *testing.T) {
	_, err := Load(writeFile(t, "scanner: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestInvalidWatchlistEnv(t *testing.T) {
	t.Setenv("WATCHLIST_ENABLED", "maybe")
	_, err := Load("")
	assert.ErrorContains(t, err, "invalid WATCHLIST_ENABLED")
}

func TestInvalidPortEnv(t *testing.T) {
	t.Setenv("DB_PORT", "five")
	_, err := Load("")
	assert.ErrorContains(t, err, "invalid DB_PORT")
}
