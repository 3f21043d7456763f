package config

import (
	"time"

	"ReversalSniper/internal/logger"
)

type Config struct {
	Exchange  ExchangeConfig  `yaml:"exchange"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	Selection SelectionConfig `yaml:"selection"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Learning  LearningConfig  `yaml:"learning"`
	Notify    NotifyConfig    `yaml:"notify"`
	HTTP      HTTPConfig      `yaml:"http"`
	Log       logger.Config   `yaml:"log"`
}

type ExchangeConfig struct {
	APIKey       string        `yaml:"api_key"`
	SecretKey    string        `yaml:"secret_key"`
	BaseURL      string        `yaml:"base_url" validate:"omitempty,url"`
	Timeout      time.Duration `yaml:"timeout" default:"10s" validate:"gt=0"`
	RatePerSec   float64       `yaml:"rate_per_sec" default:"10" validate:"gt=0"`
	Burst        int           `yaml:"burst" default:"20" validate:"gte=1"`
	MaxRetries   uint64        `yaml:"max_retries" default:"3"`
	RetryBackoff time.Duration `yaml:"retry_backoff" default:"250ms" validate:"gt=0"`
}

// DatabaseConfig is optional. Without a host the ledger runs in memory.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" default:"5432" validate:"gte=1,lte=65535"`
	User     string `yaml:"user" validate:"required_with=Host"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname" default:"sniper" validate:"required_with=Host"`
	SSLMode  string `yaml:"sslmode" default:"disable" validate:"oneof=disable require verify-ca verify-full"`
}

// RedisConfig is optional. Without an address cooldown memory stays in process.
type RedisConfig struct {
	Addr     string `yaml:"addr" validate:"omitempty,hostname_port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	Prefix   string `yaml:"prefix" default:"sniper:levels:"`
}

type ScannerConfig struct {
	Symbols      []string        `yaml:"symbols" default:"[\"BTCUSDT\",\"ETHUSDT\",\"SOLUSDT\",\"BNBUSDT\",\"XRPUSDT\"]" validate:"min=1,dive,required,uppercase"`
	Interval     string          `yaml:"interval" default:"15m" validate:"oneof=5m 15m 1h 4h"`
	Lookback     int             `yaml:"lookback" default:"200" validate:"gte=50,lte=1500"`
	FetchTimeout time.Duration   `yaml:"fetch_timeout" default:"10s" validate:"gt=0"`
	FetchDelay   time.Duration   `yaml:"fetch_delay" default:"100ms" validate:"gte=0"`
	Watchlist    WatchlistConfig `yaml:"watchlist"`
}

// WatchlistConfig replaces the static symbols with the most liquid
// perpetuals when enabled. Symbols stay the fallback.
type WatchlistConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Quote        string        `yaml:"quote" default:"USDT" validate:"required,uppercase"`
	Size         int           `yaml:"size" default:"30" validate:"gte=1,lte=200"`
	MinVolumeUSD float64       `yaml:"min_volume_usd" default:"300000" validate:"gte=0"`
	Refresh      time.Duration `yaml:"refresh" default:"1h" validate:"gte=1m"`
	Excluded     []string      `yaml:"excluded" validate:"dive,required,uppercase"`
}

type SchedulerConfig struct {
	Interval     time.Duration `yaml:"interval" default:"15m" validate:"gte=1m"`
	MaxRetries   uint64        `yaml:"max_retries" default:"2"`
	RetryBackoff time.Duration `yaml:"retry_backoff" default:"5s" validate:"gt=0"`
	RunOnStart   bool          `yaml:"run_on_start" default:"true"`
	LockFile     string        `yaml:"lock_file"`
}

type AnalysisConfig struct {
	RSIPeriod       int     `yaml:"rsi_period" default:"14" validate:"gte=2"`
	VWAPWindow      int     `yaml:"vwap_window" default:"100" validate:"gte=10"`
	VolumePeriod    int     `yaml:"volume_period" default:"20" validate:"gte=5"`
	AbnormalVolumeK float64 `yaml:"abnormal_volume_k" default:"1.5" validate:"gt=0"`
	ExtremeVolumeK  float64 `yaml:"extreme_volume_k" default:"2.5" validate:"gtfield=AbnormalVolumeK"`
	ATRPeriod       int     `yaml:"atr_period" default:"14" validate:"gte=2"`
}

type StrategyConfig struct {
	Profile         string    `yaml:"profile" default:"sniper" validate:"oneof=sniper conservative"`
	StopATRMultiple float64   `yaml:"stop_atr_multiple" default:"0.5" validate:"gte=0"`
	StopLossPct     float64   `yaml:"stop_loss_pct" default:"1.0" validate:"gt=0,lt=100"`
	TakeProfitR     []float64 `yaml:"take_profit_r" default:"[2.0,3.0,4.5]" validate:"min=1,max=3,dive,gt=0"`
}

type SelectionConfig struct {
	TradeThreshold   float64       `yaml:"trade_threshold" default:"70" validate:"gt=0,lte=100"`
	WatchThreshold   float64       `yaml:"watch_threshold" default:"55" validate:"gt=0,ltfield=TradeThreshold"`
	MaxTrades        int           `yaml:"max_trades" default:"3" validate:"gte=1"`
	MaxWatch         int           `yaml:"max_watch" default:"4" validate:"gte=0"`
	MaxTradesPerHour int           `yaml:"max_trades_per_hour" default:"3" validate:"gte=1"`
	Cooldown         time.Duration `yaml:"cooldown" default:"1h" validate:"gte=0"`
}

type LedgerConfig struct {
	MaxOpen          int     `yaml:"max_open" default:"3" validate:"gte=1"`
	HistoryCap       int     `yaml:"history_cap" default:"100" validate:"gte=1"`
	Leverage         int     `yaml:"leverage" default:"15" validate:"gte=1,lte=125"`
	InitialBalance   float64 `yaml:"initial_balance" default:"1000" validate:"gt=0"`
	RiskPerTrade     float64 `yaml:"risk_per_trade" default:"0.02" validate:"gt=0,lte=0.5"`
	MaxPositionPct   float64 `yaml:"max_position_pct" default:"0.33" validate:"gt=0,lte=1"`
	MinPositionValue float64 `yaml:"min_position_value" default:"10" validate:"gte=0"`
	Currency         string  `yaml:"currency" default:"USDT" validate:"required"`
}

type LearningConfig struct {
	Enabled    bool `yaml:"enabled" default:"true"`
	Window     int  `yaml:"window" default:"50" validate:"gte=1"`
	MinSamples int  `yaml:"min_samples" default:"10" validate:"gte=1"`
}

type NotifyConfig struct {
	Timeout    time.Duration `yaml:"timeout" default:"5s" validate:"gt=0"`
	Log        bool          `yaml:"log" default:"true"`
	WebhookURL string        `yaml:"webhook_url" validate:"omitempty,url"`
	Kafka      KafkaConfig   `yaml:"kafka"`
}

type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers" validate:"dive,hostname_port"`
	Topic        string        `yaml:"topic" default:"sniper.signals" validate:"required_with=Brokers"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	MaxAttempts  int           `yaml:"max_attempts" default:"3" validate:"gte=1"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s" validate:"gt=0"`
}
