package backtest

import (
	"context"
	"time"

	"ReversalSniper/internal/models"
	"ReversalSniper/internal/services/learning"
	"ReversalSniper/internal/services/selection"
	"ReversalSniper/internal/services/trading"
)

// CandleSource serves history for a replay
type CandleSource interface {
	HistoricalCandles(ctx context.Context, symbol string, interval models.TimeFrame, start, end time.Time) ([]models.Candle, error)
}

type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Balance   float64   `json:"balance"`
}

type Results struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	OpenAtEnd     int     `json:"open_at_end"`
	WinRate       float64 `json:"win_rate"`
	TotalPnL      float64 `json:"total_pnl"`
	AveragePnL    float64 `json:"average_pnl"`

	MaxDrawdown  float64 `json:"max_drawdown"`
	FinalBalance float64 `json:"final_balance"`
	SharpeRatio  float64 `json:"sharpe_ratio"`

	Bars       int               `json:"bars"`
	Candidates int               `json:"candidates"`
	Parameters models.Parameters `json:"parameters"`

	Trades      []models.Trade `json:"trades"`
	EquityCurve []EquityPoint  `json:"equity_curve"`
}

type Config struct {
	Symbols   []string
	Interval  models.TimeFrame
	Window    int // candles handed to the analyzer per bar
	StartTime time.Time
	EndTime   time.Time

	// Adaptive lets the learning engine retune parameters as trades close
	Adaptive bool

	Ledger    trading.Config
	Selection selection.Config
	Learning  learning.Config
}

func NewConfig() Config {
	ledger := trading.DefaultConfig()
	ledger.HistoryCap = 100000

	return Config{
		Interval:  models.TimeFrame15m,
		Window:    200,
		Ledger:    ledger,
		Selection: selection.DefaultConfig(),
		Learning:  learning.DefaultConfig(),
	}
}
