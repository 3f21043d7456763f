package backtest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ReversalSniper/internal/models"
	"ReversalSniper/internal/services/analysis"
	"ReversalSniper/internal/services/params"
	"ReversalSniper/internal/services/strategy"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func candle(at time.Time, open, close, volume float64) models.Candle {
	high, low := open, close
	if close > high {
		high, low = close, open
	}
	return models.Candle{OpenTime: at, Open: open, High: high + 0.2, Low: low - 0.2, Close: close, Volume: volume}
}

// slideAndRally is a long decline, a high volume hammer sweeping the low
// and a steady recovery
func slideAndRally(rally int) []models.Candle {
	var out []models.Candle
	price := 200.0
	for i := 0; i < 120; i++ {
		out = append(out, candle(t0.Add(time.Duration(i)*15*time.Minute), price, price-0.5, 10))
		price -= 0.5
	}
	last := out[len(out)-1]
	flush := models.Candle{
		OpenTime: last.OpenTime.Add(15 * time.Minute),
		Open:     last.Close,
		High:     last.Close + 0.3,
		Low:      last.Close - 1.2,
		Close:    last.Close + 0.1,
		Volume:   60,
	}
	out = append(out, flush)
	price = flush.Close
	for i := 1; i <= rally; i++ {
		out = append(out, candle(flush.OpenTime.Add(time.Duration(i)*15*time.Minute), price, price+1, 12))
		price++
	}
	return out
}

type fakeSource struct {
	candles map[string][]models.Candle
	err     error
}

func (f *fakeSource) HistoricalCandles(_ context.Context, symbol string, _ models.TimeFrame, start, end time.Time) ([]models.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Candle
	for _, c := range f.candles[symbol] {
		if !c.OpenTime.Before(start) && !c.OpenTime.After(end) {
			out = append(out, c)
		}
	}
	return out, nil
}

func newEngine(t *testing.T, source CandleSource, cfg Config) *Engine {
	t.Helper()
	analyzer, err := analysis.NewAnalyzer(analysis.DefaultConfig())
	require.NoError(t, err)
	scorer, err := strategy.NewScorer(strategy.DefaultProfile())
	require.NoError(t, err)
	manager, err := strategy.NewStrategyManager(scorer, strategy.DefaultLevelConfig())
	require.NoError(t, err)
	return NewEngine(source, analyzer, manager, cfg, zerolog.Nop())
}

func TestReplayTakesProfitOnRally(t *testing.T) {
	candles := slideAndRally(15)
	flush := candles[120]

	cfg := NewConfig()
	cfg.Symbols = []string{"SOLUSDT"}
	cfg.StartTime = flush.OpenTime
	cfg.EndTime = candles[len(candles)-1].OpenTime

	results, err := newEngine(t, &fakeSource{candles: map[string][]models.Candle{"SOLUSDT": candles}}, cfg).
		RunBacktest(context.Background(), params.Defaults())
	require.NoError(t, err)

	assert.Equal(t, 16, results.Bars)
	assert.GreaterOrEqual(t, results.Candidates, 1)
	require.NotEmpty(t, results.Trades)

	first := results.Trades[0]
	assert.Equal(t, "SOLUSDT", first.Symbol)
	assert.Equal(t, models.DirectionLong, first.Direction)
	assert.Equal(t, flush.Close, first.EntryPrice)
	assert.True(t, strings.HasPrefix(string(first.ExitReason), "take_profit"), "exit %s", first.ExitReason)
	assert.Positive(t, first.PnL)
	assert.True(t, first.ExitTime.After(first.EntryTime))

	assert.Equal(t, results.WinningTrades+results.LosingTrades, results.TotalTrades)
	assert.InDelta(t, 1000+results.TotalPnL, results.FinalBalance, 1e-6)
	assert.Equal(t, 1000.0, results.EquityCurve[0].Balance)
	assert.Len(t, results.EquityCurve, results.TotalTrades+1)
}

func TestReplayWithoutSetupsTradesNothing(t *testing.T) {
	var flat []models.Candle
	for i := 0; i < 260; i++ {
		flat = append(flat, candle(t0.Add(time.Duration(i)*15*time.Minute), 100, 100, 10))
	}

	cfg := NewConfig()
	cfg.Symbols = []string{"BTCUSDT"}
	cfg.StartTime = flat[200].OpenTime
	cfg.EndTime = flat[259].OpenTime
	cfg.Adaptive = true

	results, err := newEngine(t, &fakeSource{candles: map[string][]models.Candle{"BTCUSDT": flat}}, cfg).
		RunBacktest(context.Background(), params.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 60, results.Bars)
	assert.Zero(t, results.TotalTrades)
	assert.Zero(t, results.OpenAtEnd)
	assert.Equal(t, 1000.0, results.FinalBalance)
	assert.Zero(t, results.MaxDrawdown)
	assert.Equal(t, params.Defaults().MinConfidence, results.Parameters.MinConfidence)
}

func TestRunBacktestErrors(t *testing.T) {
	cfg := NewConfig()
	cfg.Symbols = []string{"BTCUSDT"}
	cfg.StartTime = t0
	cfg.EndTime = t0

	_, err := newEngine(t, &fakeSource{}, cfg).RunBacktest(context.Background(), params.Defaults())
	assert.Error(t, err)

	cfg.EndTime = t0.Add(time.Hour)
	down := errors.New("exchange down")
	_, err = newEngine(t, &fakeSource{err: down}, cfg).RunBacktest(context.Background(), params.Defaults())
	assert.ErrorIs(t, err, down)

	cfg.Interval = models.TimeFrame("2w")
	_, err = newEngine(t, &fakeSource{}, cfg).RunBacktest(context.Background(), params.Defaults())
	assert.Error(t, err)
}

func TestMaxDrawdown(t *testing.T) {
	curve := []EquityPoint{{Balance: 100}, {Balance: 120}, {Balance: 90}, {Balance: 130}, {Balance: 117}}
	assert.InDelta(t, 0.25, maxDrawdown(curve), 1e-9)
	assert.Zero(t, maxDrawdown([]EquityPoint{{Balance: 100}, {Balance: 110}}))
	assert.Zero(t, maxDrawdown(nil))
}

func TestSharpeRatio(t *testing.T) {
	assert.Zero(t, sharpeRatio([]EquityPoint{{Balance: 100}, {Balance: 110}}))

	up := sharpeRatio([]EquityPoint{{Balance: 100}, {Balance: 110}, {Balance: 115}, {Balance: 112}})
	assert.Positive(t, up)
}
