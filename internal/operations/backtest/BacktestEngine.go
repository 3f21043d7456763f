package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"ReversalSniper/internal/cache"
	"ReversalSniper/internal/models"
	"ReversalSniper/internal/services/analysis"
	"ReversalSniper/internal/services/learning"
	"ReversalSniper/internal/services/params"
	"ReversalSniper/internal/services/selection"
	"ReversalSniper/internal/services/strategy"
	"ReversalSniper/internal/services/trading"
)

// Engine replays history through the live pipeline: every bar is scored,
// selected and promoted exactly as a scan would, and open trades are
// checked against the bar's range.
type Engine struct {
	source   CandleSource
	analyzer *analysis.Analyzer
	strategy *strategy.StrategyManager
	config   Config
	log      zerolog.Logger
}

func NewEngine(source CandleSource, analyzer *analysis.Analyzer, manager *strategy.StrategyManager, config Config, log zerolog.Logger) *Engine {
	return &Engine{
		source:   source,
		analyzer: analyzer,
		strategy: manager,
		config:   config,
		log:      log.With().Str("component", "backtest").Logger(),
	}
}

// run holds the state of one replay
type run struct {
	store    *trading.MemoryStore
	ledger   *trading.Ledger
	selector *selection.Selector
	holder   *params.Holder
	learner  *learning.Engine
	curve    []EquityPoint
}

func (e *Engine) RunBacktest(ctx context.Context, initial models.Parameters) (*Results, error) {
	if !e.config.EndTime.After(e.config.StartTime) {
		return nil, errors.New("end time must be after start time")
	}
	step, err := e.config.Interval.Duration()
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Time("start", e.config.StartTime).
		Time("end", e.config.EndTime).
		Strs("symbols", e.config.Symbols).
		Msg("running backtest")

	history := make(map[string][]models.Candle, len(e.config.Symbols))
	warmup := e.config.StartTime.Add(-time.Duration(e.config.Window) * step)
	for _, symbol := range e.config.Symbols {
		candles, err := e.source.HistoricalCandles(ctx, symbol, e.config.Interval, warmup, e.config.EndTime)
		if err != nil {
			return nil, fmt.Errorf("failed to load history for %s: %w", symbol, err)
		}
		sort.Slice(candles, func(i, j int) bool { return candles[i].OpenTime.Before(candles[j].OpenTime) })
		e.log.Debug().Str("symbol", symbol).Int("candles", len(candles)).Msg("history loaded")
		history[symbol] = candles
	}

	r, err := e.newRun(ctx, initial)
	if err != nil {
		return nil, err
	}

	bars := e.timeline(history)
	cursor := make(map[string]int, len(history))
	candidates := 0

	for _, at := range bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.holder.Snapshot()

		var scored []*strategy.SignalCandidate
		for _, symbol := range e.config.Symbols {
			candles := history[symbol]
			i := cursor[symbol]
			for i < len(candles) && candles[i].OpenTime.Before(at) {
				i++
			}
			cursor[symbol] = i
			if i >= len(candles) || !candles[i].OpenTime.Equal(at) {
				continue
			}

			e.checkExit(ctx, r, symbol, candles[i], closeTime(candles[i], step))

			lo := i + 1 - e.config.Window
			if lo < 0 {
				lo = 0
			}
			snap, err := e.analyzer.Snapshot(symbol, candles[lo:i+1], closeTime(candles[i], step))
			if err != nil {
				continue
			}
			c, err := e.strategy.Evaluate(snap, p)
			if err != nil || c == nil {
				continue
			}
			scored = append(scored, c)
		}
		candidates += len(scored)

		now := at.Add(step)
		sel := r.selector.Select(ctx, scored, r.ledger.OpenSymbols(), now)
		for _, c := range sel.Trades {
			trade, err := r.ledger.Promote(ctx, c, now)
			if trade == nil {
				e.log.Debug().Err(err).Str("symbol", c.Symbol).Msg("promotion rejected")
				continue
			}
			if err := r.selector.MarkEmitted(ctx, c, now); err != nil {
				return nil, err
			}
		}
	}

	results := e.calculateResults(r, len(bars), candidates)
	e.log.Info().
		Int("trades", results.TotalTrades).
		Float64("win_rate", results.WinRate).
		Float64("final_balance", results.FinalBalance).
		Float64("max_drawdown", results.MaxDrawdown).
		Msg("backtest finished")
	return results, nil
}

func (e *Engine) newRun(ctx context.Context, initial models.Parameters) (*run, error) {
	store := trading.NewMemoryStore()
	ledger := trading.NewLedger(e.config.Ledger, store.Stores(), nil, e.log)
	if err := ledger.Load(ctx); err != nil {
		return nil, err
	}

	holder := params.NewHolder(initial, params.DefaultBounds())
	r := &run{
		store:    store,
		ledger:   ledger,
		selector: selection.NewSelector(e.config.Selection, cache.NewMemoryLevelStore(), e.log),
		holder:   holder,
		curve:    []EquityPoint{{Timestamp: e.config.StartTime, Balance: ledger.Account().Balance}},
	}
	if e.config.Adaptive {
		r.learner = learning.NewEngine(e.config.Learning, store, holder, params.NewMemoryStore(), e.log)
	}
	return r, nil
}

// checkExit walks the bar's range adverse extreme first, so a bar that
// touches both the stop and a target counts as a stop.
func (e *Engine) checkExit(ctx context.Context, r *run, symbol string, candle models.Candle, at time.Time) {
	if !r.ledger.OpenSymbols()[symbol] {
		return
	}

	path := []float64{candle.Low, candle.High}
	for _, t := range r.ledger.OpenTrades() {
		if t.Symbol == symbol && t.Direction == models.DirectionShort {
			path = []float64{candle.High, candle.Low}
		}
	}

	for _, price := range path {
		trade, err := r.ledger.ApplyPrice(ctx, symbol, price, at)
		if err != nil {
			e.log.Warn().Err(err).Str("symbol", symbol).Msg("exit bookkeeping failed")
		}
		if trade == nil {
			continue
		}
		r.curve = append(r.curve, EquityPoint{Timestamp: at, Balance: r.ledger.Account().Balance})
		if r.learner != nil {
			if _, err := r.learner.Adjust(ctx); err != nil {
				e.log.Warn().Err(err).Msg("adjustment failed")
			}
		}
		return
	}
}

// timeline is the sorted set of bar open times inside the test range
func (e *Engine) timeline(history map[string][]models.Candle) []time.Time {
	seen := make(map[time.Time]struct{})
	var bars []time.Time
	for _, candles := range history {
		for _, c := range candles {
			if c.OpenTime.Before(e.config.StartTime) || c.OpenTime.After(e.config.EndTime) {
				continue
			}
			if _, ok := seen[c.OpenTime]; ok {
				continue
			}
			seen[c.OpenTime] = struct{}{}
			bars = append(bars, c.OpenTime)
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Before(bars[j]) })
	return bars
}

func (e *Engine) calculateResults(r *run, bars, candidates int) *Results {
	all := r.store.All()
	results := &Results{
		Bars:         bars,
		Candidates:   candidates,
		FinalBalance: r.ledger.Account().Balance,
		Parameters:   r.holder.Snapshot(),
		EquityCurve:  r.curve,
	}

	for _, trade := range all {
		if trade.IsOpen() {
			results.OpenAtEnd++
			continue
		}
		results.Trades = append(results.Trades, trade)
		if trade.PnL > 0 {
			results.WinningTrades++
		} else {
			results.LosingTrades++
		}
		results.TotalPnL += trade.PnL
	}

	results.TotalTrades = len(results.Trades)
	if results.TotalTrades > 0 {
		results.WinRate = float64(results.WinningTrades) / float64(results.TotalTrades)
		results.AveragePnL = results.TotalPnL / float64(results.TotalTrades)
	}
	results.MaxDrawdown = maxDrawdown(r.curve)
	results.SharpeRatio = sharpeRatio(r.curve)
	return results
}

// maxDrawdown is the largest peak-to-trough fall of the equity curve as a fraction of the peak
func maxDrawdown(curve []EquityPoint) float64 {
	worst := 0.0
	peak := 0.0
	for _, point := range curve {
		peak = math.Max(peak, point.Balance)
		if peak <= 0 {
			continue
		}
		worst = math.Max(worst, (peak-point.Balance)/peak)
	}
	return worst
}

// sharpeRatio annualizes per-closure equity returns over 252 periods
func sharpeRatio(curve []EquityPoint) float64 {
	if len(curve) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1].Balance <= 0 {
			continue
		}
		returns = append(returns, (curve[i].Balance-curve[i-1].Balance)/curve[i-1].Balance)
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, v := range returns {
		mean += v
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, v := range returns {
		variance += (v - mean) * (v - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)-1))
	if stdDev == 0 {
		return 0
	}
	return mean / stdDev * math.Sqrt(252)
}

func closeTime(c models.Candle, step time.Duration) time.Time {
	return c.OpenTime.Add(step)
}
