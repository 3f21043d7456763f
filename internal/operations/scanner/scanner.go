package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ReversalSniper/internal/metrics"
	"ReversalSniper/internal/models"
	"ReversalSniper/internal/operations/notify"
	"ReversalSniper/internal/services/analysis"
	"ReversalSniper/internal/services/learning"
	"ReversalSniper/internal/services/params"
	"ReversalSniper/internal/services/selection"
	"ReversalSniper/internal/services/strategy"
	"ReversalSniper/internal/services/trading"
)

// ErrNoMarketData fails a scan in which every candle fetch failed
var ErrNoMarketData = errors.New("no market data fetched")

// MarketData is the exchange surface a scan needs
type MarketData interface {
	Candles(ctx context.Context, symbol string, interval models.TimeFrame, limit int) ([]models.Candle, error)
	LastPrice(ctx context.Context, symbol string) (float64, error)
}

type Publisher interface {
	Publish(ctx context.Context, event notify.Event) error
}

// SymbolSource supplies the symbols of each scan. Without one the
// configured list is scanned.
type SymbolSource interface {
	Current(ctx context.Context) []string
}

type Learner interface {
	Adjust(ctx context.Context) (learning.Adjustment, error)
}

type Config struct {
	Symbols      []string
	Interval     models.TimeFrame
	Lookback     int
	FetchTimeout time.Duration
	FetchDelay   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Symbols:      []string{"BTCUSDT", "ETHUSDT"},
		Interval:     models.TimeFrame15m,
		Lookback:     200,
		FetchTimeout: 10 * time.Second,
		FetchDelay:   100 * time.Millisecond,
	}
}

// Deps are the collaborators of one scan
type Deps struct {
	Market    MarketData
	Symbols   SymbolSource
	Analyzer  *analysis.Analyzer
	Strategy  *strategy.StrategyManager
	Selector  *selection.Selector
	Ledger    *trading.Ledger
	Params    *params.Holder
	Learner   Learner
	Publisher Publisher
	Metrics   *metrics.Recorder
}

// Report summarizes one scan
type Report struct {
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Duration    time.Duration `json:"duration"`
	Symbols     int           `json:"symbols"`
	Scanned     int           `json:"scanned"`
	Skipped     int           `json:"skipped"`
	FetchErrors int           `json:"fetch_errors"`
	Candidates  int           `json:"candidates"`

	Opened     []models.Trade `json:"opened"`
	Closed     []models.Trade `json:"closed"`
	Watch      []string       `json:"watch"`
	Deferred   []string       `json:"deferred"`
	Suppressed []string       `json:"suppressed"`
	Rejected   []string       `json:"rejected"`
	Seeded     bool           `json:"seeded"`

	Parameters models.Parameters    `json:"parameters"`
	Adjustment *learning.Adjustment `json:"adjustment,omitempty"`
	Errors     []string             `json:"errors,omitempty"`
}

type Scanner struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger
	now  func() time.Time

	mu   sync.RWMutex
	last *Report
}

func New(cfg Config, deps Deps, log zerolog.Logger) *Scanner {
	return &Scanner{
		cfg:  cfg,
		deps: deps,
		log:  log.With().Str("component", "scanner").Logger(),
		now:  time.Now,
	}
}

// LastReport returns the most recent finished scan, nil before the first
func (s *Scanner) LastReport() *Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// RunScan performs one full pass: score every symbol, act on the
// selection, check exits and let the learner adjust.
func (s *Scanner) RunScan(ctx context.Context) (*Report, error) {
	start := s.now()
	p := s.deps.Params.Snapshot()
	symbols := s.symbols(ctx)
	report := &Report{StartedAt: start, Symbols: len(symbols), Parameters: p}

	candidates, err := s.score(ctx, report, symbols, p, start)
	if err != nil {
		return s.finish(report, err)
	}
	var scanErr error
	if report.Symbols > 0 && report.FetchErrors == report.Symbols {
		scanErr = fmt.Errorf("%w for %d symbols", ErrNoMarketData, report.Symbols)
	} else {
		s.act(ctx, report, candidates, start)
	}

	// exits only need last prices, so they run even when candles are down
	closed, err := s.deps.Ledger.CheckExits(ctx, s.deps.Market, s.now())
	report.Closed = closed
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
	}

	if s.deps.Learner != nil {
		adj, err := s.deps.Learner.Adjust(ctx)
		report.Adjustment = &adj
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
		}
	}
	return s.finish(report, scanErr)
}

func (s *Scanner) symbols(ctx context.Context) []string {
	if s.deps.Symbols != nil {
		if symbols := s.deps.Symbols.Current(ctx); len(symbols) > 0 {
			return symbols
		}
	}
	return s.cfg.Symbols
}

func (s *Scanner) score(ctx context.Context, report *Report, symbols []string, p models.Parameters, at time.Time) ([]*strategy.SignalCandidate, error) {
	var candidates []*strategy.SignalCandidate

	for i, symbol := range symbols {
		if i > 0 && s.cfg.FetchDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.cfg.FetchDelay):
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
		candles, err := s.deps.Market.Candles(fetchCtx, symbol, s.cfg.Interval, s.cfg.Lookback)
		cancel()
		if err != nil {
			report.FetchErrors++
			s.deps.Metrics.RecordFetchError("candles")
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("candle fetch failed, skipping")
			continue
		}

		snap, err := s.deps.Analyzer.Snapshot(symbol, candles, at)
		if err != nil {
			report.Skipped++
			if errors.Is(err, analysis.ErrInsufficientData) {
				s.log.Debug().Str("symbol", symbol).Int("candles", len(candles)).Msg("not enough history")
			} else {
				s.log.Warn().Err(err).Str("symbol", symbol).Msg("snapshot failed")
			}
			continue
		}
		report.Scanned++

		candidate, err := s.deps.Strategy.Evaluate(snap, p)
		if err != nil {
			s.log.Debug().Err(err).Str("symbol", symbol).Msg("candidate rejected")
			continue
		}
		if candidate == nil {
			continue
		}

		s.deps.Metrics.RecordCandidate(string(candidate.Direction))
		s.log.Debug().
			Str("symbol", symbol).
			Str("direction", string(candidate.Direction)).
			Float64("confidence", candidate.Confidence).
			Strs("reasons", candidate.Reasons).
			Msg("candidate")
		candidates = append(candidates, candidate)
	}

	report.Candidates = len(candidates)
	return candidates, nil
}

func (s *Scanner) act(ctx context.Context, report *Report, candidates []*strategy.SignalCandidate, at time.Time) {
	sel := s.deps.Selector.Select(ctx, candidates, s.deps.Ledger.OpenSymbols(), at)
	report.Seeded = sel.Seeded
	report.Deferred = symbolsOf(sel.Deferred)
	report.Suppressed = symbolsOf(sel.Suppressed)

	for _, c := range sel.Trades {
		trade, err := s.deps.Ledger.Promote(ctx, c, at)
		if trade == nil {
			report.Rejected = append(report.Rejected, c.Symbol)
			s.log.Warn().Err(err).Str("symbol", c.Symbol).Msg("promotion rejected")
			continue
		}
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
		}
		report.Opened = append(report.Opened, *trade)

		s.publish(ctx, notify.NewSignalEvent(c, notify.TierTrade, false, at))
		if err := s.deps.Selector.MarkEmitted(ctx, c, at); err != nil {
			s.log.Warn().Err(err).Str("symbol", c.Symbol).Msg("cooldown memory write failed")
		}
	}

	for _, c := range sel.Watch {
		report.Watch = append(report.Watch, c.Symbol)
		s.publish(ctx, notify.NewSignalEvent(c, notify.TierWatch, sel.Seeded, at))
	}

	s.deps.Metrics.RecordSignals(string(notify.TierTrade), len(report.Opened))
	s.deps.Metrics.RecordSignals(string(notify.TierWatch), len(report.Watch))
}

func (s *Scanner) publish(ctx context.Context, event notify.Event) {
	if s.deps.Publisher == nil {
		return
	}
	_ = s.deps.Publisher.Publish(ctx, event)
}

func (s *Scanner) finish(report *Report, err error) (*Report, error) {
	report.FinishedAt = s.now()
	report.Duration = report.FinishedAt.Sub(report.StartedAt)

	result := "ok"
	if err != nil {
		result = "error"
		report.Errors = append(report.Errors, err.Error())
	}
	after := s.deps.Params.Snapshot()
	s.deps.Metrics.RecordScan(result, report.Duration.Seconds())
	s.deps.Metrics.RecordParameters(after.MinConfidence, after.GoldenPocketWeight, after.SFPWeight)

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	s.log.Info().
		Int("scanned", report.Scanned).
		Int("skipped", report.Skipped).
		Int("fetch_errors", report.FetchErrors).
		Int("candidates", report.Candidates).
		Int("opened", len(report.Opened)).
		Int("closed", len(report.Closed)).
		Int("watch", len(report.Watch)).
		Dur("duration", report.Duration).
		Err(err).
		Msg("scan finished")
	return report, err
}

func symbolsOf(c []*strategy.SignalCandidate) []string {
	out := make([]string, 0, len(c))
	for _, x := range c {
		out = append(out, x.Symbol)
	}
	return out
}
