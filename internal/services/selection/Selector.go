package selection

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ReversalSniper/internal/cache"
	"ReversalSniper/internal/models"
	"ReversalSniper/internal/services/strategy"
)

type Config struct {
	TradeThreshold   float64
	WatchThreshold   float64
	MaxTrades        int
	MaxWatch         int
	MaxTradesPerHour int
	Window           time.Duration
	Cooldown         time.Duration
	SetupTolerance   float64
	SeedKeywords     []string
}

func DefaultConfig() Config {
	return Config{
		TradeThreshold:   70,
		WatchThreshold:   55,
		MaxTrades:        3,
		MaxWatch:         4,
		MaxTradesPerHour: 3,
		Window:           time.Hour,
		Cooldown:         time.Hour,
		SetupTolerance:   0.001,
		SeedKeywords:     []string{"support", "resistance", "golden pocket", "daily low", "daily high"},
	}
}

// Selection is the outcome of one scan's ranking
type Selection struct {
	Trades     []*strategy.SignalCandidate
	Watch      []*strategy.SignalCandidate
	Deferred   []*strategy.SignalCandidate // trade grade, over the hourly cap
	Suppressed []*strategy.SignalCandidate // same setup inside the cooldown
	Seeded     bool
}

type Selector struct {
	cfg    Config
	levels cache.LevelStore
	log    zerolog.Logger

	mu        sync.Mutex
	emissions []time.Time
}

func NewSelector(cfg Config, levels cache.LevelStore, log zerolog.Logger) *Selector {
	return &Selector{
		cfg:    cfg,
		levels: levels,
		log:    log.With().Str("component", "selector").Logger(),
	}
}

// Select dedupes, filters, ranks and splits the scan's candidates into the
// trade and watch tiers. open holds instruments that already have an open trade.
func (s *Selector) Select(ctx context.Context, candidates []*strategy.SignalCandidate, open map[string]bool, now time.Time) Selection {
	var out Selection

	var eligible []*strategy.SignalCandidate
	for _, c := range Dedupe(candidates) {
		if open[c.Symbol] {
			continue
		}
		if s.suppressed(ctx, c, now) {
			out.Suppressed = append(out.Suppressed, c)
			continue
		}
		eligible = append(eligible, c)
	}
	Rank(eligible)

	var tradeGrade, watchBand []*strategy.SignalCandidate
	for _, c := range eligible {
		switch {
		case c.Confidence >= s.cfg.TradeThreshold:
			tradeGrade = append(tradeGrade, c)
		case c.Confidence >= s.cfg.WatchThreshold:
			watchBand = append(watchBand, c)
		}
	}

	tier := tradeGrade
	var spill []*strategy.SignalCandidate
	if len(tier) > s.cfg.MaxTrades {
		tier, spill = tradeGrade[:s.cfg.MaxTrades], tradeGrade[s.cfg.MaxTrades:]
	}

	slots := s.remainingSlots(now)
	if slots < len(tier) {
		out.Trades = tier[:slots]
		out.Deferred = tier[slots:]
	} else {
		out.Trades = tier
	}

	watch := append(append([]*strategy.SignalCandidate(nil), spill...), watchBand...)
	out.Watch = limit(watch, s.cfg.MaxWatch)

	if len(out.Trades) == 0 && len(out.Watch) == 0 && len(out.Deferred) == 0 {
		out.Watch = limit(s.nearMisses(eligible), s.cfg.MaxWatch)
		out.Seeded = len(out.Watch) > 0
	}

	return out
}

// RecordTrade counts one trade emission against the rolling window
func (s *Selector) RecordTrade(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emissions = append(s.prune(now), now)
}

// Remember stores the emitted setup for cooldown suppression
func (s *Selector) Remember(ctx context.Context, c *strategy.SignalCandidate, now time.Time) error {
	if s.levels == nil {
		return nil
	}
	return s.levels.Put(ctx, models.SignalLevel{
		Symbol:    c.Symbol,
		Direction: c.Direction,
		Entry:     c.Entry,
		Stop:      c.Stop,
		SentAt:    now,
	}, s.cfg.Cooldown)
}

// MarkEmitted records a trade emission and its cooldown level
func (s *Selector) MarkEmitted(ctx context.Context, c *strategy.SignalCandidate, now time.Time) error {
	s.RecordTrade(now)
	return s.Remember(ctx, c, now)
}

// RemainingSlots reports how many trades may still be emitted this window
func (s *Selector) RemainingSlots(now time.Time) int {
	return s.remainingSlots(now)
}

func (s *Selector) remainingSlots(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emissions = s.prune(now)
	slots := s.cfg.MaxTradesPerHour - len(s.emissions)
	if slots < 0 {
		return 0
	}
	return slots
}

// prune drops emissions older than the window; caller holds mu
func (s *Selector) prune(now time.Time) []time.Time {
	cutoff := now.Add(-s.cfg.Window)
	kept := s.emissions[:0]
	for _, at := range s.emissions {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	return kept
}

func (s *Selector) suppressed(ctx context.Context, c *strategy.SignalCandidate, now time.Time) bool {
	if s.levels == nil {
		return false
	}
	level, err := s.levels.Get(ctx, c.Symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", c.Symbol).Msg("cooldown lookup failed")
		return false
	}
	if level == nil || now.Sub(level.SentAt) >= s.cfg.Cooldown {
		return false
	}
	return level.SameSetup(c.Direction, c.Entry, c.Stop, s.cfg.SetupTolerance)
}

func (s *Selector) nearMisses(ranked []*strategy.SignalCandidate) []*strategy.SignalCandidate {
	var out []*strategy.SignalCandidate
	for _, c := range ranked {
		if s.structural(c.Reasons) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Selector) structural(reasons []string) bool {
	for _, r := range reasons {
		lower := strings.ToLower(r)
		for _, kw := range s.cfg.SeedKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// Dedupe keeps the highest-confidence candidate per instrument, first seen on ties
func Dedupe(candidates []*strategy.SignalCandidate) []*strategy.SignalCandidate {
	best := make(map[string]int, len(candidates))
	var out []*strategy.SignalCandidate
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if i, ok := best[c.Symbol]; ok {
			if c.Confidence > out[i].Confidence {
				out[i] = c
			}
			continue
		}
		best[c.Symbol] = len(out)
		out = append(out, c)
	}
	return out
}

// Rank orders by confidence, volume ratio and absolute price change, all
// descending, then by symbol so equal inputs always rank the same way.
func Rank(candidates []*strategy.SignalCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.VolumeRatio != b.VolumeRatio {
			return a.VolumeRatio > b.VolumeRatio
		}
		if ac, bc := math.Abs(a.PriceChangePct), math.Abs(b.PriceChangePct); ac != bc {
			return ac > bc
		}
		return a.Symbol < b.Symbol
	})
}

func limit(c []*strategy.SignalCandidate, n int) []*strategy.SignalCandidate {
	if n >= 0 && len(c) > n {
		return c[:n]
	}
	return c
}
