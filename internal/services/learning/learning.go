package learning

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"ReversalSniper/internal/models"
	"ReversalSniper/internal/services/params"
)

// SampleStore reads the closed trade history
type SampleStore interface {
	Recent(ctx context.Context, limit int) ([]models.PerformanceSample, error)
	Count(ctx context.Context) (int64, error)
}

type Config struct {
	Window           int
	MinSamples       int
	MinNewSamples    int64
	LooseWinRate     float64
	StrictWinRate    float64
	ConfidenceStep   float64
	MinFactorSamples int
	StrongWinRate    float64
	WeakWinRate      float64
	WeightStep       float64
}

func DefaultConfig() Config {
	return Config{
		Window:           50,
		MinSamples:       10,
		MinNewSamples:    5,
		LooseWinRate:     0.50,
		StrictWinRate:    0.70,
		ConfidenceStep:   5,
		MinFactorSamples: 5,
		StrongWinRate:    0.65,
		WeakWinRate:      0.45,
		WeightStep:       0.1,
	}
}

type FactorStats struct {
	Samples int     `json:"samples"`
	Wins    int     `json:"wins"`
	WinRate float64 `json:"win_rate"`
}

func (f *FactorStats) add(winner bool) {
	f.Samples++
	if winner {
		f.Wins++
	}
}

func (f *FactorStats) finish() {
	if f.Samples > 0 {
		f.WinRate = float64(f.Wins) / float64(f.Samples)
	}
}

// Stats summarizes the recent window of closed trades
type Stats struct {
	Total        int64       `json:"total"`
	Overall      FactorStats `json:"overall"`
	GoldenPocket FactorStats `json:"golden_pocket"`
	SFP          FactorStats `json:"sfp"`
	AvgPnLPct    float64     `json:"avg_pnl_pct"`
}

// Adjustment describes one learning pass
type Adjustment struct {
	Applied bool              `json:"applied"`
	Reason  string            `json:"reason"`
	Stats   Stats             `json:"stats"`
	Before  models.Parameters `json:"before"`
	After   models.Parameters `json:"after"`
}

type Engine struct {
	cfg     Config
	samples SampleStore
	holder  *params.Holder
	store   params.Store
	log     zerolog.Logger
	now     func() time.Time
}

func NewEngine(cfg Config, samples SampleStore, holder *params.Holder, store params.Store, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		samples: samples,
		holder:  holder,
		store:   store,
		log:     log.With().Str("component", "learning").Logger(),
		now:     time.Now,
	}
}

// Stats aggregates the most recent window of samples
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	total, err := e.samples.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count samples: %w", err)
	}
	recent, err := e.samples.Recent(ctx, e.cfg.Window)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to load samples: %w", err)
	}
	stats := Summarize(recent)
	stats.Total = total
	return stats, nil
}

// Summarize computes overall and per-factor win rates
func Summarize(samples []models.PerformanceSample) Stats {
	var stats Stats
	pnl := 0.0
	for _, s := range samples {
		stats.Overall.add(s.Winner)
		if s.GoldenPocketHit {
			stats.GoldenPocket.add(s.Winner)
		}
		if s.SFPHit {
			stats.SFP.add(s.Winner)
		}
		pnl += s.PnLPct
	}
	stats.Overall.finish()
	stats.GoldenPocket.finish()
	stats.SFP.finish()
	if len(samples) > 0 {
		stats.AvgPnLPct = pnl / float64(len(samples))
	}
	return stats
}

// Adjust tightens or loosens the parameters from recent outcomes. It runs
// between scans; a checkpoint failure is returned but the new values stay.
func (e *Engine) Adjust(ctx context.Context) (Adjustment, error) {
	current := e.holder.Snapshot()
	adj := Adjustment{Before: current, After: current}

	stats, err := e.Stats(ctx)
	if err != nil {
		return adj, err
	}
	adj.Stats = stats

	if fresh := stats.Total - current.SamplesAtAdjustment; fresh < e.cfg.MinNewSamples {
		adj.Reason = fmt.Sprintf("%d new samples since last adjustment", fresh)
		return adj, nil
	}
	if stats.Overall.Samples < e.cfg.MinSamples {
		adj.Reason = fmt.Sprintf("%d samples, need %d", stats.Overall.Samples, e.cfg.MinSamples)
		return adj, nil
	}

	next := current
	switch rate := stats.Overall.WinRate; {
	case rate < e.cfg.LooseWinRate:
		next.MinConfidence += e.cfg.ConfidenceStep
	case rate > e.cfg.StrictWinRate:
		next.MinConfidence -= e.cfg.ConfidenceStep
	}
	next.GoldenPocketWeight = e.reweigh(next.GoldenPocketWeight, stats.GoldenPocket)
	next.SFPWeight = e.reweigh(next.SFPWeight, stats.SFP)
	next.SamplesAtAdjustment = stats.Total

	adj.After = e.holder.Apply(next, e.now())
	adj.Applied = changed(current, adj.After)
	adj.Reason = fmt.Sprintf("win rate %.0f%% over %d samples", stats.Overall.WinRate*100, stats.Overall.Samples)

	if adj.Applied {
		e.log.Info().
			Float64("win_rate", stats.Overall.WinRate).
			Int("samples", stats.Overall.Samples).
			Float64("min_confidence_before", current.MinConfidence).
			Float64("min_confidence", adj.After.MinConfidence).
			Float64("golden_pocket_weight", adj.After.GoldenPocketWeight).
			Float64("sfp_weight", adj.After.SFPWeight).
			Msg("parameters adjusted")
	}

	checkpoint := adj.After
	if err := e.store.Save(ctx, &checkpoint); err != nil {
		e.log.Error().Err(err).Msg("parameter checkpoint failed")
		return adj, fmt.Errorf("failed to checkpoint parameters: %w", err)
	}
	return adj, nil
}

func (e *Engine) reweigh(weight float64, f FactorStats) float64 {
	if f.Samples < e.cfg.MinFactorSamples {
		return weight
	}
	switch {
	case f.WinRate > e.cfg.StrongWinRate:
		weight += e.cfg.WeightStep
	case f.WinRate < e.cfg.WeakWinRate:
		weight -= e.cfg.WeightStep
	}
	return math.Round(weight*100) / 100
}

func changed(a, b models.Parameters) bool {
	return a.MinConfidence != b.MinConfidence ||
		a.GoldenPocketWeight != b.GoldenPocketWeight ||
		a.SFPWeight != b.SFPWeight
}
