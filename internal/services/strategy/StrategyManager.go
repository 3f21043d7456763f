package strategy

import (
	"errors"
	"fmt"
	"time"

	"ReversalSniper/internal/models"
	"ReversalSniper/internal/services/analysis"
)

// LevelConfig places stops beyond the recent swing and targets at multiples
// of the risk distance.
type LevelConfig struct {
	StopATRMultiple float64
	StopLossPct     float64 // used when ATR is unavailable
	TakeProfitR     []float64
}

func DefaultLevelConfig() LevelConfig {
	return LevelConfig{
		StopATRMultiple: 0.5,
		StopLossPct:     1.0,
		TakeProfitR:     []float64{2.0, 3.0, 4.5},
	}
}

func (c LevelConfig) Validate() error {
	if len(c.TakeProfitR) == 0 || len(c.TakeProfitR) > models.MaxTakeProfits {
		return fmt.Errorf("need 1-%d take profit multiples, got %d", models.MaxTakeProfits, len(c.TakeProfitR))
	}
	prev := 0.0
	for _, r := range c.TakeProfitR {
		if r <= prev {
			return errors.New("take profit multiples must be positive and increasing")
		}
		prev = r
	}
	if c.StopLossPct <= 0 || c.StopLossPct >= 100 {
		return fmt.Errorf("stop loss pct %.2f out of range", c.StopLossPct)
	}
	if c.StopATRMultiple < 0 {
		return errors.New("stop ATR multiple cannot be negative")
	}
	return nil
}

type StrategyManager struct {
	scorer *Scorer
	levels LevelConfig
}

func NewStrategyManager(scorer *Scorer, levels LevelConfig) (*StrategyManager, error) {
	if err := levels.Validate(); err != nil {
		return nil, err
	}
	return &StrategyManager{scorer: scorer, levels: levels}, nil
}

// Evaluate scores both directions of the snapshot and returns the qualifying
// candidate, or nil when neither direction reaches the minimum confidence.
func (m *StrategyManager) Evaluate(snap *analysis.Snapshot, p models.Parameters) (*SignalCandidate, error) {
	long := m.scorer.Score(snap.Side(models.DirectionLong), p)
	short := m.scorer.Score(snap.Side(models.DirectionShort), p)

	chosen, ok := Choose(long, short, p.MinConfidence)
	if !ok {
		return nil, nil
	}

	stop, takeProfits := m.Levels(snap, chosen.Direction)
	candidate, err := NewSignalCandidate(snap.Symbol, chosen, snap.Price, stop, takeProfits, snap.Timestamp)
	if err != nil {
		return nil, err
	}

	candidate.RSI = snap.RSI.Value
	candidate.Deviation = snap.VWAP.Deviation
	candidate.VolumeRatio = snap.Volume.Ratio
	candidate.PriceChangePct = snap.PriceChangePct
	return candidate, nil
}

// Levels computes stop and take-profit prices. The stop sits beyond the
// recent swing by a fraction of ATR, or a fixed percentage from entry when
// ATR or the swing is missing.
func (m *StrategyManager) Levels(snap *analysis.Snapshot, direction models.Direction) (float64, []float64) {
	entry := snap.Price
	sign := direction.Sign()

	var stop float64
	switch {
	case snap.ATR.OK && direction == models.DirectionLong && snap.SwingLow > 0:
		stop = snap.SwingLow - m.levels.StopATRMultiple*snap.ATR.Value
	case snap.ATR.OK && direction == models.DirectionShort && snap.SwingHigh > 0:
		stop = snap.SwingHigh + m.levels.StopATRMultiple*snap.ATR.Value
	default:
		stop = entry * (1 - sign*m.levels.StopLossPct/100)
	}

	risk := (entry - stop) * sign
	takeProfits := make([]float64, 0, len(m.levels.TakeProfitR))
	for _, r := range m.levels.TakeProfitR {
		takeProfits = append(takeProfits, entry+sign*r*risk)
	}
	return stop, takeProfits
}

func (c *SignalCandidate) String() string {
	return fmt.Sprintf("%s %s %.1f (%s) entry %.8f stop %.8f at %s",
		c.Symbol, c.Direction, c.Confidence, c.Grade, c.Entry, c.Stop, c.CreatedAt.Format(time.RFC3339))
}
