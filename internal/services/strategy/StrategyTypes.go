package strategy

import (
	"fmt"
	"time"

	"ReversalSniper/internal/models"
)

type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeB     Grade = "B"
	GradeC     Grade = "C"
)

const (
	GradeAPlusThreshold = 85.0
	GradeAThreshold     = 70.0
	GradeBThreshold     = 55.0
)

// GradeFor maps a 0-100 confidence to its letter grade
func GradeFor(confidence float64) Grade {
	switch {
	case confidence >= GradeAPlusThreshold:
		return GradeAPlus
	case confidence >= GradeAThreshold:
		return GradeA
	case confidence >= GradeBThreshold:
		return GradeB
	}
	return GradeC
}

// SignalCandidate is one directional setup for one instrument from one scan
type SignalCandidate struct {
	Symbol      string
	Direction   models.Direction
	Entry       float64
	Stop        float64
	TakeProfits []float64

	Confidence float64
	Grade      Grade
	Reasons    []string

	RSI            float64
	Deviation      float64
	VolumeRatio    float64
	PriceChangePct float64

	GoldenPocketHit bool
	SFPHit          bool

	CreatedAt time.Time
}

// NewSignalCandidate validates the levels and derives the grade
func NewSignalCandidate(symbol string, score Score, entry, stop float64, takeProfits []float64, createdAt time.Time) (*SignalCandidate, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", models.ErrInvalidLevels)
	}
	if err := models.ValidateLevels(score.Direction, entry, stop, takeProfits); err != nil {
		return nil, fmt.Errorf("%s %s: %w", symbol, score.Direction, err)
	}

	return &SignalCandidate{
		Symbol:          symbol,
		Direction:       score.Direction,
		Entry:           entry,
		Stop:            stop,
		TakeProfits:     append([]float64(nil), takeProfits...),
		Confidence:      score.Points,
		Grade:           GradeFor(score.Points),
		Reasons:         append([]string(nil), score.Reasons...),
		GoldenPocketHit: score.GoldenPocketHit,
		SFPHit:          score.SFPHit,
		CreatedAt:       createdAt,
	}, nil
}

// DisplayScore is the confidence on a 0-10 scale
func (c *SignalCandidate) DisplayScore() float64 {
	return c.Confidence / 10
}

// RiskPct is the stop distance as a percentage of entry
func (c *SignalCandidate) RiskPct() float64 {
	if c.Entry == 0 {
		return 0
	}
	d := c.Entry - c.Stop
	if d < 0 {
		d = -d
	}
	return d / c.Entry * 100
}

// Score is the additive result for one direction before gating
type Score struct {
	Direction       models.Direction
	Points          float64
	Raw             float64
	Reasons         []string
	GoldenPocketHit bool
	SFPHit          bool
}
