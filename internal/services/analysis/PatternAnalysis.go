package analysis

import (
	"ReversalSniper/internal/models"
)

type PatternAnalyzer struct {
	minHeight   float64
	dominance   float64
	hammerRatio float64
	dojiBody    float64
}

func NewPatternAnalyzer() *PatternAnalyzer {
	return &PatternAnalyzer{
		minHeight:   1e-12,
		dominance:   0.6,
		hammerRatio: 2.0,
		dojiBody:    0.2,
	}
}

// Shape classifies a single candle
func (a *PatternAnalyzer) Shape(candle models.Candle) CandleShape {
	totalSize := candle.Range()
	if totalSize < a.minHeight {
		return CandleShape{}
	}

	body := candle.Body()
	lowerWick := candle.LowerWick()
	upperWick := candle.UpperWick()

	shape := CandleShape{
		LowerWickDominant: lowerWick >= totalSize*a.dominance,
		UpperWickDominant: upperWick >= totalSize*a.dominance,
		Doji:              body < totalSize*a.dojiBody,
	}

	// Hammer: long lower wick, small upper wick
	if lowerWick >= body*a.hammerRatio && lowerWick > upperWick*a.hammerRatio && lowerWick >= totalSize*0.5 {
		shape.Hammer = true
	}
	// Shooting star: the mirror
	if upperWick >= body*a.hammerRatio && upperWick > lowerWick*a.hammerRatio && upperWick >= totalSize*0.5 {
		shape.ShootingStar = true
	}

	return shape
}
