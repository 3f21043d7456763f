package analysis

import (
	"math"
	"sort"

	"ReversalSniper/internal/models"
	"ReversalSniper/internal/services/indicators"
)

const (
	liquidationVolumeRatio = 2.0
	liquidationWickRatio   = 0.4
	maxLiquidationLevels   = 5
)

type VolumeAnalyzer struct {
	volume       *indicators.VolumeService
	period       int
	proximityPct float64
}

func NewVolumeAnalyzer(volume *indicators.VolumeService, period int, proximityPct float64) *VolumeAnalyzer {
	return &VolumeAnalyzer{
		volume:       volume,
		period:       period,
		proximityPct: proximityPct,
	}
}

// Spike classifies the volume of the last candle
func (a *VolumeAnalyzer) Spike(candles []models.Candle) indicators.VolumeSpike {
	return a.volume.Spike(models.Volumes(candles), a.period)
}

// Reversal reports extreme volume on the previous candle followed by a
// candle that closes against it.
func (a *VolumeAnalyzer) Reversal(candles []models.Candle) (bullish, bearish bool) {
	if len(candles) < a.period+2 {
		return false, false
	}

	prev := a.volume.Spike(models.Volumes(candles[:len(candles)-1]), a.period)
	if !prev.OK || !prev.Extreme {
		return false, false
	}

	last := candles[len(candles)-1]
	return last.IsBullish(), last.IsBearish()
}

// LiquidationLevels finds high-volume candles with long wicks. A long lower
// wick marks flushed longs (support), a long upper wick flushed shorts
// (resistance).
func (a *VolumeAnalyzer) LiquidationLevels(candles []models.Candle) []LiquidationLevel {
	if len(candles) < a.period+1 {
		return nil
	}

	var levels []LiquidationLevel
	for i := a.period; i < len(candles); i++ {
		c := candles[i]
		mean := 0.0
		for _, p := range candles[i-a.period : i] {
			mean += p.Volume
		}
		mean /= float64(a.period)

		totalSize := c.Range()
		if mean <= 0 || totalSize <= 0 {
			continue
		}

		volumeRatio := c.Volume / mean
		lowerWick := c.LowerWick() / totalSize
		upperWick := c.UpperWick() / totalSize
		wickRatio := math.Max(lowerWick, upperWick)

		if volumeRatio <= liquidationVolumeRatio || wickRatio <= liquidationWickRatio {
			continue
		}

		level := LiquidationLevel{
			Support:    lowerWick >= upperWick,
			Importance: math.Min(100, (volumeRatio-liquidationVolumeRatio)*20+wickRatio*30),
			Time:       c.OpenTime,
		}
		if level.Support {
			level.Price = c.Low
		} else {
			level.Price = c.High
		}
		levels = append(levels, level)
	}

	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].Importance > levels[j].Importance
	})
	if len(levels) > maxLiquidationLevels {
		levels = levels[:maxLiquidationLevels]
	}
	return levels
}

// Proximity checks price against the liquidation levels
func (a *VolumeAnalyzer) Proximity(levels []LiquidationLevel, price float64) LiquidationProximity {
	out := LiquidationProximity{Levels: levels}
	if price <= 0 {
		return out
	}

	for _, level := range levels {
		if math.Abs(price-level.Price)/price*100 > a.proximityPct {
			continue
		}
		if level.Support {
			out.NearSupport = true
		} else {
			out.NearResistance = true
		}
	}
	return out
}
