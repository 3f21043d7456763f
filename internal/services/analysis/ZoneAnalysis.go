package analysis

import (
	"ReversalSniper/internal/models"
	"ReversalSniper/internal/services/indicators"
)

type ZoneAnalyzer struct {
	pocket       *indicators.GoldenPocketService
	swingWindow  int
	dailyCandles int
}

func NewZoneAnalyzer(swingWindow, dailyCandles int) *ZoneAnalyzer {
	return &ZoneAnalyzer{
		pocket:       indicators.NewGoldenPocketService(),
		swingWindow:  swingWindow,
		dailyCandles: dailyCandles,
	}
}

// GoldenPocket measures both bias variants over the swing window
func (a *ZoneAnalyzer) GoldenPocket(candles []models.Candle, price float64) (long, short indicators.GoldenPocket) {
	high, low := extremes(tail(candles, a.swingWindow))
	return a.pocket.Zone(high, low, price, models.DirectionLong),
		a.pocket.Zone(high, low, price, models.DirectionShort)
}

// DailyRange locates price inside the last day of candles
func (a *ZoneAnalyzer) DailyRange(candles []models.Candle, price float64) DailyRange {
	if len(candles) == 0 {
		return DailyRange{}
	}

	high, low := extremes(tail(candles, a.dailyCandles))
	out := DailyRange{High: high, Low: low}
	if high <= low {
		return out
	}
	out.PositionPct = (price - low) / (high - low) * 100
	out.OK = true
	return out
}

// Swing returns the lowest low and highest high of the last n candles
func (a *ZoneAnalyzer) Swing(candles []models.Candle, n int) (low, high float64) {
	high, low = extremes(tail(candles, n))
	return low, high
}

func tail(candles []models.Candle, n int) []models.Candle {
	if n <= 0 || n >= len(candles) {
		return candles
	}
	return candles[len(candles)-n:]
}

func extremes(candles []models.Candle) (high, low float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	high, low = candles[0].High, candles[0].Low
	for _, c := range candles[1:] {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	return high, low
}
