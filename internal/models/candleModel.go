package models

import (
	"fmt"
	"time"
)

// Candle is one OHLCV bar. Values are never mutated once fetched.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// TimeFrame is a kline interval as the exchange names it
type TimeFrame string

const (
	TimeFrame5m  TimeFrame = "5m"
	TimeFrame15m TimeFrame = "15m"
	TimeFrame1h  TimeFrame = "1h"
	TimeFrame4h  TimeFrame = "4h"
)

var timeFrames = map[TimeFrame]time.Duration{
	TimeFrame5m:  5 * time.Minute,
	TimeFrame15m: 15 * time.Minute,
	TimeFrame1h:  time.Hour,
	TimeFrame4h:  4 * time.Hour,
}

// Duration returns the length of one candle
func (tf TimeFrame) Duration() (time.Duration, error) {
	d, ok := timeFrames[tf]
	if !ok {
		return 0, fmt.Errorf("unsupported timeframe %q", tf)
	}
	return d, nil
}

// Body returns the absolute size of the candle body
func (c Candle) Body() float64 {
	if c.Close > c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns high minus low
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// LowerWick returns the distance from the bottom of the body to the low
func (c Candle) LowerWick() float64 {
	bottom := c.Open
	if c.Close < bottom {
		bottom = c.Close
	}
	return bottom - c.Low
}

// UpperWick returns the distance from the top of the body to the high
func (c Candle) UpperWick() float64 {
	top := c.Open
	if c.Close > top {
		top = c.Close
	}
	return c.High - top
}

func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

func (c Candle) IsBearish() bool {
	return c.Close < c.Open
}

// Closes extracts close prices in order
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Volumes extracts volumes in order
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}
