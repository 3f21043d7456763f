package indicators

import (
	"github.com/markcheno/go-talib"

	"ReversalSniper/internal/models"
)

type ATRService struct{}

type ATRResult struct {
	Value float64
	OK    bool
}

func NewATRService() *ATRService {
	return &ATRService{}
}

func (s *ATRService) Calculate(candles []models.Candle, period int) ATRResult {
	if period <= 0 || len(candles) <= period {
		return ATRResult{}
	}

	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}

	value := last(talib.Atr(highs, lows, closes, period))
	if value <= 0 {
		return ATRResult{}
	}
	return ATRResult{Value: value, OK: true}
}
