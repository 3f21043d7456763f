package indicators

import (
	"ReversalSniper/internal/models"
)

const minRejectionWick = 0.5

type SFPService struct {
	lookback int
}

// NewSFPService compares the last candle against the lookback candles before it
func NewSFPService(lookback int) *SFPService {
	if lookback < 1 {
		lookback = 2
	}
	return &SFPService{lookback: lookback}
}

// Detect reports a swing failure on the last candle: it sweeps the extreme
// of the lookback candles, closes back beyond the previous candle's extreme
// and leaves a rejection wick of at least half its body.
func (s *SFPService) Detect(candles []models.Candle, bias models.Direction) bool {
	if len(candles) < s.lookback+1 {
		return false
	}

	last := candles[len(candles)-1]
	prev := candles[len(candles)-2]
	prior := candles[len(candles)-1-s.lookback : len(candles)-1]

	if bias == models.DirectionShort {
		priorHigh := prior[0].High
		for _, c := range prior[1:] {
			priorHigh = max(priorHigh, c.High)
		}
		return last.High > priorHigh && last.Close < prev.High && rejects(last.UpperWick(), last.Body())
	}

	priorLow := prior[0].Low
	for _, c := range prior[1:] {
		priorLow = min(priorLow, c.Low)
	}
	return last.Low < priorLow && last.Close > prev.Low && rejects(last.LowerWick(), last.Body())
}

func rejects(wick, body float64) bool {
	return wick > 0 && wick >= body*minRejectionWick
}
