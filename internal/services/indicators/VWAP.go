package indicators

import (
	"math"

	"ReversalSniper/internal/models"
)

type VWAPService struct{}

type VWAPResult struct {
	VWAP      float64
	StdDev    float64
	Deviation float64 // sigma distance of the last close from VWAP
	Price     float64
	OK        bool
}

func NewVWAPService() *VWAPService {
	return &VWAPService{}
}

// Calculate weights closes by volume for the mean. The band uses the
// unweighted population standard deviation of closes around that mean.
func (s *VWAPService) Calculate(candles []models.Candle) VWAPResult {
	if len(candles) == 0 {
		return VWAPResult{}
	}

	var pv, volume float64
	for _, c := range candles {
		pv += c.Close * c.Volume
		volume += c.Volume
	}
	if volume <= 0 {
		return VWAPResult{}
	}
	vwap := pv / volume

	squareSum := 0.0
	for _, c := range candles {
		diff := c.Close - vwap
		squareSum += diff * diff
	}
	stdDev := math.Sqrt(squareSum / float64(len(candles)))

	price := candles[len(candles)-1].Close
	deviation := 0.0
	if stdDev > 0 {
		deviation = (price - vwap) / stdDev
	}

	return VWAPResult{
		VWAP:      vwap,
		StdDev:    stdDev,
		Deviation: deviation,
		Price:     price,
		OK:        true,
	}
}
