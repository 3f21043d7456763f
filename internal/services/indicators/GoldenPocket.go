package indicators

import (
	"ReversalSniper/internal/models"
)

const (
	GoldenPocketLow  = 0.618
	GoldenPocketHigh = 0.65
)

type GoldenPocketService struct{}

type GoldenPocket struct {
	Bias   models.Direction
	Lower  float64
	Upper  float64
	InZone bool
	// DistancePct is the signed % from price to the nearer bound: negative
	// below the zone, positive above, zero inside.
	DistancePct float64
	OK          bool
}

func NewGoldenPocketService() *GoldenPocketService {
	return &GoldenPocketService{}
}

// Zone measures the 0.618-0.65 retracement of the high/low swing. A long
// bias measures up from the low, a short bias down from the high.
func (s *GoldenPocketService) Zone(high, low, price float64, bias models.Direction) GoldenPocket {
	r := high - low
	if r <= 0 || price <= 0 {
		return GoldenPocket{Bias: bias}
	}

	zone := GoldenPocket{Bias: bias, OK: true}
	if bias == models.DirectionShort {
		zone.Lower = high - r*GoldenPocketHigh
		zone.Upper = high - r*GoldenPocketLow
	} else {
		zone.Lower = low + r*GoldenPocketLow
		zone.Upper = low + r*GoldenPocketHigh
	}

	switch {
	case price < zone.Lower:
		zone.DistancePct = (price - zone.Lower) / price * 100
	case price > zone.Upper:
		zone.DistancePct = (price - zone.Upper) / price * 100
	default:
		zone.InZone = true
	}
	return zone
}
