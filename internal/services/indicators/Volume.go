package indicators

import (
	"fmt"

	"github.com/markcheno/go-talib"
)

type VolumeService struct {
	abnormalK float64
	extremeK  float64
}

type VolumeSpike struct {
	Current  float64
	Mean     float64
	StdDev   float64
	Ratio    float64
	Abnormal bool
	Extreme  bool
	OK       bool
}

// NewVolumeService classifies volume above mean+abnormalK*sigma as abnormal
// and above mean+extremeK*sigma as extreme.
func NewVolumeService(abnormalK, extremeK float64) (*VolumeService, error) {
	if abnormalK <= 0 || extremeK <= abnormalK {
		return nil, fmt.Errorf("extreme multiplier %.2f must exceed abnormal multiplier %.2f", extremeK, abnormalK)
	}
	return &VolumeService{abnormalK: abnormalK, extremeK: extremeK}, nil
}

// Spike compares the last volume with the period volumes preceding it
func (s *VolumeService) Spike(volumes []float64, period int) VolumeSpike {
	if period < 2 || len(volumes) < period+1 {
		return VolumeSpike{}
	}

	history := volumes[len(volumes)-1-period : len(volumes)-1]
	mean := last(talib.Sma(history, period))
	std := last(talib.StdDev(history, period, 1.0))
	if mean <= 0 {
		return VolumeSpike{}
	}

	current := volumes[len(volumes)-1]
	return VolumeSpike{
		Current:  current,
		Mean:     mean,
		StdDev:   std,
		Ratio:    current / mean,
		Abnormal: current > mean+s.abnormalK*std,
		Extreme:  current > mean+s.extremeK*std,
		OK:       true,
	}
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}
