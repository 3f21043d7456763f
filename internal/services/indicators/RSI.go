package indicators

// NeutralRSI is reported when there is not enough history
const NeutralRSI = 50.0

type RSIService struct{}

type RSIResult struct {
	Value float64
	OK    bool
}

func NewRSIService() *RSIService {
	return &RSIService{}
}

// Calculate returns Wilder's RSI of the last close. Fewer than period+1
// closes yields NeutralRSI with OK false.
func (s *RSIService) Calculate(closes []float64, period int) RSIResult {
	if period <= 0 || len(closes) < period+1 {
		return RSIResult{Value: NeutralRSI}
	}

	// Seed averages with the first period changes
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		gain, loss := split(closes[i] - closes[i-1])
		avgGain += gain
		avgLoss += loss
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Wilder smoothing for the rest of the window
	for i := period + 1; i < len(closes); i++ {
		gain, loss := split(closes[i] - closes[i-1])
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return RSIResult{Value: NeutralRSI, OK: true}
		}
		return RSIResult{Value: 100, OK: true}
	}

	rs := avgGain / avgLoss
	return RSIResult{Value: 100 - (100 / (1 + rs)), OK: true}
}

func split(change float64) (gain, loss float64) {
	if change > 0 {
		return change, 0
	}
	return 0, -change
}
