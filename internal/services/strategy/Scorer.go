package strategy

import (
	"fmt"
	"math"

	"ReversalSniper/internal/models"
	"ReversalSniper/internal/services/analysis"
)

type Scorer struct {
	profile Profile
}

func NewScorer(profile Profile) (*Scorer, error) {
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile %q: %w", profile.Name, err)
	}
	return &Scorer{profile: profile}, nil
}

func (s *Scorer) Profile() Profile {
	return s.profile
}

// Score adds up every rule that fires for one side of the snapshot. Readings
// without enough history are skipped.
func (s *Scorer) Score(side analysis.Side, p models.Parameters) Score {
	score := Score{Direction: side.Direction}
	long := side.Direction != models.DirectionShort

	add := func(points float64, reason string) {
		if points <= 0 {
			return
		}
		score.Raw += points
		score.Reasons = append(score.Reasons, reason)
	}

	// Statistical stretch from VWAP
	if side.StretchOK {
		if tier, ok := atLeast(s.profile.Deviation, side.Stretch); ok {
			direction := "below"
			if !long {
				direction = "above"
			}
			add(tier.Points, fmt.Sprintf("Deviation %.2fσ %s VWAP", side.Stretch, direction))
		}
	}

	// Golden pocket
	if side.Pocket.OK {
		if side.Pocket.InZone {
			add(math.Round(s.profile.PocketInZone*p.GoldenPocketWeight), "In golden pocket (0.618-0.65)")
			score.GoldenPocketHit = true
		} else if tier, ok := below(s.profile.PocketDistance, math.Abs(side.Pocket.DistancePct)); ok {
			add(tier.Points, fmt.Sprintf("Near golden pocket (%.2f%% away)", math.Abs(side.Pocket.DistancePct)))
		}
	}

	// Momentum exhaustion
	if side.RSIOK {
		if tier, ok := below(s.profile.RSI, side.RSI); ok {
			if long {
				add(tier.Points, fmt.Sprintf("RSI oversold (%.1f)", side.RSI))
			} else {
				add(tier.Points, fmt.Sprintf("RSI overbought (%.1f)", 100-side.RSI))
			}
		}
	}

	// Sweep and reclaim
	if side.SFP {
		label := "Bullish SFP (sweep and reclaim of the low)"
		if !long {
			label = "Bearish SFP (sweep and rejection of the high)"
		}
		add(math.Round(s.profile.SFP*p.SFPWeight), label)
		score.SFPHit = true
	}

	// Volume
	if side.Volume.OK {
		switch {
		case side.VolumeReversal:
			add(s.profile.VolumeReversal, fmt.Sprintf("Extreme volume reversal (%.2fx average)", side.Volume.Ratio))
		case side.Volume.Extreme:
			add(s.profile.VolumeExtreme, fmt.Sprintf("Extreme volume (%.2fx average)", side.Volume.Ratio))
		case side.Volume.Abnormal:
			add(s.profile.VolumeAbnormal, fmt.Sprintf("Abnormal volume (%.2fx average)", side.Volume.Ratio))
		default:
			if tier, ok := above(s.profile.VolumeRatio, side.Volume.Ratio); ok {
				add(tier.Points, fmt.Sprintf("Volume %.2fx average", side.Volume.Ratio))
			}
		}
	}

	// Structure
	if side.RangeOK {
		if tier, ok := below(s.profile.RangePosition, side.RangePosition); ok {
			if long {
				add(tier.Points, fmt.Sprintf("Near daily low support (%.0f%% of range)", side.RangePosition))
			} else {
				add(tier.Points, fmt.Sprintf("Near daily high resistance (%.0f%% of range)", side.RangePosition))
			}
		}
	}
	if side.NearLiquidation {
		if long {
			add(s.profile.Liquidation, "Bounce from liquidation support")
		} else {
			add(s.profile.Liquidation, "Rejection at liquidation resistance")
		}
	}

	// Candle shape
	switch {
	case side.Hammer && long:
		add(s.profile.Hammer, "Hammer candle")
	case side.Hammer:
		add(s.profile.Hammer, "Shooting star candle")
	case side.WickDominant && long:
		add(s.profile.WickDominance, "Lower wick rejection")
	case side.WickDominant:
		add(s.profile.WickDominance, "Upper wick rejection")
	}
	if side.Doji {
		add(s.profile.Doji, "Doji indecision")
	}

	score.Points = math.Min(score.Raw, s.profile.MaxScore)
	return score
}

// Choose gates both directions on the minimum confidence. When both qualify
// the higher score wins and a tie goes to LONG.
func Choose(long, short Score, minConfidence float64) (Score, bool) {
	longOK := long.Points >= minConfidence
	shortOK := short.Points >= minConfidence

	switch {
	case longOK && shortOK:
		if long.Points >= short.Points {
			return long, true
		}
		return short, true
	case longOK:
		return long, true
	case shortOK:
		return short, true
	}
	return Score{}, false
}
