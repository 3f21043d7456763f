package strategy

import (
	"errors"
	"fmt"
)

// Tier awards Points when a reading passes Threshold
type Tier struct {
	Threshold float64
	Points    float64
}

// Profile holds the point tables for one scoring variant. Tables are
// mirrored for shorts by the snapshot side, so one profile scores both
// directions.
type Profile struct {
	Name     string
	MaxScore float64

	// Stretch (sigma against the direction) at or above Threshold
	Deviation []Tier

	PocketInZone float64
	// Absolute % distance to the pocket below Threshold
	PocketDistance []Tier

	// Mirrored RSI below Threshold
	RSI []Tier

	SFP float64

	VolumeReversal float64
	VolumeExtreme  float64
	VolumeAbnormal float64
	// Volume ratio above Threshold
	VolumeRatio []Tier

	// % from the favourable daily extreme below Threshold
	RangePosition []Tier

	Liquidation   float64
	Hammer        float64
	WickDominance float64
	Doji          float64
}

func DefaultProfile() Profile {
	return Profile{
		Name:     "sniper",
		MaxScore: 100,
		Deviation: []Tier{
			{2.5, 40}, {2.0, 30}, {1.5, 20}, {1.0, 15},
		},
		PocketInZone: 30,
		PocketDistance: []Tier{
			{1, 20}, {2, 15}, {3, 10},
		},
		RSI: []Tier{
			{25, 25}, {30, 20}, {40, 15}, {50, 10},
		},
		SFP:            15,
		VolumeReversal: 25,
		VolumeExtreme:  20,
		VolumeAbnormal: 15,
		VolumeRatio: []Tier{
			{1.5, 10}, {1.2, 8}, {1.0, 5},
		},
		RangePosition: []Tier{
			{20, 15}, {35, 12}, {45, 8},
		},
		Liquidation:   10,
		Hammer:        8,
		WickDominance: 5,
		Doji:          3,
	}
}

// ConservativeProfile leans on the statistical stretch and trims the
// volume and candle-shape bonuses.
func ConservativeProfile() Profile {
	p := DefaultProfile()
	p.Name = "conservative"
	p.VolumeReversal = 15
	p.VolumeExtreme = 12
	p.VolumeAbnormal = 8
	p.VolumeRatio = []Tier{{1.5, 5}, {1.2, 3}}
	p.RangePosition = []Tier{{20, 10}, {35, 6}}
	p.Hammer = 5
	p.WickDominance = 3
	p.Doji = 0
	return p
}

// ProfileByName resolves a configured profile
func ProfileByName(name string) (Profile, error) {
	switch name {
	case "", "sniper":
		return DefaultProfile(), nil
	case "conservative":
		return ConservativeProfile(), nil
	}
	return Profile{}, fmt.Errorf("unknown scoring profile %q", name)
}

// Validate checks that each table is ordered so a stronger reading can never
// score fewer points.
func (p Profile) Validate() error {
	if p.MaxScore <= 0 {
		return errors.New("profile max score must be positive")
	}
	if err := descending("deviation", p.Deviation); err != nil {
		return err
	}
	if err := descending("volume ratio", p.VolumeRatio); err != nil {
		return err
	}
	for name, tiers := range map[string][]Tier{
		"pocket distance": p.PocketDistance,
		"rsi":             p.RSI,
		"range position":  p.RangePosition,
	} {
		if err := ascending(name, tiers); err != nil {
			return err
		}
	}
	if p.VolumeReversal < p.VolumeExtreme || p.VolumeExtreme < p.VolumeAbnormal {
		return errors.New("volume bonuses must not shrink as volume grows")
	}
	return nil
}

func descending(name string, tiers []Tier) error {
	for i := 1; i < len(tiers); i++ {
		if tiers[i].Threshold >= tiers[i-1].Threshold || tiers[i].Points > tiers[i-1].Points {
			return fmt.Errorf("%s tiers must be ordered by descending threshold and points", name)
		}
	}
	return nil
}

func ascending(name string, tiers []Tier) error {
	for i := 1; i < len(tiers); i++ {
		if tiers[i].Threshold <= tiers[i-1].Threshold || tiers[i].Points > tiers[i-1].Points {
			return fmt.Errorf("%s tiers must be ordered by ascending threshold and descending points", name)
		}
	}
	return nil
}

// atLeast returns the points of the first tier whose threshold v reaches
func atLeast(tiers []Tier, v float64) (Tier, bool) {
	for _, t := range tiers {
		if v >= t.Threshold {
			return t, true
		}
	}
	return Tier{}, false
}

// above is atLeast with a strict comparison
func above(tiers []Tier, v float64) (Tier, bool) {
	for _, t := range tiers {
		if v > t.Threshold {
			return t, true
		}
	}
	return Tier{}, false
}

// below returns the first tier whose threshold v is under
func below(tiers []Tier, v float64) (Tier, bool) {
	for _, t := range tiers {
		if v < t.Threshold {
			return t, true
		}
	}
	return Tier{}, false
}
