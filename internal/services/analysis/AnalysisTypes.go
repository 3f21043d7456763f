package analysis

import (
	"time"

	"ReversalSniper/internal/models"
	"ReversalSniper/internal/services/indicators"
)

// Snapshot is the statistical state of one instrument at scan time. It is
// rebuilt every scan and never persisted.
type Snapshot struct {
	Symbol    string
	Timestamp time.Time
	Price     float64
	Candles   int

	RSI         indicators.RSIResult
	VWAP        indicators.VWAPResult
	LongPocket  indicators.GoldenPocket
	ShortPocket indicators.GoldenPocket
	BullishSFP  bool
	BearishSFP  bool
	Volume      indicators.VolumeSpike
	ATR         indicators.ATRResult

	// Extreme volume on the previous candle followed by a candle closing
	// the other way
	BullishVolumeReversal bool
	BearishVolumeReversal bool

	Daily       DailyRange
	Liquidation LiquidationProximity
	Shape       CandleShape

	PriceChangePct float64
	SwingLow       float64
	SwingHigh      float64
}

type DailyRange struct {
	High float64
	Low  float64
	// PositionPct is 0 at the daily low and 100 at the daily high
	PositionPct float64
	OK          bool
}

type LiquidationLevel struct {
	Price      float64
	Support    bool
	Importance float64
	Time       time.Time
}

type LiquidationProximity struct {
	Levels         []LiquidationLevel
	NearSupport    bool
	NearResistance bool
}

type CandleShape struct {
	LowerWickDominant bool
	UpperWickDominant bool
	Hammer            bool
	ShootingStar      bool
	Doji              bool
}

// Side is the snapshot seen from one direction. Short readings are mirrored
// so that larger Stretch and lower RSI always favour the given direction.
type Side struct {
	Direction models.Direction

	Stretch   float64
	StretchOK bool

	RSI   float64
	RSIOK bool

	Pocket          indicators.GoldenPocket
	SFP             bool
	Volume          indicators.VolumeSpike
	VolumeReversal  bool
	RangePosition   float64
	RangeOK         bool
	NearLiquidation bool

	Hammer       bool
	WickDominant bool
	Doji         bool
}

// Side mirrors the snapshot for the given direction
func (s *Snapshot) Side(direction models.Direction) Side {
	side := Side{
		Direction: direction,
		StretchOK: s.VWAP.OK,
		RSIOK:     s.RSI.OK,
		Volume:    s.Volume,
		RangeOK:   s.Daily.OK,
		Doji:      s.Shape.Doji,
	}

	if direction == models.DirectionShort {
		side.Stretch = s.VWAP.Deviation
		side.RSI = 100 - s.RSI.Value
		side.Pocket = s.ShortPocket
		side.SFP = s.BearishSFP
		side.VolumeReversal = s.BearishVolumeReversal
		side.RangePosition = 100 - s.Daily.PositionPct
		side.NearLiquidation = s.Liquidation.NearResistance
		side.Hammer = s.Shape.ShootingStar
		side.WickDominant = s.Shape.UpperWickDominant
		return side
	}

	side.Stretch = -s.VWAP.Deviation
	side.RSI = s.RSI.Value
	side.Pocket = s.LongPocket
	side.SFP = s.BullishSFP
	side.VolumeReversal = s.BullishVolumeReversal
	side.RangePosition = s.Daily.PositionPct
	side.NearLiquidation = s.Liquidation.NearSupport
	side.Hammer = s.Shape.Hammer
	side.WickDominant = s.Shape.LowerWickDominant
	return side
}
