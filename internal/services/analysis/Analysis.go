package analysis

import (
	"errors"
	"fmt"
	"time"

	"ReversalSniper/internal/models"
	"ReversalSniper/internal/services/indicators"
)

const MinimumCandles = 50

var (
	ErrInsufficientData = errors.New("insufficient candle data")
	ErrInvalidCandle    = errors.New("invalid candle")
)

type Config struct {
	MinimumCandles      int
	RSIPeriod           int
	VWAPWindow          int
	VolumePeriod        int
	AbnormalVolumeK     float64
	ExtremeVolumeK      float64
	ATRPeriod           int
	SFPLookback         int
	SwingWindow         int
	StopWindow          int
	DailyCandles        int
	ChangeCandles       int
	LiquidationProxyPct float64
}

// DefaultConfig matches a 15m timeframe
func DefaultConfig() Config {
	return Config{
		MinimumCandles:      MinimumCandles,
		RSIPeriod:           14,
		VWAPWindow:          100,
		VolumePeriod:        20,
		AbnormalVolumeK:     1.5,
		ExtremeVolumeK:      2.5,
		ATRPeriod:           14,
		SFPLookback:         2,
		SwingWindow:         100,
		StopWindow:          20,
		DailyCandles:        96,
		ChangeCandles:       4,
		LiquidationProxyPct: 1.0,
	}
}

// ForTimeFrame sizes the daily range and price change windows so they cover
// 24h and 1h of candles at the given interval.
func (c Config) ForTimeFrame(tf models.TimeFrame) (Config, error) {
	step, err := tf.Duration()
	if err != nil {
		return c, err
	}
	c.DailyCandles = int(24 * time.Hour / step)
	c.ChangeCandles = max(1, int(time.Hour/step))
	return c, nil
}

type Analyzer struct {
	cfg     Config
	rsi     *indicators.RSIService
	vwap    *indicators.VWAPService
	sfp     *indicators.SFPService
	atr     *indicators.ATRService
	volume  *VolumeAnalyzer
	zones   *ZoneAnalyzer
	pattern *PatternAnalyzer
}

func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if cfg.MinimumCandles < 3 {
		cfg.MinimumCandles = MinimumCandles
	}
	volume, err := indicators.NewVolumeService(cfg.AbnormalVolumeK, cfg.ExtremeVolumeK)
	if err != nil {
		return nil, err
	}

	return &Analyzer{
		cfg:     cfg,
		rsi:     indicators.NewRSIService(),
		vwap:    indicators.NewVWAPService(),
		sfp:     indicators.NewSFPService(cfg.SFPLookback),
		atr:     indicators.NewATRService(),
		volume:  NewVolumeAnalyzer(volume, cfg.VolumePeriod, cfg.LiquidationProxyPct),
		zones:   NewZoneAnalyzer(cfg.SwingWindow, cfg.DailyCandles),
		pattern: NewPatternAnalyzer(),
	}, nil
}

// Snapshot computes every indicator and zone reading for the last candle
func (a *Analyzer) Snapshot(symbol string, candles []models.Candle, at time.Time) (*Snapshot, error) {
	if len(candles) < a.cfg.MinimumCandles {
		return nil, fmt.Errorf("%s: %w: have %d candles, need %d",
			symbol, ErrInsufficientData, len(candles), a.cfg.MinimumCandles)
	}
	for i, c := range candles {
		if c.Close <= 0 || c.High < c.Low || c.Volume < 0 {
			return nil, fmt.Errorf("%s: %w at index %d", symbol, ErrInvalidCandle, i)
		}
	}

	current := candles[len(candles)-1]
	price := current.Close

	snap := &Snapshot{
		Symbol:    symbol,
		Timestamp: at,
		Price:     price,
		Candles:   len(candles),
		RSI:       a.rsi.Calculate(models.Closes(candles), a.cfg.RSIPeriod),
		VWAP:      a.vwap.Calculate(tail(candles, a.cfg.VWAPWindow)),
		ATR:       a.atr.Calculate(candles, a.cfg.ATRPeriod),
		Volume:    a.volume.Spike(candles),
		Shape:     a.pattern.Shape(current),
	}

	snap.LongPocket, snap.ShortPocket = a.zones.GoldenPocket(candles, price)
	snap.BullishSFP = a.sfp.Detect(candles, models.DirectionLong)
	snap.BearishSFP = a.sfp.Detect(candles, models.DirectionShort)
	snap.BullishVolumeReversal, snap.BearishVolumeReversal = a.volume.Reversal(candles)
	snap.Daily = a.zones.DailyRange(candles, price)
	snap.Liquidation = a.volume.Proximity(a.volume.LiquidationLevels(candles), price)
	snap.SwingLow, snap.SwingHigh = a.zones.Swing(candles, a.cfg.StopWindow)

	if n := a.cfg.ChangeCandles; n > 0 && len(candles) > n {
		ref := candles[len(candles)-1-n].Close
		snap.PriceChangePct = (price - ref) / ref * 100
	}

	return snap, nil
}
