package models

import (
	"time"
)

// PerformanceSample is written once per closed trade and never updated.
type PerformanceSample struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	TradeNumber int64     `gorm:"uniqueIndex;not null" json:"trade_number"`
	Symbol      string    `gorm:"index;not null" json:"symbol"`
	Direction   Direction `gorm:"type:varchar(8);not null" json:"direction"`

	Winner     bool    `gorm:"not null" json:"winner"`
	Confidence float64 `gorm:"type:decimal(10,4)" json:"confidence"`
	PnLPct     float64 `gorm:"column:pnl_pct;type:decimal(20,8)" json:"pnl_pct"`
	Deviation  float64 `gorm:"type:decimal(20,8)" json:"deviation"`

	GoldenPocketHit bool `json:"golden_pocket_hit"`
	SFPHit          bool `json:"sfp_hit"`

	ClosedAt time.Time `gorm:"index;not null" json:"closed_at"`
}

// SampleFromTrade builds the learning sample for a closed trade
func SampleFromTrade(t *Trade) PerformanceSample {
	closedAt := t.EntryTime
	if t.ExitTime != nil {
		closedAt = *t.ExitTime
	}
	return PerformanceSample{
		TradeNumber:     t.TradeNumber,
		Symbol:          t.Symbol,
		Direction:       t.Direction,
		Winner:          t.PnL > 0,
		Confidence:      t.Confidence,
		PnLPct:          t.PnLPct,
		Deviation:       t.Deviation,
		GoldenPocketHit: t.GoldenPocketHit,
		SFPHit:          t.SFPHit,
		ClosedAt:        closedAt,
	}
}
