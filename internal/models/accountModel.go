package models

import (
	"time"
)

// Account is the paper trading equity that sizes new trades.
type Account struct {
	ID       uint    `gorm:"primaryKey" json:"-"`
	Currency string  `gorm:"uniqueIndex;not null" json:"currency"`
	Balance  float64 `gorm:"type:decimal(20,8);not null" json:"balance"`

	LastUpdated time.Time `gorm:"index;not null" json:"last_updated"`
}

// DailyPnL aggregates closed trades per UTC day.
type DailyPnL struct {
	Date   string  `gorm:"primaryKey;size:10" json:"date"`
	Trades int     `gorm:"not null" json:"trades"`
	Wins   int     `gorm:"not null" json:"wins"`
	Losses int     `gorm:"not null" json:"losses"`
	PnL    float64 `gorm:"column:pnl;type:decimal(20,8);not null" json:"pnl"`
}

// TableName sets the table name for DailyPnL model
func (DailyPnL) TableName() string {
	return "daily_pnl"
}

const (
	DefaultCurrency = "USDT"
	DayLayout       = "2006-01-02"
)
