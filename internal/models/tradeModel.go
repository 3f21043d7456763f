package models

import (
	"errors"
	"fmt"
	"time"
)

type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

type ExitReason string

const (
	ExitStopLoss    ExitReason = "stop_loss"
	ExitTakeProfit1 ExitReason = "take_profit_1"
	ExitTakeProfit2 ExitReason = "take_profit_2"
	ExitTakeProfit3 ExitReason = "take_profit_3"
)

const (
	TradeStatusOpen   = "open"
	TradeStatusClosed = "closed"

	MaxTakeProfits = 3
)

var (
	ErrInvalidLevels = errors.New("invalid trade levels")
	ErrInvalidRisk   = errors.New("stop loss leaves no risk distance")
	ErrTradeClosed   = errors.New("trade already closed")
)

// Trade is a paper position. Stop and take-profit levels are fixed when the
// trade is built and only the exit fields change afterwards.
type Trade struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	TradeNumber int64     `gorm:"uniqueIndex;not null" json:"trade_number"`
	Symbol      string    `gorm:"index;not null" json:"symbol"`
	Direction   Direction `gorm:"type:varchar(8);not null" json:"direction"`

	EntryPrice  float64 `gorm:"type:decimal(20,8);not null" json:"entry_price"`
	StopLoss    float64 `gorm:"type:decimal(20,8);not null" json:"stop_loss"`
	TakeProfit1 float64 `gorm:"type:decimal(20,8);not null" json:"take_profit_1"`
	TakeProfit2 float64 `gorm:"type:decimal(20,8)" json:"take_profit_2,omitempty"`
	TakeProfit3 float64 `gorm:"type:decimal(20,8)" json:"take_profit_3,omitempty"`

	PositionValue float64 `gorm:"type:decimal(20,8);not null" json:"position_value"`
	Leverage      int     `gorm:"not null" json:"leverage"`

	Confidence      float64  `gorm:"type:decimal(10,4)" json:"confidence"`
	Grade           string   `gorm:"size:4" json:"grade"`
	Reasons         []string `gorm:"serializer:json" json:"reasons"`
	Deviation       float64  `gorm:"type:decimal(20,8)" json:"deviation"`
	GoldenPocketHit bool     `json:"golden_pocket_hit"`
	SFPHit          bool     `json:"sfp_hit"`

	EntryTime time.Time `gorm:"index;not null" json:"entry_time"`
	Status    string    `gorm:"index;not null" json:"status"`

	ExitPrice  float64    `gorm:"type:decimal(20,8)" json:"exit_price,omitempty"`
	ExitReason ExitReason `gorm:"size:16" json:"exit_reason,omitempty"`
	ExitTime   *time.Time `gorm:"index" json:"exit_time,omitempty"`
	PnL        float64    `gorm:"column:pnl;type:decimal(20,8)" json:"pnl"`
	PnLPct     float64    `gorm:"column:pnl_pct;type:decimal(20,8)" json:"pnl_pct"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"-"`
}

// NewTrade validates the price levels and returns an open trade. Sizing,
// numbering and scoring fields are filled in by the ledger.
func NewTrade(symbol string, direction Direction, entry, stop float64, takeProfits []float64, entryTime time.Time) (*Trade, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrInvalidLevels)
	}
	if err := ValidateLevels(direction, entry, stop, takeProfits); err != nil {
		return nil, err
	}

	trade := &Trade{
		Symbol:      symbol,
		Direction:   direction,
		EntryPrice:  entry,
		StopLoss:    stop,
		TakeProfit1: takeProfits[0],
		EntryTime:   entryTime,
		Status:      TradeStatusOpen,
	}
	if len(takeProfits) > 1 {
		trade.TakeProfit2 = takeProfits[1]
	}
	if len(takeProfits) > 2 {
		trade.TakeProfit3 = takeProfits[2]
	}
	return trade, nil
}

// ValidateLevels checks that the stop sits on the losing side of entry and
// that 1-3 positive take-profits step away from entry on the winning side.
func ValidateLevels(direction Direction, entry, stop float64, takeProfits []float64) error {
	if entry <= 0 || stop <= 0 {
		return fmt.Errorf("%w: entry %.8f stop %.8f", ErrInvalidLevels, entry, stop)
	}
	if len(takeProfits) == 0 || len(takeProfits) > MaxTakeProfits {
		return fmt.Errorf("%w: %d take profits", ErrInvalidLevels, len(takeProfits))
	}

	sign := direction.Sign()
	if sign == 0 {
		return fmt.Errorf("%w: direction %q", ErrInvalidLevels, direction)
	}
	if (entry-stop)*sign <= 0 {
		return fmt.Errorf("%w: entry %.8f stop %.8f", ErrInvalidRisk, entry, stop)
	}

	prev := entry
	for i, tp := range takeProfits {
		if tp <= 0 || (tp-prev)*sign <= 0 {
			return fmt.Errorf("%w: take profit %d at %.8f", ErrInvalidLevels, i+1, tp)
		}
		prev = tp
	}
	return nil
}

// Sign is +1 for long and -1 for short
func (d Direction) Sign() float64 {
	switch d {
	case DirectionLong:
		return 1
	case DirectionShort:
		return -1
	}
	return 0
}

// TakeProfits returns the configured ladder, nearest target first
func (t *Trade) TakeProfits() []float64 {
	tps := []float64{t.TakeProfit1}
	if t.TakeProfit2 > 0 {
		tps = append(tps, t.TakeProfit2)
	}
	if t.TakeProfit3 > 0 {
		tps = append(tps, t.TakeProfit3)
	}
	return tps
}

func (t *Trade) IsOpen() bool {
	return t.Status == TradeStatusOpen
}

// Close moves an open trade to its terminal state
func (t *Trade) Close(exitPrice float64, reason ExitReason, pnl, pnlPct float64, at time.Time) error {
	if !t.IsOpen() {
		return fmt.Errorf("%w: #%d", ErrTradeClosed, t.TradeNumber)
	}
	t.Status = TradeStatusClosed
	t.ExitPrice = exitPrice
	t.ExitReason = reason
	t.PnL = pnl
	t.PnLPct = pnlPct
	t.ExitTime = &at
	return nil
}

// TakeProfitReason maps a 1-based ladder index to its exit reason
func TakeProfitReason(level int) ExitReason {
	return ExitReason(fmt.Sprintf("take_profit_%d", level))
}
