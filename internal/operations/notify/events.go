package notify

import (
	"time"

	"github.com/google/uuid"

	"ReversalSniper/internal/models"
	"ReversalSniper/internal/services/strategy"
)

type EventType string

const (
	EventSignal      EventType = "signal"
	EventTradeOpened EventType = "trade_opened"
	EventTradeClosed EventType = "trade_closed"
)

// Tier names the selection band a signal came from
type Tier string

const (
	TierTrade Tier = "trade"
	TierWatch Tier = "watch"
)

// Event is the structured value every publisher receives
type Event struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	Symbol    string        `json:"symbol"`
	Timestamp time.Time     `json:"timestamp"`
	Signal    *SignalDetail `json:"signal,omitempty"`
	Trade     *models.Trade `json:"trade,omitempty"`
}

type SignalDetail struct {
	Tier         Tier             `json:"tier"`
	Direction    models.Direction `json:"direction"`
	Entry        float64          `json:"entry"`
	Stop         float64          `json:"stop"`
	TakeProfits  []float64        `json:"take_profits"`
	Confidence   float64          `json:"confidence"`
	DisplayScore float64          `json:"display_score"`
	Grade        strategy.Grade   `json:"grade"`
	Reasons      []string         `json:"reasons"`
	Seeded       bool             `json:"seeded,omitempty"`
}

func NewSignalEvent(c *strategy.SignalCandidate, tier Tier, seeded bool, at time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      EventSignal,
		Symbol:    c.Symbol,
		Timestamp: at,
		Signal: &SignalDetail{
			Tier:         tier,
			Direction:    c.Direction,
			Entry:        c.Entry,
			Stop:         c.Stop,
			TakeProfits:  append([]float64(nil), c.TakeProfits...),
			Confidence:   c.Confidence,
			DisplayScore: c.DisplayScore(),
			Grade:        c.Grade,
			Reasons:      append([]string(nil), c.Reasons...),
			Seeded:       seeded,
		},
	}
}

func NewTradeEvent(kind EventType, trade models.Trade, at time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      kind,
		Symbol:    trade.Symbol,
		Timestamp: at,
		Trade:     &trade,
	}
}
