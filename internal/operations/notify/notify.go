package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ReversalSniper/internal/metrics"
	"ReversalSniper/internal/models"
)

// Publisher delivers events to one destination
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Name() string
}

// Manager fans events out to every publisher. A failing publisher is logged
// and counted; the others still receive the event.
type Manager struct {
	publishers []Publisher
	timeout    time.Duration
	metrics    *metrics.Recorder
	log        zerolog.Logger
	now        func() time.Time
}

func NewManager(timeout time.Duration, recorder *metrics.Recorder, log zerolog.Logger) *Manager {
	return &Manager{
		timeout: timeout,
		metrics: recorder,
		log:     log.With().Str("component", "notify").Logger(),
		now:     time.Now,
	}
}

// AddPublisher adds a notification destination
func (m *Manager) AddPublisher(p Publisher) {
	m.publishers = append(m.publishers, p)
}

func (m *Manager) Publishers() []string {
	names := make([]string, len(m.publishers))
	for i, p := range m.publishers {
		names[i] = p.Name()
	}
	return names
}

func (m *Manager) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m.publishers {
		pctx, cancel := context.WithTimeout(ctx, m.timeout)
		err := p.Publish(pctx, event)
		cancel()
		if err != nil {
			m.metrics.RecordPublishFailure(p.Name())
			m.log.Warn().
				Err(err).
				Str("publisher", p.Name()).
				Str("event", string(event.Type)).
				Str("symbol", event.Symbol).
				Msg("publish failed")
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// TradeOpened publishes a ledger opening
func (m *Manager) TradeOpened(ctx context.Context, trade models.Trade) {
	_ = m.Publish(ctx, NewTradeEvent(EventTradeOpened, trade, m.now()))
}

// TradeClosed publishes a ledger closure
func (m *Manager) TradeClosed(ctx context.Context, trade models.Trade) {
	_ = m.Publish(ctx, NewTradeEvent(EventTradeClosed, trade, m.now()))
}

// LogPublisher writes events to the structured log
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log.With().Str("component", "signals").Logger()}
}

func (p *LogPublisher) Name() string {
	return "log"
}

func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	e := p.log.Info().
		Str("event_id", event.ID).
		Str("event", string(event.Type)).
		Str("symbol", event.Symbol)

	switch {
	case event.Signal != nil:
		s := event.Signal
		e.Str("tier", string(s.Tier)).
			Str("direction", string(s.Direction)).
			Float64("confidence", s.Confidence).
			Float64("score", s.DisplayScore).
			Str("grade", string(s.Grade)).
			Float64("entry", s.Entry).
			Float64("stop", s.Stop).
			Floats64("take_profits", s.TakeProfits).
			Strs("reasons", s.Reasons).
			Msg("signal")
	case event.Trade != nil:
		t := event.Trade
		e.Int64("trade", t.TradeNumber).
			Str("direction", string(t.Direction)).
			Str("status", t.Status).
			Str("reason", string(t.ExitReason)).
			Float64("pnl", t.PnL).
			Float64("pnl_pct", t.PnLPct).
			Msg("trade")
	default:
		e.Msg("event")
	}
	return nil
}
