package trading

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ReversalSniper/internal/models"
	"ReversalSniper/internal/services/strategy"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type memStore struct {
	mu      sync.Mutex
	fail    bool
	created []models.Trade
	updated []models.Trade
	samples []models.PerformanceSample
	account *models.Account
	daily   map[string]models.DailyPnL
	open    []models.Trade
	closed  []models.Trade
	maxNum  int64
}

var errDown = errors.New("database is down")

func newMemStore() *memStore {
	return &memStore{daily: map[string]models.DailyPnL{}}
}

func (m *memStore) stores() Stores {
	return Stores{Trades: m, Accounts: m, Samples: m, Daily: m}
}

func (m *memStore) Create(_ context.Context, t *models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errDown
	}
	m.created = append(m.created, *t)
	return nil
}

func (m *memStore) Update(_ context.Context, t *models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errDown
	}
	m.updated = append(m.updated, *t)
	return nil
}

func (m *memStore) FindOpen(context.Context) ([]models.Trade, error) { return m.open, nil }

func (m *memStore) FindRecentClosed(context.Context, int) ([]models.Trade, error) {
	return m.closed, nil
}

func (m *memStore) MaxTradeNumber(context.Context) (int64, error) { return m.maxNum, nil }

func (m *memStore) FindByCurrency(context.Context, string) (*models.Account, error) {
	return m.account, nil
}

func (m *memStore) Save(_ context.Context, a *models.Account) error {
	if m.fail {
		return errDown
	}
	cp := *a
	m.account = &cp
	return nil
}

func (m *memStore) Append(_ context.Context, s *models.PerformanceSample) error {
	if m.fail {
		return errDown
	}
	m.samples = append(m.samples, *s)
	return nil
}

func (m *memStore) AddClosed(_ context.Context, day string, pnl float64, winner bool) error {
	if m.fail {
		return errDown
	}
	d := m.daily[day]
	d.Date = day
	d.Trades++
	d.PnL += pnl
	if winner {
		d.Wins++
	} else {
		d.Losses++
	}
	m.daily[day] = d
	return nil
}

type fixedPrices map[string]float64

func (p fixedPrices) LastPrice(_ context.Context, symbol string) (float64, error) {
	price, ok := p[symbol]
	if !ok {
		return 0, fmt.Errorf("no price for %s", symbol)
	}
	return price, nil
}

type recordingNotifier struct {
	opened, closed []models.Trade
}

func (n *recordingNotifier) TradeOpened(_ context.Context, t models.Trade) { n.opened = append(n.opened, t) }
func (n *recordingNotifier) TradeClosed(_ context.Context, t models.Trade) { n.closed = append(n.closed, t) }

func candidate(symbol string, direction models.Direction) *strategy.SignalCandidate {
	c := &strategy.SignalCandidate{
		Symbol:      symbol,
		Direction:   direction,
		Entry:       100,
		Stop:        99,
		TakeProfits: []float64{102, 103, 104.5},
		Confidence:  82,
		Grade:       strategy.GradeA,
		Reasons:     []string{"In golden pocket (0.618-0.65)"},
		Deviation:   -2.2,
		CreatedAt:   t0,
	}
	c.GoldenPocketHit = true
	if direction == models.DirectionShort {
		c.Stop = 101
		c.TakeProfits = []float64{98, 97, 95.5}
		c.Deviation = 2.2
	}
	return c
}

func newLedger(store *memStore) *Ledger {
	return NewLedger(DefaultConfig(), store.stores(), nil, zerolog.Nop())
}

func TestTakeProfitClosure(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	l := newLedger(store)
	n := &recordingNotifier{}
	l.SetNotifier(n)

	trade, err := l.Promote(ctx, candidate("BTCUSDT", models.DirectionLong), t0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), trade.TradeNumber)
	assert.Equal(t, 15, trade.Leverage)
	// 2% of 1000 at a 1% stop with 15x leverage
	assert.InDelta(t, 133.33, trade.PositionValue, 1e-9)

	closed, err := l.CheckExits(ctx, fixedPrices{"BTCUSDT": 102.5}, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, closed, 1)

	got := closed[0]
	assert.Equal(t, models.TradeStatusClosed, got.Status)
	assert.Equal(t, models.ExitTakeProfit1, got.ExitReason)
	assert.Equal(t, 102.5, got.ExitPrice)
	assert.InDelta(t, 37.5, got.PnLPct, 1e-9)
	assert.InDelta(t, 49.99875, got.PnL, 1e-9)
	assert.Greater(t, got.PnL, 0.0)

	assert.Empty(t, l.OpenTrades())
	assert.InDelta(t, 1049.99875, l.Account().Balance, 1e-9)
	require.Len(t, store.samples, 1)
	assert.True(t, store.samples[0].Winner)
	assert.True(t, store.samples[0].GoldenPocketHit)
	assert.Equal(t, 1, store.daily["2025-03-01"].Wins)
	assert.Len(t, n.opened, 1)
	assert.Len(t, n.closed, 1)
}

func TestEvaluate(t *testing.T) {
	long, err := models.NewTrade("X", models.DirectionLong, 100, 99, []float64{102, 103, 104.5}, t0)
	require.NoError(t, err)
	short, err := models.NewTrade("X", models.DirectionShort, 100, 101, []float64{98, 97}, t0)
	require.NoError(t, err)

	tests := []struct {
		name   string
		trade  *models.Trade
		price  float64
		reason models.ExitReason
		hit    bool
	}{
		{"long holds", long, 100.5, "", false},
		{"long stop", long, 99, models.ExitStopLoss, true},
		{"long gap below stop", long, 95, models.ExitStopLoss, true},
		{"long tp1", long, 102, models.ExitTakeProfit1, true},
		{"long tp2", long, 103.9, models.ExitTakeProfit2, true},
		{"long beyond tp3", long, 110, models.ExitTakeProfit3, true},
		{"short holds", short, 99.5, "", false},
		{"short stop", short, 101.2, models.ExitStopLoss, true},
		{"short tp1", short, 98, models.ExitTakeProfit1, true},
		{"short beyond last tp", short, 90, models.ExitTakeProfit2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, hit := Evaluate(tt.trade, tt.price)
			assert.Equal(t, tt.hit, hit)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestRoundTripPnLSign(t *testing.T) {
	for _, direction := range []models.Direction{models.DirectionLong, models.DirectionShort} {
		c := candidate("ETHUSDT", direction)
		trade, err := models.NewTrade(c.Symbol, direction, c.Entry, c.Stop, c.TakeProfits, t0)
		require.NoError(t, err)
		trade.PositionValue = 100
		trade.Leverage = 10

		for _, tp := range trade.TakeProfits() {
			pnl, pct := PnL(trade, tp)
			assert.Greater(t, pnl, 0.0, "%s at tp %.2f", direction, tp)
			assert.Greater(t, pct, 0.0)
		}
		pnl, pct := PnL(trade, trade.StopLoss)
		assert.Less(t, pnl, 0.0, "%s at stop", direction)
		assert.InDelta(t, -10.0, pct, 1e-9)
		assert.InDelta(t, -10.0, pnl, 1e-9)
	}
}

func TestCheckExitsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	l := newLedger(store)

	_, err := l.Promote(ctx, candidate("BTCUSDT", models.DirectionLong), t0)
	require.NoError(t, err)

	prices := fixedPrices{"BTCUSDT": 98.7}
	first, err := l.CheckExits(ctx, prices, t0.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, models.ExitStopLoss, first[0].ExitReason)
	assert.Less(t, first[0].PnL, 0.0)

	balance := l.Account().Balance
	for i := 0; i < 3; i++ {
		again, err := l.CheckExits(ctx, prices, t0.Add(time.Duration(i+2)*time.Minute))
		require.NoError(t, err)
		assert.Empty(t, again)
	}
	assert.Equal(t, balance, l.Account().Balance)
	assert.Len(t, store.updated, 1)
	assert.Len(t, store.samples, 1)
	assert.Equal(t, 1, store.daily["2025-03-01"].Losses)
}

func TestPromoteRejections(t *testing.T) {
	ctx := context.Background()
	l := newLedger(newMemStore())

	_, err := l.Promote(ctx, candidate("BTCUSDT", models.DirectionLong), t0)
	require.NoError(t, err)

	_, err = l.Promote(ctx, candidate("BTCUSDT", models.DirectionShort), t0)
	assert.ErrorIs(t, err, ErrInstrumentOpen)

	for _, s := range []string{"ETHUSDT", "SOLUSDT"} {
		_, err = l.Promote(ctx, candidate(s, models.DirectionLong), t0)
		require.NoError(t, err)
	}
	_, err = l.Promote(ctx, candidate("XRPUSDT", models.DirectionLong), t0)
	assert.ErrorIs(t, err, ErrMaxOpenTrades)

	bad := candidate("ADAUSDT", models.DirectionLong)
	bad.Stop = 100
	l2 := newLedger(newMemStore())
	_, err = l2.Promote(ctx, bad, t0)
	assert.ErrorIs(t, err, models.ErrInvalidRisk)
}

func TestOneOpenTradePerInstrument(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(11))
	cfg := DefaultConfig()
	cfg.MaxOpen = 10
	cfg.MinPositionValue = 0
	l := NewLedger(cfg, newMemStore().stores(), nil, zerolog.Nop())

	symbols := []string{"A", "B", "C", "D"}
	var last int64
	for step := 0; step < 300; step++ {
		symbol := symbols[rng.Intn(len(symbols))]
		now := t0.Add(time.Duration(step) * time.Minute)

		if rng.Intn(3) == 0 {
			price := 98.0
			if rng.Intn(2) == 0 {
				price = 103.5
			}
			_, err := l.ApplyPrice(ctx, symbol, price, now)
			require.NoError(t, err)
		} else if trade, err := l.Promote(ctx, candidate(symbol, models.DirectionLong), now); err == nil {
			require.Greater(t, trade.TradeNumber, last)
			last = trade.TradeNumber
		} else {
			require.ErrorIs(t, err, ErrInstrumentOpen)
		}

		seen := map[string]bool{}
		for _, open := range l.OpenTrades() {
			require.False(t, seen[open.Symbol], "two open trades for %s", open.Symbol)
			seen[open.Symbol] = true
		}
	}
}

func TestFetchFailureLeavesTradeOpen(t *testing.T) {
	ctx := context.Background()
	l := newLedger(newMemStore())
	for _, s := range []string{"BTCUSDT", "ETHUSDT"} {
		_, err := l.Promote(ctx, candidate(s, models.DirectionLong), t0)
		require.NoError(t, err)
	}

	closed, err := l.CheckExits(ctx, fixedPrices{"ETHUSDT": 104}, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, "ETHUSDT", closed[0].Symbol)

	open := l.OpenTrades()
	require.Len(t, open, 1)
	assert.Equal(t, "BTCUSDT", open[0].Symbol)
}

func TestPersistenceFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	l := newLedger(store)
	store.fail = true

	trade, err := l.Promote(ctx, candidate("BTCUSDT", models.DirectionLong), t0)
	assert.ErrorIs(t, err, ErrPersistence)
	require.NotNil(t, trade)
	assert.Len(t, l.OpenTrades(), 1)

	closed, err := l.CheckExits(ctx, fixedPrices{"BTCUSDT": 102.1}, t0.Add(time.Hour))
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, errDown)
	require.Len(t, closed, 1)
	assert.Empty(t, l.OpenTrades())
	assert.Len(t, l.ClosedTrades(), 1)
}

func TestHistoryCapEvictsOldestClosed(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.HistoryCap = 5
	l := NewLedger(cfg, newMemStore().stores(), nil, zerolog.Nop())

	_, err := l.Promote(ctx, candidate("KEEP", models.DirectionLong), t0)
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		symbol := fmt.Sprintf("S%d", i)
		_, err := l.Promote(ctx, candidate(symbol, models.DirectionLong), t0)
		require.NoError(t, err)
		_, err = l.ApplyPrice(ctx, symbol, 102, t0.Add(time.Duration(i+1)*time.Minute))
		require.NoError(t, err)
	}

	closed := l.ClosedTrades()
	require.Len(t, closed, 5)
	assert.Equal(t, "S3", closed[0].Symbol)
	assert.Equal(t, "S7", closed[4].Symbol)
	require.Len(t, l.OpenTrades(), 1)
	assert.Equal(t, "KEEP", l.OpenTrades()[0].Symbol)
}

func TestLoadRestoresCounterAndAccount(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.maxNum = 41
	store.account = &models.Account{Currency: models.DefaultCurrency, Balance: 500}
	open, err := models.NewTrade("BTCUSDT", models.DirectionLong, 100, 99, []float64{102}, t0)
	require.NoError(t, err)
	open.TradeNumber = 41
	store.open = []models.Trade{*open}

	l := newLedger(store)
	require.NoError(t, l.Load(ctx))
	assert.Equal(t, 500.0, l.Account().Balance)
	assert.True(t, l.OpenSymbols()["BTCUSDT"])

	trade, err := l.Promote(ctx, candidate("ETHUSDT", models.DirectionLong), t0)
	require.NoError(t, err)
	assert.Equal(t, int64(42), trade.TradeNumber)
	// 2% of 500 at a 1% stop
	assert.InDelta(t, 66.67, trade.PositionValue, 1e-9)
}

func TestLoadCreatesMissingAccount(t *testing.T) {
	store := newMemStore()
	require.NoError(t, newLedger(store).Load(context.Background()))
	require.NotNil(t, store.account)
	assert.Equal(t, 1000.0, store.account.Balance)
}
