package trading

import (
	"context"
	"sort"
	"sync"

	"ReversalSniper/internal/models"
)

// MemoryStore keeps ledger rows in process. It backs backtests and runs
// without a database.
type MemoryStore struct {
	mu      sync.RWMutex
	trades  map[int64]models.Trade
	samples []models.PerformanceSample
	account *models.Account
	daily   map[string]models.DailyPnL
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trades: make(map[int64]models.Trade),
		daily:  make(map[string]models.DailyPnL),
	}
}

// Stores wires the memory store into every ledger slot
func (m *MemoryStore) Stores() Stores {
	return Stores{Trades: m, Accounts: m, Samples: m, Daily: m}
}

func (m *MemoryStore) Create(_ context.Context, trade *models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades[trade.TradeNumber] = copyTrade(trade)
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, trade *models.Trade) error {
	return m.Create(ctx, trade)
}

func (m *MemoryStore) FindOpen(context.Context) ([]models.Trade, error) {
	return m.find(func(t models.Trade) bool { return t.IsOpen() }), nil
}

func (m *MemoryStore) FindRecentClosed(_ context.Context, limit int) ([]models.Trade, error) {
	closed := m.find(func(t models.Trade) bool { return !t.IsOpen() })
	sort.SliceStable(closed, func(i, j int) bool {
		return exitTime(&closed[i]).Before(exitTime(&closed[j]))
	})
	if len(closed) > limit {
		closed = closed[len(closed)-limit:]
	}
	return closed, nil
}

// All returns every trade ever written, by trade number
func (m *MemoryStore) All() []models.Trade {
	return m.find(func(models.Trade) bool { return true })
}

func (m *MemoryStore) MaxTradeNumber(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for number := range m.trades {
		if number > n {
			n = number
		}
	}
	return n, nil
}

func (m *MemoryStore) FindByCurrency(_ context.Context, currency string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.account == nil || m.account.Currency != currency {
		return nil, nil
	}
	cp := *m.account
	return &cp, nil
}

func (m *MemoryStore) Save(_ context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *account
	m.account = &cp
	return nil
}

func (m *MemoryStore) Append(_ context.Context, sample *models.PerformanceSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.samples {
		if s.TradeNumber == sample.TradeNumber {
			return nil
		}
	}
	m.samples = append(m.samples, *sample)
	return nil
}

// Recent returns the latest samples, oldest first
func (m *MemoryStore) Recent(_ context.Context, limit int) ([]models.PerformanceSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start := len(m.samples) - limit
	if start < 0 {
		start = 0
	}
	return append([]models.PerformanceSample(nil), m.samples[start:]...), nil
}

func (m *MemoryStore) Count(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.samples)), nil
}

func (m *MemoryStore) AddClosed(_ context.Context, day string, pnl float64, winner bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
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

// FindRecent returns daily rows newest first
func (m *MemoryStore) FindRecent(_ context.Context, days int) ([]models.DailyPnL, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := make([]models.DailyPnL, 0, len(m.daily))
	for _, d := range m.daily {
		rows = append(rows, d)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date > rows[j].Date })
	if len(rows) > days {
		rows = rows[:days]
	}
	return rows, nil
}

func (m *MemoryStore) find(keep func(models.Trade) bool) []models.Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Trade
	for _, t := range m.trades {
		if keep(t) {
			out = append(out, copyTrade(&t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TradeNumber < out[j].TradeNumber })
	return out
}

func copyTrade(t *models.Trade) models.Trade {
	cp := *t
	cp.Reasons = append([]string(nil), t.Reasons...)
	if t.ExitTime != nil {
		at := *t.ExitTime
		cp.ExitTime = &at
	}
	return cp
}
