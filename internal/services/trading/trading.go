package trading

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ReversalSniper/internal/metrics"
	"ReversalSniper/internal/models"
	"ReversalSniper/internal/services/strategy"
)

var (
	ErrMaxOpenTrades  = errors.New("maximum open trades reached")
	ErrInstrumentOpen = errors.New("instrument already has an open trade")
	ErrNoBalance      = errors.New("account balance exhausted")
	ErrPersistence    = errors.New("ledger persistence failed")
)

type TradeStore interface {
	Create(ctx context.Context, trade *models.Trade) error
	Update(ctx context.Context, trade *models.Trade) error
	FindOpen(ctx context.Context) ([]models.Trade, error)
	FindRecentClosed(ctx context.Context, limit int) ([]models.Trade, error)
	MaxTradeNumber(ctx context.Context) (int64, error)
}

type AccountStore interface {
	FindByCurrency(ctx context.Context, currency string) (*models.Account, error)
	Save(ctx context.Context, account *models.Account) error
}

type SampleStore interface {
	Append(ctx context.Context, sample *models.PerformanceSample) error
}

type DailyStore interface {
	AddClosed(ctx context.Context, day string, pnl float64, winner bool) error
}

// Stores groups the ledger's persistence collaborators
type Stores struct {
	Trades   TradeStore
	Accounts AccountStore
	Samples  SampleStore
	Daily    DailyStore
}

// Notifier receives lifecycle events after the ledger lock is released
type Notifier interface {
	TradeOpened(ctx context.Context, trade models.Trade)
	TradeClosed(ctx context.Context, trade models.Trade)
}

// PriceSource returns the last traded price for an instrument
type PriceSource interface {
	LastPrice(ctx context.Context, symbol string) (float64, error)
}

type Config struct {
	MaxOpen          int
	HistoryCap       int
	Leverage         int
	InitialBalance   float64
	RiskPerTrade     float64 // fraction of balance lost at the stop
	MaxPositionPct   float64 // margin cap as a fraction of balance
	MinPositionValue float64
	PriceTimeout     time.Duration
	Currency         string
}

func DefaultConfig() Config {
	return Config{
		MaxOpen:          3,
		HistoryCap:       100,
		Leverage:         15,
		InitialBalance:   1000.0,
		RiskPerTrade:     0.02,
		MaxPositionPct:   0.33,
		MinPositionValue: 10,
		PriceTimeout:     10 * time.Second,
		Currency:         models.DefaultCurrency,
	}
}

// Ledger owns every trade. All mutations go through its mutex and are
// written through to the stores; a failed write keeps the in-memory state
// and is reported to the caller wrapped in ErrPersistence.
type Ledger struct {
	cfg      Config
	stores   Stores
	metrics  *metrics.Recorder
	notifier Notifier
	log      zerolog.Logger

	mu         sync.RWMutex
	trades     []*models.Trade
	account    models.Account
	nextNumber int64
}

func NewLedger(cfg Config, stores Stores, recorder *metrics.Recorder, log zerolog.Logger) *Ledger {
	return &Ledger{
		cfg:        cfg,
		stores:     stores,
		metrics:    recorder,
		log:        log.With().Str("component", "ledger").Logger(),
		account:    models.Account{Currency: cfg.Currency, Balance: cfg.InitialBalance},
		nextNumber: 1,
	}
}

// SetNotifier attaches the lifecycle event sink
func (l *Ledger) SetNotifier(n Notifier) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notifier = n
}

// Load restores open trades, recent history, the trade counter and the
// account from the stores.
func (l *Ledger) Load(ctx context.Context) error {
	open, err := l.stores.Trades.FindOpen(ctx)
	if err != nil {
		return fmt.Errorf("failed to load open trades: %w", err)
	}
	closed, err := l.stores.Trades.FindRecentClosed(ctx, l.cfg.HistoryCap)
	if err != nil {
		return fmt.Errorf("failed to load closed trades: %w", err)
	}
	maxNumber, err := l.stores.Trades.MaxTradeNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to load trade counter: %w", err)
	}
	account, err := l.stores.Accounts.FindByCurrency(ctx, l.cfg.Currency)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.trades = l.trades[:0]
	for i := range closed {
		l.trades = append(l.trades, &closed[i])
	}
	for i := range open {
		l.trades = append(l.trades, &open[i])
	}
	l.nextNumber = maxNumber + 1

	if account == nil {
		l.account = models.Account{Currency: l.cfg.Currency, Balance: l.cfg.InitialBalance, LastUpdated: time.Now()}
		if err := l.stores.Accounts.Save(ctx, &l.account); err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
	} else {
		l.account = *account
	}

	l.trim()
	l.metrics.SetOpenTrades(l.openCount())
	l.log.Info().
		Int("open", len(open)).
		Int("closed", len(closed)).
		Int64("next_trade", l.nextNumber).
		Float64("balance", l.account.Balance).
		Msg("ledger restored")
	return nil
}

// Promote opens a paper trade for a trade-tier candidate
func (l *Ledger) Promote(ctx context.Context, c *strategy.SignalCandidate, now time.Time) (*models.Trade, error) {
	trade, notifier, err := l.promote(ctx, c, now)
	if trade != nil && notifier != nil {
		notifier.TradeOpened(ctx, *trade)
	}
	return trade, err
}

func (l *Ledger) promote(ctx context.Context, c *strategy.SignalCandidate, now time.Time) (*models.Trade, Notifier, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.openCount() >= l.cfg.MaxOpen {
		return nil, nil, fmt.Errorf("%w (%d)", ErrMaxOpenTrades, l.cfg.MaxOpen)
	}
	if l.findOpen(c.Symbol) != nil {
		return nil, nil, fmt.Errorf("%s: %w", c.Symbol, ErrInstrumentOpen)
	}

	trade, err := models.NewTrade(c.Symbol, c.Direction, c.Entry, c.Stop, c.TakeProfits, now)
	if err != nil {
		return nil, nil, err
	}

	size, err := l.positionValue(c.RiskPct())
	if err != nil {
		return nil, nil, err
	}

	trade.TradeNumber = l.nextNumber
	trade.PositionValue = size
	trade.Leverage = l.cfg.Leverage
	trade.Confidence = c.Confidence
	trade.Grade = string(c.Grade)
	trade.Reasons = append([]string(nil), c.Reasons...)
	trade.Deviation = c.Deviation
	trade.GoldenPocketHit = c.GoldenPocketHit
	trade.SFPHit = c.SFPHit

	l.nextNumber++
	l.trades = append(l.trades, trade)
	l.metrics.RecordTradeOpened(string(trade.Direction))
	l.metrics.SetOpenTrades(l.openCount())

	l.log.Info().
		Int64("trade", trade.TradeNumber).
		Str("symbol", trade.Symbol).
		Str("direction", string(trade.Direction)).
		Float64("entry", trade.EntryPrice).
		Float64("stop", trade.StopLoss).
		Floats64("take_profits", trade.TakeProfits()).
		Float64("position_value", trade.PositionValue).
		Float64("confidence", trade.Confidence).
		Msg("trade opened")

	if err := l.stores.Trades.Create(ctx, trade); err != nil {
		return l.copyOf(trade), l.notifier, l.persistenceFailure("create trade", err)
	}
	return l.copyOf(trade), l.notifier, nil
}

// CheckExits evaluates every open trade against its last price. A failed
// price fetch leaves that trade open for the next cycle.
func (l *Ledger) CheckExits(ctx context.Context, prices PriceSource, now time.Time) ([]models.Trade, error) {
	var closed []models.Trade
	var errs []error

	for _, symbol := range l.openSymbolList() {
		fetchCtx, cancel := context.WithTimeout(ctx, l.cfg.PriceTimeout)
		price, err := prices.LastPrice(fetchCtx, symbol)
		cancel()
		if err != nil {
			l.metrics.RecordFetchError("price")
			l.log.Warn().Err(err).Str("symbol", symbol).Msg("price check failed, trade stays open")
			continue
		}

		trade, err := l.ApplyPrice(ctx, symbol, price, now)
		if trade != nil {
			closed = append(closed, *trade)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	return closed, errors.Join(errs...)
}

// ApplyPrice checks the open trade for symbol against one price and closes
// it if an exit level was crossed. It returns nil when nothing changed.
func (l *Ledger) ApplyPrice(ctx context.Context, symbol string, price float64, now time.Time) (*models.Trade, error) {
	trade, notifier, err := l.applyPrice(ctx, symbol, price, now)
	if trade != nil && notifier != nil {
		notifier.TradeClosed(ctx, *trade)
	}
	return trade, err
}

func (l *Ledger) applyPrice(ctx context.Context, symbol string, price float64, now time.Time) (*models.Trade, Notifier, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	trade := l.findOpen(symbol)
	if trade == nil || price <= 0 {
		return nil, nil, nil
	}

	reason, hit := Evaluate(trade, price)
	if !hit {
		return nil, nil, nil
	}

	pnl, pnlPct := PnL(trade, price)
	if err := trade.Close(price, reason, pnl, pnlPct, now); err != nil {
		return nil, nil, err
	}
	l.account.Balance = decimal.NewFromFloat(l.account.Balance).Add(decimal.NewFromFloat(pnl)).Round(8).InexactFloat64()
	l.account.LastUpdated = now

	l.metrics.RecordTradeClosed(string(reason), pnl)
	l.metrics.SetOpenTrades(l.openCount())
	l.log.Info().
		Int64("trade", trade.TradeNumber).
		Str("symbol", trade.Symbol).
		Str("direction", string(trade.Direction)).
		Str("reason", string(reason)).
		Float64("entry", trade.EntryPrice).
		Float64("exit", price).
		Float64("pnl", pnl).
		Float64("pnl_pct", pnlPct).
		Msg("trade closed")

	var errs []error
	if err := l.stores.Trades.Update(ctx, trade); err != nil {
		errs = append(errs, l.persistenceFailure("update trade", err))
	}
	sample := models.SampleFromTrade(trade)
	if err := l.stores.Samples.Append(ctx, &sample); err != nil {
		errs = append(errs, l.persistenceFailure("append sample", err))
	}
	if err := l.stores.Accounts.Save(ctx, &l.account); err != nil {
		errs = append(errs, l.persistenceFailure("save account", err))
	}
	if err := l.stores.Daily.AddClosed(ctx, now.UTC().Format(models.DayLayout), pnl, pnl > 0); err != nil {
		errs = append(errs, l.persistenceFailure("update daily pnl", err))
	}

	out := l.copyOf(trade)
	l.trim()
	return out, l.notifier, errors.Join(errs...)
}

// Evaluate decides whether price crosses an exit level. Take-profits are
// checked from the furthest level inward so the best level reached wins.
func Evaluate(trade *models.Trade, price float64) (models.ExitReason, bool) {
	if !trade.IsOpen() {
		return "", false
	}
	sign := trade.Direction.Sign()

	if (price-trade.StopLoss)*sign <= 0 {
		return models.ExitStopLoss, true
	}

	tps := trade.TakeProfits()
	for k := len(tps); k >= 1; k-- {
		if (price-tps[k-1])*sign >= 0 {
			return models.TakeProfitReason(k), true
		}
	}
	return "", false
}

// PnL returns realized profit in quote currency and as a leveraged percentage
func PnL(trade *models.Trade, exit float64) (float64, float64) {
	entry := decimal.NewFromFloat(trade.EntryPrice)
	move := decimal.NewFromFloat(exit).Sub(entry).Div(entry)
	if trade.Direction == models.DirectionShort {
		move = move.Neg()
	}
	leverage := decimal.NewFromInt(int64(trade.Leverage))

	pnl := move.Mul(decimal.NewFromFloat(trade.PositionValue)).Mul(leverage).Round(8)
	pnlPct := move.Mul(decimal.NewFromInt(100)).Mul(leverage).Round(8)
	return pnl.InexactFloat64(), pnlPct.InexactFloat64()
}

// positionValue sizes the margin so that hitting the stop loses RiskPerTrade
// of the balance; caller holds mu.
func (l *Ledger) positionValue(riskPct float64) (float64, error) {
	balance := l.account.Balance
	if balance <= 0 {
		return 0, ErrNoBalance
	}
	if riskPct <= 0 {
		return 0, models.ErrInvalidRisk
	}

	leverage := float64(l.cfg.Leverage)
	if leverage <= 0 {
		leverage = 1
	}

	value := balance * l.cfg.RiskPerTrade / (leverage * riskPct / 100)
	if maxValue := balance * l.cfg.MaxPositionPct; value > maxValue {
		value = maxValue
	}
	if value < l.cfg.MinPositionValue {
		value = l.cfg.MinPositionValue
	}
	if value > balance {
		return 0, fmt.Errorf("%w: need %.2f, have %.2f", ErrNoBalance, value, balance)
	}
	return decimal.NewFromFloat(value).Round(2).InexactFloat64(), nil
}

func (l *Ledger) persistenceFailure(op string, err error) error {
	l.metrics.RecordPersistenceFailure(op)
	l.log.Error().Err(err).Str("op", op).Msg("ledger write failed, keeping in-memory state")
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// trim evicts the oldest closed trades beyond the history cap; caller holds mu
func (l *Ledger) trim() {
	var closed []*models.Trade
	for _, t := range l.trades {
		if !t.IsOpen() {
			closed = append(closed, t)
		}
	}
	excess := len(closed) - l.cfg.HistoryCap
	if excess <= 0 {
		return
	}

	sort.SliceStable(closed, func(i, j int) bool {
		return exitTime(closed[i]).Before(exitTime(closed[j]))
	})
	evict := make(map[*models.Trade]bool, excess)
	for _, t := range closed[:excess] {
		evict[t] = true
	}

	kept := l.trades[:0]
	for _, t := range l.trades {
		if !evict[t] {
			kept = append(kept, t)
		}
	}
	for i := len(kept); i < len(l.trades); i++ {
		l.trades[i] = nil
	}
	l.trades = kept
}

func exitTime(t *models.Trade) time.Time {
	if t.ExitTime != nil {
		return *t.ExitTime
	}
	return t.EntryTime
}

func (l *Ledger) findOpen(symbol string) *models.Trade {
	for _, t := range l.trades {
		if t.IsOpen() && t.Symbol == symbol {
			return t
		}
	}
	return nil
}

func (l *Ledger) openCount() int {
	n := 0
	for _, t := range l.trades {
		if t.IsOpen() {
			n++
		}
	}
	return n
}

func (l *Ledger) openSymbolList() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []string
	for _, t := range l.trades {
		if t.IsOpen() {
			out = append(out, t.Symbol)
		}
	}
	return out
}

func (l *Ledger) copyOf(t *models.Trade) *models.Trade {
	cp := *t
	cp.Reasons = append([]string(nil), t.Reasons...)
	if t.ExitTime != nil {
		at := *t.ExitTime
		cp.ExitTime = &at
	}
	return &cp
}

// OpenTrades returns copies of the open trades in trade number order
func (l *Ledger) OpenTrades() []models.Trade {
	return l.filter(func(t *models.Trade) bool { return t.IsOpen() })
}

// ClosedTrades returns copies of the retained closed trades
func (l *Ledger) ClosedTrades() []models.Trade {
	return l.filter(func(t *models.Trade) bool { return !t.IsOpen() })
}

// OpenSymbols is the exclusion set handed to the selector
func (l *Ledger) OpenSymbols() map[string]bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]bool)
	for _, t := range l.trades {
		if t.IsOpen() {
			out[t.Symbol] = true
		}
	}
	return out
}

func (l *Ledger) Account() models.Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.account
}

func (l *Ledger) filter(keep func(*models.Trade) bool) []models.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.Trade
	for _, t := range l.trades {
		if keep(t) {
			out = append(out, *l.copyOf(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TradeNumber < out[j].TradeNumber })
	return out
}
