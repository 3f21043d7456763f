package watchlist

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ReversalSniper/internal/metrics"
	"ReversalSniper/internal/models"
)

// ErrEmptyWatchlist means no ticker passed the filters
var ErrEmptyWatchlist = errors.New("no symbols passed the watchlist filters")

// TickerSource lists the 24h stats of every tradable instrument
type TickerSource interface {
	Tickers(ctx context.Context) ([]models.Ticker, error)
}

type Config struct {
	Quote        string
	Size         int
	MinVolumeUSD float64
	Refresh      time.Duration
	Timeout      time.Duration
	Excluded     []string
	// Fallback is scanned until the first successful refresh
	Fallback []string
}

func DefaultConfig() Config {
	return Config{
		Quote:        "USDT",
		Size:         30,
		MinVolumeUSD: 300_000,
		Refresh:      time.Hour,
		Timeout:      15 * time.Second,
		Fallback:     []string{"BTCUSDT", "ETHUSDT"},
	}
}

// Entry is one ranked watchlist symbol
type Entry struct {
	Symbol    string  `json:"symbol"`
	VolumeUSD float64 `json:"volume_usd"`
}

// Build filters tickers down to liquid crypto perpetuals against quote and
// ranks them by USD volume, largest first, keeping at most size.
func Build(tickers []models.Ticker, cfg Config) []Entry {
	excluded := make(map[string]struct{}, len(cfg.Excluded))
	for _, s := range cfg.Excluded {
		excluded[strings.ToUpper(s)] = struct{}{}
	}

	entries := make([]Entry, 0, len(tickers))
	for _, t := range tickers {
		symbol := strings.ToUpper(t.Symbol)
		base, ok := SplitSymbol(symbol, cfg.Quote)
		if !ok || has(excluded, symbol) {
			continue
		}
		if IsStablecoinPair(base, cfg.Quote) || IsPreciousMetal(base) || IsStockTicker(symbol, base) {
			continue
		}
		vol := t.VolumeUSD()
		if vol < cfg.MinVolumeUSD {
			continue
		}
		entries = append(entries, Entry{Symbol: symbol, VolumeUSD: vol})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].VolumeUSD > entries[j].VolumeUSD
	})
	if cfg.Size > 0 && len(entries) > cfg.Size {
		entries = entries[:cfg.Size]
	}
	return entries
}

// Watchlist keeps the ranked symbol list and rebuilds it once it is older
// than the refresh interval. A failed rebuild keeps the previous list.
type Watchlist struct {
	cfg     Config
	source  TickerSource
	metrics *metrics.Recorder
	log     zerolog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	entries []Entry
	symbols []string
	updated time.Time
}

func New(cfg Config, source TickerSource, recorder *metrics.Recorder, log zerolog.Logger) *Watchlist {
	return &Watchlist{
		cfg:     cfg,
		source:  source,
		metrics: recorder,
		log:     log.With().Str("component", "watchlist").Logger(),
		now:     time.Now,
		symbols: slices.Clone(cfg.Fallback),
	}
}

// Symbols returns the current list without refreshing
func (w *Watchlist) Symbols() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.symbols)
}

// Entries returns the ranking of the last successful refresh
func (w *Watchlist) Entries() []Entry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.entries)
}

func (w *Watchlist) UpdatedAt() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.updated
}

// Due reports whether the list has never been built or has gone stale
func (w *Watchlist) Due(now time.Time) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.updated.IsZero() || now.Sub(w.updated) >= w.cfg.Refresh
}

// Current refreshes the list when it is due and returns it. Refresh errors
// are logged and the previous list is served.
func (w *Watchlist) Current(ctx context.Context) []string {
	if w.Due(w.now()) {
		if _, err := w.Refresh(ctx); err != nil {
			w.log.Warn().Err(err).Int("symbols", len(w.Symbols())).Msg("watchlist refresh failed, keeping previous list")
		}
	}
	return w.Symbols()
}

// Refresh rebuilds the list from fresh tickers
func (w *Watchlist) Refresh(ctx context.Context) ([]string, error) {
	if w.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.Timeout)
		defer cancel()
	}

	tickers, err := w.source.Tickers(ctx)
	if err != nil {
		w.metrics.RecordFetchError("tickers")
		return nil, fmt.Errorf("fetch tickers: %w", err)
	}
	entries := Build(tickers, w.cfg)
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w out of %d tickers", ErrEmptyWatchlist, len(tickers))
	}

	symbols := make([]string, len(entries))
	for i, e := range entries {
		symbols[i] = e.Symbol
	}

	w.mu.Lock()
	w.entries = entries
	w.symbols = symbols
	w.updated = w.now()
	w.mu.Unlock()

	w.log.Info().
		Int("tickers", len(tickers)).
		Int("symbols", len(symbols)).
		Str("top", entries[0].Symbol).
		Float64("top_volume_usd", entries[0].VolumeUSD).
		Msg("watchlist refreshed")
	return slices.Clone(symbols), nil
}
