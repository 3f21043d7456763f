package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"ReversalSniper/internal/models"
)

// maxKlines is the largest page the klines endpoint returns
const maxKlines = 1500

var ErrNoPrice = errors.New("no price returned")

type Config struct {
	APIKey       string
	SecretKey    string
	BaseURL      string
	Timeout      time.Duration
	RatePerSec   float64
	Burst        int
	MaxRetries   uint64
	RetryBackoff time.Duration
}

func DefaultConfig() Config {
	return Config{
		Timeout:      10 * time.Second,
		RatePerSec:   10,
		Burst:        20,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
	}
}

// Client reads USD-M futures market data
type Client struct {
	client      *futures.Client
	rateLimiter *rate.Limiter
	cfg         Config
	log         zerolog.Logger
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	futuresClient := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	futuresClient.HTTPClient = httpClient
	if cfg.BaseURL != "" {
		futuresClient.BaseURL = cfg.BaseURL
	}

	return &Client{
		client:      futuresClient,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		cfg:         cfg,
		log:         log.With().Str("component", "binance").Logger(),
	}
}

// Candles returns the latest closed-or-forming candles, oldest first
func (c *Client) Candles(ctx context.Context, symbol string, interval models.TimeFrame, limit int) ([]models.Candle, error) {
	klines, err := c.klines(ctx, symbol, interval, limit, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("klines %s %s: %w", symbol, interval, err)
	}
	return toCandles(klines)
}

// HistoricalCandles pages through [start, end) in chunks the API accepts
func (c *Client) HistoricalCandles(ctx context.Context, symbol string, interval models.TimeFrame, start, end time.Time) ([]models.Candle, error) {
	step, err := interval.Duration()
	if err != nil {
		return nil, err
	}
	chunk := step * maxKlines

	var all []models.Candle
	for from := start; from.Before(end); from = from.Add(chunk) {
		to := from.Add(chunk)
		if to.After(end) {
			to = end
		}

		klines, err := c.klines(ctx, symbol, interval, maxKlines, from.UnixMilli(), to.UnixMilli()-1)
		if err != nil {
			return nil, fmt.Errorf("klines %s %s from %s: %w", symbol, interval, from.Format(time.RFC3339), err)
		}
		candles, err := toCandles(klines)
		if err != nil {
			return nil, err
		}
		all = append(all, candles...)

		c.log.Debug().
			Str("symbol", symbol).
			Int("candles", len(candles)).
			Time("from", from).
			Time("to", to).
			Msg("fetched history chunk")
	}
	return all, nil
}

// LastPrice returns the latest traded price
func (c *Client) LastPrice(ctx context.Context, symbol string) (float64, error) {
	var prices []*futures.SymbolPrice
	err := c.retry(ctx, func() error {
		var err error
		prices, err = c.client.NewListPricesService().Symbol(symbol).Do(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("price %s: %w", symbol, err)
	}

	for _, p := range prices {
		if p.Symbol == symbol {
			return parseFloat(p.Price)
		}
	}
	return 0, fmt.Errorf("%s: %w", symbol, ErrNoPrice)
}

// Tickers returns the 24h stats of every listed futures symbol. Rows that
// fail to parse are skipped.
func (c *Client) Tickers(ctx context.Context) ([]models.Ticker, error) {
	var stats []*futures.PriceChangeStats
	err := c.retry(ctx, func() error {
		var err error
		stats, err = c.client.NewListPriceChangeStatsService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("24h tickers: %w", err)
	}

	tickers := make([]models.Ticker, 0, len(stats))
	for _, st := range stats {
		ticker, err := toTicker(st)
		if err != nil {
			c.log.Debug().Err(err).Str("symbol", st.Symbol).Msg("skipping ticker")
			continue
		}
		tickers = append(tickers, ticker)
	}
	return tickers, nil
}

func (c *Client) klines(ctx context.Context, symbol string, interval models.TimeFrame, limit int, startMs, endMs int64) ([]*futures.Kline, error) {
	var klines []*futures.Kline
	err := c.retry(ctx, func() error {
		svc := c.client.NewKlinesService().
			Symbol(symbol).
			Interval(string(interval)).
			Limit(limit)
		if startMs > 0 {
			svc = svc.StartTime(startMs)
		}
		if endMs > 0 {
			svc = svc.EndTime(endMs)
		}

		var err error
		klines, err = svc.Do(ctx)
		return err
	})
	return klines, err
}

// retry waits on the limiter before each attempt and backs off between
// failures. Coded API rejections are not retried.
func (c *Client) retry(ctx context.Context, call func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.RetryBackoff
	policy.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		attempt++
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		err := call()
		if err == nil {
			return nil
		}
		var apiErr *common.APIError
		if errors.As(err, &apiErr) && apiErr.Code != 0 {
			return backoff.Permanent(err)
		}
		c.log.Debug().Err(err).Int("attempt", attempt).Msg("request failed, retrying")
		return err
	}

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, c.cfg.MaxRetries), ctx))
}

func toCandles(klines []*futures.Kline) ([]models.Candle, error) {
	candles := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		candle, err := toCandle(k)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func toCandle(k *futures.Kline) (models.Candle, error) {
	var candle models.Candle
	fields := []struct {
		raw string
		dst *float64
	}{
		{k.Open, &candle.Open},
		{k.High, &candle.High},
		{k.Low, &candle.Low},
		{k.Close, &candle.Close},
		{k.Volume, &candle.Volume},
	}
	for _, f := range fields {
		v, err := parseFloat(f.raw)
		if err != nil {
			return models.Candle{}, err
		}
		*f.dst = v
	}
	candle.OpenTime = time.UnixMilli(k.OpenTime).UTC()
	return candle, nil
}

func toTicker(st *futures.PriceChangeStats) (models.Ticker, error) {
	ticker := models.Ticker{Symbol: st.Symbol}
	fields := []struct {
		raw string
		dst *float64
	}{
		{st.LastPrice, &ticker.LastPrice},
		{st.Volume, &ticker.Volume},
		{st.QuoteVolume, &ticker.QuoteVolume},
		{st.PriceChangePercent, &ticker.PriceChangePct},
	}
	for _, f := range fields {
		v, err := parseFloat(f.raw)
		if err != nil {
			return models.Ticker{}, err
		}
		*f.dst = v
	}
	return ticker, nil
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return f, nil
}
