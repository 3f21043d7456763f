package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ReversalSniper/internal/models"
)

func kline(openMs int64, o, h, l, c, v string) string {
	return fmt.Sprintf(`[%d,"%s","%s","%s","%s","%s",%d,"0",10,"0","0","0"]`, openMs, o, h, l, c, v, openMs+899999)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.RetryBackoff = time.Millisecond
	return NewClient(cfg, zerolog.Nop())
}

func TestCandlesParsesKlines(t *testing.T) {
	var query string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/klines", r.URL.Path)
		query = r.URL.RawQuery
		fmt.Fprintf(w, "[%s,%s]",
			kline(1700000000000, "100.5", "101", "99.5", "100.8", "1234.5"),
			kline(1700000900000, "100.8", "102", "100.1", "101.9", "2000"))
	})

	candles, err := client.Candles(context.Background(), "BTCUSDT", models.TimeFrame15m, 200)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Contains(t, query, "symbol=BTCUSDT")
	assert.Contains(t, query, "interval=15m")
	assert.Contains(t, query, "limit=200")

	assert.Equal(t, models.Candle{
		OpenTime: time.UnixMilli(1700000000000).UTC(),
		Open:     100.5,
		High:     101,
		Low:      99.5,
		Close:    100.8,
		Volume:   1234.5,
	}, candles[0])
	assert.Equal(t, 101.9, candles[1].Close)
}

func TestRetriesTransientFailures(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprintf(w, `{"symbol":"ETHUSDT","price":"3050.25","time":1700000000000}`)
	})

	price, err := client.LastPrice(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, 3050.25, price)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestAPIErrorIsNotRetried(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":-1121,"msg":"Invalid symbol."}`)
	})

	_, err := client.Candles(context.Background(), "NOPE", models.TimeFrame15m, 10)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Invalid symbol"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRetriesAreBounded(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.LastPrice(context.Background(), "BTCUSDT")
	require.Error(t, err)
	assert.Equal(t, int32(1+DefaultConfig().MaxRetries), atomic.LoadInt32(&calls))
}

func TestHistoricalCandlesPages(t *testing.T) {
	var pages int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&pages, 1)
		assert.NotEmpty(t, r.URL.Query().Get("startTime"))
		assert.NotEmpty(t, r.URL.Query().Get("endTime"))
		fmt.Fprintf(w, "[%s]", kline(1700000000000, "1", "1", "1", "1", "1"))
	})

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	// 1500 five minute candles per page
	end := start.Add(2*1500*5*time.Minute + time.Minute)
	candles, err := client.HistoricalCandles(context.Background(), "BTCUSDT", models.TimeFrame5m, start, end)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&pages))
	assert.Len(t, candles, 3)

	_, err = client.HistoricalCandles(context.Background(), "BTCUSDT", models.TimeFrame("3d"), start, end)
	assert.Error(t, err)
}

func TestTickers(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/ticker/24hr", r.URL.Path)
		fmt.Fprint(w, `[
			{"symbol":"BTCUSDT","lastPrice":"65000.5","volume":"1200","quoteVolume":"78000000","priceChangePercent":"-1.25"},
			{"symbol":"BROKEN","lastPrice":"n/a","volume":"1","quoteVolume":"1","priceChangePercent":"0"},
			{"symbol":"DOGEUSDT","lastPrice":"0","volume":"5000000","quoteVolume":"600000","priceChangePercent":"3.5"}
		]`)
	})

	tickers, err := client.Tickers(context.Background())
	require.NoError(t, err)
	require.Len(t, tickers, 2)
	assert.Equal(t, models.Ticker{Symbol: "BTCUSDT", LastPrice: 65000.5, Volume: 1200, QuoteVolume: 78000000, PriceChangePct: -1.25}, tickers[0])
	assert.Equal(t, "DOGEUSDT", tickers[1].Symbol)
	assert.InDelta(t, 600000.0, tickers[1].VolumeUSD(), 1e-6)
}
