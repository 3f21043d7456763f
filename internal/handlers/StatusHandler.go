package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"ReversalSniper/internal/models"
	"ReversalSniper/internal/operations/scanner"
	"ReversalSniper/internal/services/learning"
)

type ReportSource interface {
	LastReport() *scanner.Report
}

type TradeSource interface {
	OpenTrades() []models.Trade
	ClosedTrades() []models.Trade
	Account() models.Account
}

type ParameterSource interface {
	Snapshot() models.Parameters
}

type StatsSource interface {
	Stats(ctx context.Context) (learning.Stats, error)
}

type DailySource interface {
	FindRecent(ctx context.Context, days int) ([]models.DailyPnL, error)
}

// StatusHandler serves the read-only status surface
type StatusHandler struct {
	reports ReportSource
	trades  TradeSource
	params  ParameterSource
	stats   StatsSource
	daily   DailySource
	metrics http.Handler
	log     zerolog.Logger
	started time.Time
}

func NewStatusHandler(reports ReportSource, trades TradeSource, params ParameterSource, stats StatsSource, daily DailySource, metrics http.Handler, log zerolog.Logger) *StatusHandler {
	return &StatusHandler{
		reports: reports,
		trades:  trades,
		params:  params,
		stats:   stats,
		daily:   daily,
		metrics: metrics,
		log:     log.With().Str("component", "http").Logger(),
		started: time.Now(),
	}
}

func (h *StatusHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	e.GET("/status", h.Status)
	e.GET("/trades", h.Trades)
	e.GET("/learning", h.Learning)
	e.GET("/daily", h.Daily)
	if h.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.metrics))
	}
}

func (h *StatusHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Uptime     string            `json:"uptime"`
	OpenTrades int               `json:"open_trades"`
	Account    models.Account    `json:"account"`
	Parameters models.Parameters `json:"parameters"`
	LastScan   *scanner.Report   `json:"last_scan"`
}

func (h *StatusHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		OpenTrades: len(h.trades.OpenTrades()),
		Account:    h.trades.Account(),
		Parameters: h.params.Snapshot(),
		LastScan:   h.reports.LastReport(),
	})
}

// Trades lists trades, optionally filtered with ?status=open|closed
func (h *StatusHandler) Trades(c echo.Context) error {
	var trades []models.Trade
	switch status := c.QueryParam("status"); status {
	case models.TradeStatusOpen:
		trades = h.trades.OpenTrades()
	case models.TradeStatusClosed:
		trades = h.trades.ClosedTrades()
	case "":
		trades = append(h.trades.ClosedTrades(), h.trades.OpenTrades()...)
	default:
		return c.JSON(http.StatusBadRequest, errorResponse("status must be open or closed"))
	}
	if trades == nil {
		trades = []models.Trade{}
	}
	return c.JSON(http.StatusOK, map[string]any{"count": len(trades), "trades": trades})
}

func (h *StatusHandler) Learning(c echo.Context) error {
	stats, err := h.stats.Stats(c.Request().Context())
	if err != nil {
		h.log.Error().Err(err).Msg("learning stats failed")
		return c.JSON(http.StatusInternalServerError, errorResponse("learning stats unavailable"))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"stats":      stats,
		"parameters": h.params.Snapshot(),
	})
}

// Daily returns realized P&L per UTC day, newest first, ?days= defaults to 7
func (h *StatusHandler) Daily(c echo.Context) error {
	days := 7
	if raw := c.QueryParam("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 365 {
			return c.JSON(http.StatusBadRequest, errorResponse("days must be between 1 and 365"))
		}
		days = n
	}
	rows, err := h.daily.FindRecent(c.Request().Context(), days)
	if err != nil {
		h.log.Error().Err(err).Msg("daily pnl query failed")
		return c.JSON(http.StatusInternalServerError, errorResponse("daily pnl unavailable"))
	}
	if rows == nil {
		rows = []models.DailyPnL{}
	}
	return c.JSON(http.StatusOK, map[string]any{"days": rows})
}

func errorResponse(message string) map[string]string {
	return map[string]string{"error": message}
}
