package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sniper"

// Recorder exposes scan, signal and ledger metrics. A nil Recorder is valid
// and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	scans               *prometheus.CounterVec
	scanDuration        prometheus.Histogram
	candidates          *prometheus.CounterVec
	signals             *prometheus.CounterVec
	tradesOpened        *prometheus.CounterVec
	tradesClosed        *prometheus.CounterVec
	realizedPnL         prometheus.Counter
	fetchErrors         *prometheus.CounterVec
	skippedTriggers     prometheus.Counter
	persistenceFailures *prometheus.CounterVec
	publishFailures     *prometheus.CounterVec
	openTrades          prometheus.Gauge
	minConfidence       prometheus.Gauge
	weights             *prometheus.GaugeVec
}

// New registers every collector on a fresh registry
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		scans: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scans_total",
				Help:      "Total number of scans by result",
			},
			[]string{"result"},
		),
		scanDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_duration_seconds",
				Help:      "Duration of a full scan in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
		),
		candidates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candidates_total",
				Help:      "Scored candidates by direction",
			},
			[]string{"direction"},
		),
		signals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_total",
				Help:      "Selected signals by tier",
			},
			[]string{"tier"},
		),
		tradesOpened: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_opened_total",
				Help:      "Paper trades opened by direction",
			},
			[]string{"direction"},
		),
		tradesClosed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_closed_total",
				Help:      "Paper trades closed by exit reason",
			},
			[]string{"reason"},
		),
		realizedPnL: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "winning_pnl_total",
				Help:      "Sum of realized profit on winning trades",
			},
		),
		fetchErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_errors_total",
				Help:      "Market data fetch failures by kind",
			},
			[]string{"kind"},
		),
		skippedTriggers: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "skipped_triggers_total",
				Help:      "Scheduler triggers skipped because a scan was running",
			},
		),
		persistenceFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persistence_failures_total",
				Help:      "Failed store writes by operation",
			},
			[]string{"op"},
		),
		publishFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publish_failures_total",
				Help:      "Failed notification deliveries by publisher",
			},
			[]string{"publisher"},
		),
		openTrades: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "open_trades",
				Help:      "Currently open paper trades",
			},
		),
		minConfidence: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "min_confidence",
				Help:      "Active minimum confidence",
			},
		),
		weights: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "factor_weight",
				Help:      "Active factor weights",
			},
			[]string{"factor"},
		),
	}
}

// Handler serves the recorder's registry
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry is exposed for tests
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordScan records a finished scan
func (r *Recorder) RecordScan(result string, seconds float64) {
	if r == nil {
		return
	}
	r.scans.WithLabelValues(result).Inc()
	r.scanDuration.Observe(seconds)
}

func (r *Recorder) RecordCandidate(direction string) {
	if r == nil {
		return
	}
	r.candidates.WithLabelValues(direction).Inc()
}

// RecordSignals adds n signals to a tier
func (r *Recorder) RecordSignals(tier string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.signals.WithLabelValues(tier).Add(float64(n))
}

func (r *Recorder) RecordTradeOpened(direction string) {
	if r == nil {
		return
	}
	r.tradesOpened.WithLabelValues(direction).Inc()
}

func (r *Recorder) RecordTradeClosed(reason string, pnl float64) {
	if r == nil {
		return
	}
	r.tradesClosed.WithLabelValues(reason).Inc()
	if pnl > 0 {
		r.realizedPnL.Add(pnl)
	}
}

func (r *Recorder) RecordFetchError(kind string) {
	if r == nil {
		return
	}
	r.fetchErrors.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordSkippedTrigger() {
	if r == nil {
		return
	}
	r.skippedTriggers.Inc()
}

func (r *Recorder) RecordPersistenceFailure(op string) {
	if r == nil {
		return
	}
	r.persistenceFailures.WithLabelValues(op).Inc()
}

func (r *Recorder) RecordPublishFailure(publisher string) {
	if r == nil {
		return
	}
	r.publishFailures.WithLabelValues(publisher).Inc()
}

func (r *Recorder) SetOpenTrades(n int) {
	if r == nil {
		return
	}
	r.openTrades.Set(float64(n))
}

// RecordParameters publishes the active scoring parameters
func (r *Recorder) RecordParameters(minConfidence, goldenPocketWeight, sfpWeight float64) {
	if r == nil {
		return
	}
	r.minConfidence.Set(minConfidence)
	r.weights.WithLabelValues("golden_pocket").Set(goldenPocketWeight)
	r.weights.WithLabelValues("sfp").Set(sfpWeight)
}
