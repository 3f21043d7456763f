package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"ReversalSniper/config"
	"ReversalSniper/internal/cache"
	"ReversalSniper/internal/handlers"
	"ReversalSniper/internal/logger"
	"ReversalSniper/internal/metrics"
	"ReversalSniper/internal/models"
	"ReversalSniper/internal/operations/backtest"
	"ReversalSniper/internal/operations/binance"
	"ReversalSniper/internal/operations/notify"
	"ReversalSniper/internal/operations/scanner"
	"ReversalSniper/internal/operations/scheduler"
	"ReversalSniper/internal/repositories"
	"ReversalSniper/internal/services/analysis"
	"ReversalSniper/internal/services/learning"
	"ReversalSniper/internal/services/params"
	"ReversalSniper/internal/services/selection"
	"ReversalSniper/internal/services/strategy"
	"ReversalSniper/internal/services/trading"
	"ReversalSniper/internal/services/watchlist"
)

type options struct {
	configPath string
	once       bool
	backtest   bool
	from       string
	to         string
	adaptive   bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "config.yaml", "path to the YAML config file")
	flag.BoolVar(&opts.once, "once", false, "run a single scan and exit")
	flag.BoolVar(&opts.backtest, "backtest", false, "replay history instead of scanning live")
	flag.StringVar(&opts.from, "from", "", "backtest start date (YYYY-MM-DD)")
	flag.StringVar(&opts.to, "to", "", "backtest end date (YYYY-MM-DD), defaults to today")
	flag.BoolVar(&opts.adaptive, "adaptive", false, "let the learning engine retune during the backtest")
	flag.Parse()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}

	log, closer, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to build logger:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	if opts.backtest {
		err = runBacktest(ctx, cfg, opts, log)
	} else {
		err = run(ctx, cfg, opts, log)
	}
	stop()
	if err != nil {
		log.Error().Err(err).Msg("exiting with error")
	}
	closer.Close()
	if err != nil {
		os.Exit(1)
	}
}

// storage is either Postgres through gorm or the in-memory stores
type storage struct {
	stores  trading.Stores
	samples learning.SampleStore
	params  params.Store
	daily   handlers.DailySource
	close   func() error
}

func openStorage(cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if !cfg.DatabaseEnabled() {
		log.Warn().Msg("no database configured, trades are kept in memory")
		mem := trading.NewMemoryStore()
		return &storage{
			stores:  mem.Stores(),
			samples: mem,
			params:  params.NewMemoryStore(),
			daily:   mem,
			close:   func() error { return nil },
		}, nil
	}

	db, err := repositories.Open(repositories.DatabaseConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}

	samples := repositories.NewPerformanceRepository(db)
	daily := repositories.NewDailyPnLRepository(db)
	return &storage{
		stores: trading.Stores{
			Trades:   repositories.NewTradeRepository(db),
			Accounts: repositories.NewAccountRepository(db),
			Samples:  samples,
			Daily:    daily,
		},
		samples: samples,
		params:  repositories.NewParameterRepository(db),
		daily:   daily,
		close:   sqlDB.Close,
	}, nil
}

func openLevels(ctx context.Context, cfg *config.Config, log zerolog.Logger) (cache.LevelStore, func() error, error) {
	if cfg.Redis.Addr == "" {
		return cache.NewMemoryLevelStore(), func() error { return nil }, nil
	}
	store, err := cache.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("cooldown memory on redis")
	return store, store.Close, nil
}

// newWatchlist returns nil when the static symbol list is used. The
// configured symbols become the fallback until the first refresh.
func newWatchlist(cfg *config.Config, market *binance.Client, recorder *metrics.Recorder, log zerolog.Logger) scanner.SymbolSource {
	wc := cfg.Scanner.Watchlist
	if !wc.Enabled {
		return nil
	}
	return watchlist.New(watchlist.Config{
		Quote:        wc.Quote,
		Size:         wc.Size,
		MinVolumeUSD: wc.MinVolumeUSD,
		Refresh:      wc.Refresh,
		Timeout:      cfg.Scanner.FetchTimeout,
		Excluded:     wc.Excluded,
		Fallback:     cfg.Scanner.Symbols,
	}, market, recorder, log)
}

func newMarket(cfg *config.Config, log zerolog.Logger) *binance.Client {
	return binance.NewClient(binance.Config{
		APIKey:       cfg.Exchange.APIKey,
		SecretKey:    cfg.Exchange.SecretKey,
		BaseURL:      cfg.Exchange.BaseURL,
		Timeout:      cfg.Exchange.Timeout,
		RatePerSec:   cfg.Exchange.RatePerSec,
		Burst:        cfg.Exchange.Burst,
		MaxRetries:   cfg.Exchange.MaxRetries,
		RetryBackoff: cfg.Exchange.RetryBackoff,
	}, log)
}

func newScoring(cfg *config.Config) (*analysis.Analyzer, *strategy.StrategyManager, error) {
	ac, err := analysis.DefaultConfig().ForTimeFrame(models.TimeFrame(cfg.Scanner.Interval))
	if err != nil {
		return nil, nil, err
	}
	ac.RSIPeriod = cfg.Analysis.RSIPeriod
	ac.VWAPWindow = cfg.Analysis.VWAPWindow
	ac.VolumePeriod = cfg.Analysis.VolumePeriod
	ac.AbnormalVolumeK = cfg.Analysis.AbnormalVolumeK
	ac.ExtremeVolumeK = cfg.Analysis.ExtremeVolumeK
	ac.ATRPeriod = cfg.Analysis.ATRPeriod
	analyzer, err := analysis.NewAnalyzer(ac)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build analyzer: %w", err)
	}

	profile, err := strategy.ProfileByName(cfg.Strategy.Profile)
	if err != nil {
		return nil, nil, err
	}
	scorer, err := strategy.NewScorer(profile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build scorer: %w", err)
	}
	manager, err := strategy.NewStrategyManager(scorer, strategy.LevelConfig{
		StopATRMultiple: cfg.Strategy.StopATRMultiple,
		StopLossPct:     cfg.Strategy.StopLossPct,
		TakeProfitR:     cfg.Strategy.TakeProfitR,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build strategy manager: %w", err)
	}
	return analyzer, manager, nil
}

func selectionConfig(cfg *config.Config) selection.Config {
	sc := selection.DefaultConfig()
	sc.TradeThreshold = cfg.Selection.TradeThreshold
	sc.WatchThreshold = cfg.Selection.WatchThreshold
	sc.MaxTrades = cfg.Selection.MaxTrades
	sc.MaxWatch = cfg.Selection.MaxWatch
	sc.MaxTradesPerHour = cfg.Selection.MaxTradesPerHour
	sc.Cooldown = cfg.Selection.Cooldown
	return sc
}

func ledgerConfig(cfg *config.Config, base trading.Config) trading.Config {
	base.MaxOpen = cfg.Ledger.MaxOpen
	base.Leverage = cfg.Ledger.Leverage
	base.InitialBalance = cfg.Ledger.InitialBalance
	base.RiskPerTrade = cfg.Ledger.RiskPerTrade
	base.MaxPositionPct = cfg.Ledger.MaxPositionPct
	base.MinPositionValue = cfg.Ledger.MinPositionValue
	base.Currency = cfg.Ledger.Currency
	return base
}

func learningConfig(cfg *config.Config) learning.Config {
	lc := learning.DefaultConfig()
	lc.Window = cfg.Learning.Window
	lc.MinSamples = cfg.Learning.MinSamples
	return lc
}

func newNotifier(cfg *config.Config, recorder *metrics.Recorder, log zerolog.Logger) (*notify.Manager, func() error, error) {
	manager := notify.NewManager(cfg.Notify.Timeout, recorder, log)
	if cfg.Notify.Log {
		manager.AddPublisher(notify.NewLogPublisher(log))
	}
	if cfg.Notify.WebhookURL != "" {
		manager.AddPublisher(notify.NewWebhookPublisher(cfg.Notify.WebhookURL, cfg.Notify.Timeout))
	}

	closeFn := func() error { return nil }
	if len(cfg.Notify.Kafka.Brokers) > 0 {
		kafka, err := notify.NewKafkaPublisher(notify.KafkaConfig{
			Brokers:      cfg.Notify.Kafka.Brokers,
			Topic:        cfg.Notify.Kafka.Topic,
			WriteTimeout: cfg.Notify.Kafka.WriteTimeout,
			MaxAttempts:  cfg.Notify.Kafka.MaxAttempts,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build kafka publisher: %w", err)
		}
		manager.AddPublisher(kafka)
		closeFn = kafka.Close
	}
	log.Info().Strs("publishers", manager.Publishers()).Msg("notifications configured")
	return manager, closeFn, nil
}

func run(ctx context.Context, cfg *config.Config, opts options, log zerolog.Logger) error {
	if cfg.Scheduler.LockFile != "" && !opts.once {
		lock, err := scheduler.AcquireLock(cfg.Scheduler.LockFile)
		if err != nil {
			return err
		}
		defer lock.Release()
	}

	recorder := metrics.New()

	store, err := openStorage(cfg, log)
	if err != nil {
		return err
	}
	defer store.close()

	levels, closeLevels, err := openLevels(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLevels()

	notifier, closeNotifier, err := newNotifier(cfg, recorder, log)
	if err != nil {
		return err
	}
	defer closeNotifier()

	analyzer, manager, err := newScoring(cfg)
	if err != nil {
		return err
	}

	holder := params.NewHolder(params.Defaults(), params.DefaultBounds())
	if err := holder.Restore(ctx, store.params); err != nil {
		log.Warn().Err(err).Msg("failed to restore parameters, using defaults")
	}

	lc := ledgerConfig(cfg, trading.DefaultConfig())
	lc.HistoryCap = cfg.Ledger.HistoryCap
	ledger := trading.NewLedger(lc, store.stores, recorder, log)
	ledger.SetNotifier(notifier)
	if err := ledger.Load(ctx); err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}

	engine := learning.NewEngine(learningConfig(cfg), store.samples, holder, store.params, log)
	var learner scanner.Learner
	if cfg.Learning.Enabled {
		learner = engine
	}

	market := newMarket(cfg, log)
	sc := scanner.New(scanner.Config{
		Symbols:      cfg.Scanner.Symbols,
		Interval:     models.TimeFrame(cfg.Scanner.Interval),
		Lookback:     cfg.Scanner.Lookback,
		FetchTimeout: cfg.Scanner.FetchTimeout,
		FetchDelay:   cfg.Scanner.FetchDelay,
	}, scanner.Deps{
		Market:    market,
		Symbols:   newWatchlist(cfg, market, recorder, log),
		Analyzer:  analyzer,
		Strategy:  manager,
		Selector:  selection.NewSelector(selectionConfig(cfg), levels, log),
		Ledger:    ledger,
		Params:    holder,
		Learner:   learner,
		Publisher: notifier,
		Metrics:   recorder,
	}, log)

	if opts.once {
		report, err := sc.RunScan(ctx)
		if err != nil {
			return err
		}
		log.Info().
			Int("scanned", report.Scanned).
			Int("candidates", report.Candidates).
			Int("opened", len(report.Opened)).
			Int("closed", len(report.Closed)).
			Msg("single scan finished")
		return nil
	}

	sched, err := scheduler.New(scheduler.Config{
		Interval:     cfg.Scheduler.Interval,
		MaxRetries:   cfg.Scheduler.MaxRetries,
		RetryBackoff: cfg.Scheduler.RetryBackoff,
		RunOnStart:   cfg.Scheduler.RunOnStart,
	}, func(ctx context.Context) error {
		_, err := sc.RunScan(ctx)
		return err
	}, recorder, log)
	if err != nil {
		return err
	}

	status := handlers.NewStatusHandler(sc, ledger, holder, engine, store.daily, recorder.Handler(), log)
	server := handlers.NewServer(cfg.HTTP.Addr, status, log)
	server.Start()

	log.Info().
		Strs("symbols", cfg.Scanner.Symbols).
		Str("interval", cfg.Scanner.Interval).
		Dur("cadence", cfg.Scheduler.Interval).
		Msg("reversal sniper started")

	runErr := sched.Run(ctx)

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return errors.Join(runErr, server.Stop(shutdownCtx))
}

func runBacktest(ctx context.Context, cfg *config.Config, opts options, log zerolog.Logger) error {
	if opts.from == "" {
		return errors.New("backtest needs -from")
	}
	start, err := time.Parse(models.DayLayout, opts.from)
	if err != nil {
		return fmt.Errorf("invalid -from: %w", err)
	}
	end := time.Now().UTC()
	if opts.to != "" {
		if end, err = time.Parse(models.DayLayout, opts.to); err != nil {
			return fmt.Errorf("invalid -to: %w", err)
		}
	}

	analyzer, manager, err := newScoring(cfg)
	if err != nil {
		return err
	}

	bc := backtest.NewConfig()
	bc.Symbols = cfg.Scanner.Symbols
	bc.Interval = models.TimeFrame(cfg.Scanner.Interval)
	bc.Window = cfg.Scanner.Lookback
	bc.StartTime = start
	bc.EndTime = end
	bc.Adaptive = opts.adaptive
	bc.Ledger = ledgerConfig(cfg, bc.Ledger)
	bc.Selection = selectionConfig(cfg)
	bc.Learning = learningConfig(cfg)

	engine := backtest.NewEngine(newMarket(cfg, log), analyzer, manager, bc, log)
	results, err := engine.RunBacktest(ctx, params.Defaults())
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	fmt.Println("\n=== Backtest Results ===")
	fmt.Printf("Period: %s to %s (%d bars)\n", start.Format(models.DayLayout), end.Format(models.DayLayout), results.Bars)
	fmt.Printf("Candidates: %d\n", results.Candidates)
	fmt.Printf("Total Trades: %d (%d still open)\n", results.TotalTrades, results.OpenAtEnd)
	fmt.Printf("Winning Trades: %d (%.2f%%)\n", results.WinningTrades, results.WinRate*100)
	fmt.Printf("Total PnL: %.2f %s\n", results.TotalPnL, bc.Ledger.Currency)
	fmt.Printf("Average PnL: %.2f %s\n", results.AveragePnL, bc.Ledger.Currency)
	fmt.Printf("Max Drawdown: %.2f%%\n", results.MaxDrawdown*100)
	fmt.Printf("Final Balance: %.2f %s\n", results.FinalBalance, bc.Ledger.Currency)
	fmt.Printf("Sharpe Ratio: %.2f\n", results.SharpeRatio)
	fmt.Printf("Final Min Confidence: %.1f\n", results.Parameters.MinConfidence)
	return nil
}
