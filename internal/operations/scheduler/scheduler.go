package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"ReversalSniper/internal/metrics"
)

// Job is one unit of scheduled work, normally a scan
type Job func(ctx context.Context) error

type Config struct {
	Interval     time.Duration
	MaxRetries   uint64
	RetryBackoff time.Duration
	RunOnStart   bool
}

func DefaultConfig() Config {
	return Config{
		Interval:     15 * time.Minute,
		MaxRetries:   2,
		RetryBackoff: 5 * time.Second,
		RunOnStart:   true,
	}
}

// Scheduler fires the job on wall-clock marks aligned to the interval.
// At most one run is in flight; a trigger that lands during a run is dropped.
type Scheduler struct {
	cfg     Config
	job     Job
	metrics *metrics.Recorder
	log     zerolog.Logger
	now     func() time.Time

	running atomic.Bool
	runs    atomic.Int64
	skipped atomic.Int64
	wg      sync.WaitGroup
}

func New(cfg Config, job Job, recorder *metrics.Recorder, log zerolog.Logger) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	if job == nil {
		return nil, errors.New("job is required")
	}
	return &Scheduler{
		cfg:     cfg,
		job:     job,
		metrics: recorder,
		log:     log.With().Str("component", "scheduler").Logger(),
		now:     time.Now,
	}, nil
}

// NextTrigger returns the first interval mark strictly after now. Marks are
// counted from midnight UTC, so 15m lands on :00, :15, :30 and :45.
func NextTrigger(now time.Time, interval time.Duration) time.Time {
	return now.Truncate(interval).Add(interval)
}

// Run blocks until ctx is cancelled, firing the job at every mark. It
// waits for an in-flight run before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.wg.Wait()

	if s.cfg.RunOnStart {
		s.fire(ctx)
	}

	for {
		next := NextTrigger(s.now(), s.cfg.Interval)
		s.log.Debug().Time("next", next).Msg("waiting for next trigger")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info().Msg("scheduler stopped")
			return nil
		case <-timer.C:
			s.fire(ctx)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Trigger(ctx)
	}()
}

// Trigger runs the job now unless a run is already in flight. It reports
// whether the job ran and the final error after retries.
func (s *Scheduler) Trigger(ctx context.Context) (bool, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.metrics.RecordSkippedTrigger()
		s.log.Warn().Msg("previous run still in progress, trigger skipped")
		return false, nil
	}
	defer s.running.Store(false)

	s.runs.Add(1)
	err := s.runWithRetry(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("run failed, waiting for next trigger")
	}
	return true, err
}

// Running reports whether a run is in flight
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

func (s *Scheduler) Runs() int64 {
	return s.runs.Load()
}

func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

func (s *Scheduler) runWithRetry(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.RetryBackoff
	policy.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		attempt++
		err := s.safeRun(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		s.log.Warn().Err(err).Int("attempt", attempt).Msg("run failed")
		return err
	}

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, s.cfg.MaxRetries), ctx))
}

func (s *Scheduler) safeRun(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("run panicked")
			err = fmt.Errorf("run panicked: %v", r)
		}
	}()
	return s.job(ctx)
}
