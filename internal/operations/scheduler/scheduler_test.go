package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ReversalSniper/internal/metrics"
)

func testConfig() Config {
	return Config{Interval: time.Hour, MaxRetries: 2, RetryBackoff: time.Millisecond}
}

func TestNextTrigger(t *testing.T) {
	base := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		now      time.Time
		interval time.Duration
		want     time.Time
	}{
		{"mid quarter", base.Add(7*time.Minute + 3*time.Second), 15 * time.Minute, base.Add(15 * time.Minute)},
		{"on a mark moves to the next", base.Add(30 * time.Minute), 15 * time.Minute, base.Add(45 * time.Minute)},
		{"end of hour", base.Add(59 * time.Minute), 15 * time.Minute, base.Add(time.Hour)},
		{"hourly", base.Add(20 * time.Minute), time.Hour, base.Add(time.Hour)},
		{"five minutes", base.Add(11 * time.Minute), 5 * time.Minute, base.Add(15 * time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextTrigger(tt.now, tt.interval))
		})
	}
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{}, func(context.Context) error { return nil }, nil, zerolog.Nop())
	assert.Error(t, err)
	_, err = New(testConfig(), nil, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestOverlappingTriggerIsSkipped(t *testing.T) {
	recorder := metrics.New()
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int32

	s, err := New(testConfig(), func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-release
		return nil
	}, recorder, zerolog.Nop())
	require.NoError(t, err)

	done := make(chan bool)
	go func() {
		ran, _ := s.Trigger(context.Background())
		done <- ran
	}()
	<-started
	assert.True(t, s.Running())

	ran, err := s.Trigger(context.Background())
	assert.False(t, ran)
	assert.NoError(t, err)

	close(release)
	assert.True(t, <-done)
	assert.False(t, s.Running())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, int64(1), s.Skipped())
	assert.Equal(t, int64(1), s.Runs())

	expected := `
# HELP sniper_skipped_triggers_total Scheduler triggers skipped because a scan was running
# TYPE sniper_skipped_triggers_total counter
sniper_skipped_triggers_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(recorder.Registry(), strings.NewReader(expected), "sniper_skipped_triggers_total"))
}

func TestRetryIsBounded(t *testing.T) {
	var calls int32
	s, err := New(testConfig(), func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("candles unavailable")
	}, nil, zerolog.Nop())
	require.NoError(t, err)

	ran, err := s.Trigger(context.Background())
	assert.True(t, ran)
	assert.ErrorContains(t, err, "candles unavailable")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetryRecoversAfterFailure(t *testing.T) {
	var calls int32
	s, err := New(testConfig(), func(context.Context) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("transient")
		}
		return nil
	}, nil, zerolog.Nop())
	require.NoError(t, err)

	_, err = s.Trigger(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPanicIsRecovered(t *testing.T) {
	var calls int32
	s, err := New(testConfig(), func(context.Context) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			panic("nil map")
		}
		return nil
	}, nil, zerolog.Nop())
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		_, err = s.Trigger(context.Background())
	})
	assert.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.False(t, s.Running())
}

func TestRunFiresOnStartAndStops(t *testing.T) {
	cfg := testConfig()
	cfg.RunOnStart = true
	var calls int32
	first := make(chan struct{}, 1)

	s, err := New(cfg, func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		first <- struct{}{}
		return nil
	}, nil, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLockFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sniper.pid")

	lock, err := AcquireLock(path)
	require.NoError(t, err)
	pid, err := readPID(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	_, err = AcquireLock(path)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, lock.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, lock.Release())
}

func TestStaleLockIsTakenOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sniper.pid")
	require.NoError(t, os.WriteFile(path, []byte("garbage\n"), 0o644))

	lock, err := AcquireLock(path)
	require.NoError(t, err)
	defer lock.Release()

	pid, err := readPID(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}
