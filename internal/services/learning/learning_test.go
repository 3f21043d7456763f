package learning

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ReversalSniper/internal/models"
	"ReversalSniper/internal/services/analysis"
	"ReversalSniper/internal/services/indicators"
	"ReversalSniper/internal/services/params"
	"ReversalSniper/internal/services/strategy"
)

type sampleList []models.PerformanceSample

func (s *sampleList) Recent(_ context.Context, limit int) ([]models.PerformanceSample, error) {
	list := *s
	if len(list) > limit {
		list = list[len(list)-limit:]
	}
	return list, nil
}

func (s *sampleList) Count(context.Context) (int64, error) {
	return int64(len(*s)), nil
}

type paramStore struct {
	saved *models.Parameters
	err   error
}

func (p *paramStore) Load(context.Context) (*models.Parameters, error) { return p.saved, nil }

func (p *paramStore) Save(_ context.Context, v *models.Parameters) error {
	if p.err != nil {
		return p.err
	}
	cp := *v
	p.saved = &cp
	return nil
}

// outcomes builds n samples where the first wins are winners
func outcomes(n, wins int, gp, sfp bool) sampleList {
	out := make(sampleList, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.PerformanceSample{
			TradeNumber:     int64(i + 1),
			Symbol:          "BTCUSDT",
			Direction:       models.DirectionLong,
			Winner:          i < wins,
			GoldenPocketHit: gp,
			SFPHit:          sfp,
		})
	}
	return out
}

func newEngine(samples *sampleList, store *paramStore) (*Engine, *params.Holder) {
	holder := params.NewHolder(params.Defaults(), params.DefaultBounds())
	return NewEngine(DefaultConfig(), samples, holder, store, zerolog.Nop()), holder
}

func snapshots(n int) []*analysis.Snapshot {
	rng := rand.New(rand.NewSource(5))
	out := make([]*analysis.Snapshot, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &analysis.Snapshot{
			Symbol:     "SYM",
			Price:      100,
			RSI:        indicators.RSIResult{Value: rng.Float64() * 100, OK: true},
			VWAP:       indicators.VWAPResult{Deviation: rng.Float64()*6 - 3, OK: true},
			LongPocket: indicators.GoldenPocket{InZone: rng.Intn(3) == 0, DistancePct: -rng.Float64() * 4, OK: true},
			BullishSFP: rng.Intn(4) == 0,
			Volume:     indicators.VolumeSpike{Ratio: rng.Float64() * 2.5, OK: true},
		})
	}
	return out
}

func qualifying(t *testing.T, m *strategy.StrategyManager, snaps []*analysis.Snapshot, p models.Parameters) int {
	t.Helper()
	n := 0
	for _, s := range snaps {
		c, err := m.Evaluate(s, p)
		require.NoError(t, err)
		if c != nil {
			n++
		}
	}
	return n
}

func TestLosingStreakRaisesMinConfidence(t *testing.T) {
	samples := outcomes(20, 6, false, false)
	store := &paramStore{}
	engine, holder := newEngine(&samples, store)

	scorer, err := strategy.NewScorer(strategy.DefaultProfile())
	require.NoError(t, err)
	manager, err := strategy.NewStrategyManager(scorer, strategy.DefaultLevelConfig())
	require.NoError(t, err)
	snaps := snapshots(200)
	before := qualifying(t, manager, snaps, holder.Snapshot())

	adj, err := engine.Adjust(context.Background())
	require.NoError(t, err)
	assert.True(t, adj.Applied)
	assert.InDelta(t, 0.3, adj.Stats.Overall.WinRate, 1e-9)
	assert.Greater(t, holder.Snapshot().MinConfidence, 40.0)
	assert.Equal(t, 45.0, holder.Snapshot().MinConfidence)

	after := qualifying(t, manager, snaps, holder.Snapshot())
	assert.LessOrEqual(t, after, before)

	require.NotNil(t, store.saved)
	assert.Equal(t, 45.0, store.saved.MinConfidence)
	assert.Equal(t, int64(20), store.saved.SamplesAtAdjustment)
}

func TestAdjustWaitsForNewSamples(t *testing.T) {
	samples := outcomes(20, 6, false, false)
	engine, holder := newEngine(&samples, &paramStore{})
	ctx := context.Background()

	_, err := engine.Adjust(ctx)
	require.NoError(t, err)
	require.Equal(t, 45.0, holder.Snapshot().MinConfidence)

	adj, err := engine.Adjust(ctx)
	require.NoError(t, err)
	assert.False(t, adj.Applied)
	assert.Equal(t, 45.0, holder.Snapshot().MinConfidence)

	samples = append(samples, outcomes(5, 0, false, false)...)
	_, err = engine.Adjust(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50.0, holder.Snapshot().MinConfidence)
}

func TestAdjustNeedsMinimumSamples(t *testing.T) {
	samples := outcomes(9, 0, false, false)
	engine, holder := newEngine(&samples, &paramStore{})

	adj, err := engine.Adjust(context.Background())
	require.NoError(t, err)
	assert.False(t, adj.Applied)
	assert.Equal(t, 40.0, holder.Snapshot().MinConfidence)
}

func TestBoundsHold(t *testing.T) {
	ctx := context.Background()

	losing := outcomes(10, 0, true, true)
	engine, holder := newEngine(&losing, &paramStore{})
	for i := 0; i < 10; i++ {
		losing = append(losing, outcomes(5, 0, true, true)...)
		_, err := engine.Adjust(ctx)
		require.NoError(t, err)
	}
	p := holder.Snapshot()
	assert.Equal(t, 60.0, p.MinConfidence)
	assert.InDelta(t, 0.8, p.GoldenPocketWeight, 1e-9)
	assert.InDelta(t, 0.8, p.SFPWeight, 1e-9)

	winning := outcomes(10, 10, true, false)
	engine, holder = newEngine(&winning, &paramStore{})
	for i := 0; i < 10; i++ {
		winning = append(winning, outcomes(5, 5, true, false)...)
		_, err := engine.Adjust(ctx)
		require.NoError(t, err)
	}
	p = holder.Snapshot()
	assert.Equal(t, 35.0, p.MinConfidence)
	assert.InDelta(t, 1.2, p.GoldenPocketWeight, 1e-9)
	assert.InDelta(t, 1.0, p.SFPWeight, 1e-9, "no SFP samples")
}

func TestFactorWeights(t *testing.T) {
	// 60% overall leaves min confidence alone
	samples := append(outcomes(5, 5, true, false), outcomes(5, 1, false, true)...)
	engine, holder := newEngine(&samples, &paramStore{})

	adj, err := engine.Adjust(context.Background())
	require.NoError(t, err)
	assert.True(t, adj.Applied)
	p := holder.Snapshot()
	assert.Equal(t, 40.0, p.MinConfidence)
	assert.InDelta(t, 1.1, p.GoldenPocketWeight, 1e-9)
	assert.InDelta(t, 0.9, p.SFPWeight, 1e-9)
	assert.Equal(t, 5, adj.Stats.SFP.Samples)
	assert.InDelta(t, 0.2, adj.Stats.SFP.WinRate, 1e-9)
}

func TestCheckpointFailureKeepsAdjustment(t *testing.T) {
	samples := outcomes(12, 2, false, false)
	engine, holder := newEngine(&samples, &paramStore{err: errors.New("disk full")})
	engine.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	adj, err := engine.Adjust(context.Background())
	assert.Error(t, err)
	assert.True(t, adj.Applied)
	assert.Equal(t, 45.0, holder.Snapshot().MinConfidence)
	assert.Equal(t, 2025, holder.Snapshot().UpdatedAt.Year())
}

func TestWindowUsesMostRecent(t *testing.T) {
	// 50 old winners followed by 50 losers
	samples := append(outcomes(50, 50, false, false), outcomes(50, 0, false, false)...)
	engine, _ := newEngine(&samples, &paramStore{})

	stats, err := engine.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100), stats.Total)
	assert.Equal(t, 50, stats.Overall.Samples)
	assert.Equal(t, 0.0, stats.Overall.WinRate)
}
