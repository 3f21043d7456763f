package params

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"ReversalSniper/internal/models"
)

// Store checkpoints the parameter row
type Store interface {
	Load(ctx context.Context) (*models.Parameters, error)
	Save(ctx context.Context, p *models.Parameters) error
}

// Bounds keeps adjusted values inside a safe band
type Bounds struct {
	MinConfidenceFloor   float64
	MinConfidenceCeiling float64
	WeightMin            float64
	WeightMax            float64
}

func DefaultBounds() Bounds {
	return Bounds{
		MinConfidenceFloor:   35,
		MinConfidenceCeiling: 60,
		WeightMin:            0.8,
		WeightMax:            1.2,
	}
}

func Defaults() models.Parameters {
	return models.Parameters{
		ID:                 models.ParametersRowID,
		Profile:            "sniper",
		MinConfidence:      40,
		GoldenPocketWeight: 1.0,
		SFPWeight:          1.0,
	}
}

// Clamp forces every adjustable value into the bounds
func (b Bounds) Clamp(p models.Parameters) models.Parameters {
	p.MinConfidence = clamp(p.MinConfidence, b.MinConfidenceFloor, b.MinConfidenceCeiling)
	p.GoldenPocketWeight = clamp(p.GoldenPocketWeight, b.WeightMin, b.WeightMax)
	p.SFPWeight = clamp(p.SFPWeight, b.WeightMin, b.WeightMax)
	return p
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Holder owns the process-wide parameters. Scans read a Snapshot once and
// keep it; only the learning engine calls Apply.
type Holder struct {
	mu      sync.RWMutex
	current models.Parameters
	bounds  Bounds
}

func NewHolder(initial models.Parameters, bounds Bounds) *Holder {
	initial.ID = models.ParametersRowID
	return &Holder{current: bounds.Clamp(initial), bounds: bounds}
}

// Snapshot returns a copy that does not change when the holder does
func (h *Holder) Snapshot() models.Parameters {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

func (h *Holder) Bounds() Bounds {
	return h.bounds
}

// Apply replaces the current values, clamped to bounds, and returns what was stored
func (h *Holder) Apply(p models.Parameters, at time.Time) models.Parameters {
	h.mu.Lock()
	defer h.mu.Unlock()

	p.ID = models.ParametersRowID
	p.UpdatedAt = at
	h.current = h.bounds.Clamp(p)
	return h.current
}

// Restore loads checkpointed parameters into the holder. A missing row keeps
// the current values and writes them as the first checkpoint.
func (h *Holder) Restore(ctx context.Context, store Store) error {
	saved, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load parameters: %w", err)
	}
	if saved == nil {
		current := h.Snapshot()
		if err := store.Save(ctx, &current); err != nil {
			return fmt.Errorf("failed to save initial parameters: %w", err)
		}
		return nil
	}

	h.mu.Lock()
	h.current = h.bounds.Clamp(*saved)
	h.mu.Unlock()
	return nil
}

// MemoryStore checkpoints in process
type MemoryStore struct {
	mu    sync.Mutex
	saved *models.Parameters
}

// NewMemoryStore starts without a checkpoint, so the first Restore saves
// the holder's current values.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(context.Context) (*models.Parameters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		return nil, nil
	}
	cp := *m.saved
	return &cp, nil
}

func (m *MemoryStore) Save(_ context.Context, p *models.Parameters) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.saved = &cp
	return nil
}
