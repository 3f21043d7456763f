package repositories

import (
	"context"
	"errors"

	"ReversalSniper/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PerformanceRepository struct {
	db *gorm.DB
}

// NewPerformanceRepository creates a new instance of PerformanceRepository
func NewPerformanceRepository(db *gorm.DB) *PerformanceRepository {
	return &PerformanceRepository{db: db}
}

// Append adds a sample; a repeated trade number is ignored
func (r *PerformanceRepository) Append(ctx context.Context, sample *models.PerformanceSample) error {
	if sample == nil {
		return errors.New("sample cannot be nil")
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "trade_number"}}, DoNothing: true}).
		Create(sample).Error
}

// Recent retrieves the latest samples by close time, oldest first
func (r *PerformanceRepository) Recent(ctx context.Context, limit int) ([]models.PerformanceSample, error) {
	if limit <= 0 {
		return nil, nil
	}
	var samples []models.PerformanceSample
	err := r.db.WithContext(ctx).Order("closed_at DESC, trade_number DESC").Limit(limit).Find(&samples).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
	return samples, nil
}

// Count returns the number of samples ever recorded
func (r *PerformanceRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.PerformanceSample{}).Count(&n).Error
	return n, err
}

type ParameterRepository struct {
	db *gorm.DB
}

// NewParameterRepository creates a new instance of ParameterRepository
func NewParameterRepository(db *gorm.DB) *ParameterRepository {
	return &ParameterRepository{db: db}
}

// Load retrieves the checkpointed parameters, nil when none were saved
func (r *ParameterRepository) Load(ctx context.Context) (*models.Parameters, error) {
	var p models.Parameters
	err := r.db.WithContext(ctx).First(&p, models.ParametersRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Save overwrites the single parameter row
func (r *ParameterRepository) Save(ctx context.Context, p *models.Parameters) error {
	if p == nil {
		return errors.New("parameters cannot be nil")
	}
	p.ID = models.ParametersRowID
	return r.db.WithContext(ctx).Save(p).Error
}
