package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ReversalSniper/internal/models"

	"gorm.io/gorm"
)

type TradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new instance of TradeRepository
func NewTradeRepository(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create adds a new Trade record to the database
func (r *TradeRepository) Create(ctx context.Context, trade *models.Trade) error {
	if trade == nil {
		return errors.New("trade cannot be nil")
	}
	return r.db.WithContext(ctx).Create(trade).Error
}

// FindByNumber retrieves a Trade record by its trade number
func (r *TradeRepository) FindByNumber(ctx context.Context, number int64) (*models.Trade, error) {
	if number <= 0 {
		return nil, errors.New("invalid trade number")
	}
	var trade models.Trade
	err := r.db.WithContext(ctx).Where("trade_number = ?", number).First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &trade, err
}

// Update writes the exit fields of a Trade. The record is matched by trade
// number so trades created while the store was down still land.
func (r *TradeRepository) Update(ctx context.Context, trade *models.Trade) error {
	if trade == nil {
		return errors.New("trade cannot be nil")
	}
	db := r.db.WithContext(ctx)

	var existing models.Trade
	err := db.Where("trade_number = ?", trade.TradeNumber).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		trade.ID = 0
		return db.Create(trade).Error
	}
	if err != nil {
		return err
	}

	trade.ID = existing.ID
	trade.CreatedAt = existing.CreatedAt
	return db.Save(trade).Error
}

// FindOpen retrieves all open Trade records
func (r *TradeRepository) FindOpen(ctx context.Context) ([]models.Trade, error) {
	var trades []models.Trade
	err := r.db.WithContext(ctx).
		Where("status = ?", models.TradeStatusOpen).
		Order("trade_number").
		Find(&trades).Error
	return trades, err
}

// FindRecentClosed retrieves the latest closed trades, oldest first
func (r *TradeRepository) FindRecentClosed(ctx context.Context, limit int) ([]models.Trade, error) {
	if limit <= 0 {
		return nil, nil
	}
	var trades []models.Trade
	err := r.db.WithContext(ctx).
		Where("status = ?", models.TradeStatusClosed).
		Order("exit_time DESC").
		Limit(limit).
		Find(&trades).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(trades)-1; i < j; i, j = i+1, j-1 {
		trades[i], trades[j] = trades[j], trades[i]
	}
	return trades, nil
}

// MaxTradeNumber returns the highest trade number ever stored, 0 when empty
func (r *TradeRepository) MaxTradeNumber(ctx context.Context) (int64, error) {
	var n sql.NullInt64
	err := r.db.WithContext(ctx).Model(&models.Trade{}).
		Select("MAX(trade_number)").
		Row().Scan(&n)
	return n.Int64, err
}

// GetTotalPnL sums realized P&L for trades closed within a time range
func (r *TradeRepository) GetTotalPnL(ctx context.Context, start, end time.Time) (float64, error) {
	var totalPnL sql.NullFloat64
	err := r.db.WithContext(ctx).Model(&models.Trade{}).
		Where("exit_time BETWEEN ? AND ? AND status = ?", start, end, models.TradeStatusClosed).
		Select("SUM(pnl)").
		Row().Scan(&totalPnL)
	return totalPnL.Float64, err
}
