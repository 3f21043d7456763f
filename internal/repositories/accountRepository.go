package repositories

import (
	"context"
	"errors"

	"ReversalSniper/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new instance of AccountRepository
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// FindByCurrency retrieves the account for a quote currency
func (r *AccountRepository) FindByCurrency(ctx context.Context, currency string) (*models.Account, error) {
	if currency == "" {
		return nil, errors.New("invalid currency")
	}
	var account models.Account
	err := r.db.WithContext(ctx).Where("currency = ?", currency).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &account, err
}

// Save creates or updates the account for its currency
func (r *AccountRepository) Save(ctx context.Context, account *models.Account) error {
	if account == nil {
		return errors.New("account cannot be nil")
	}
	if account.ID == 0 {
		existing, err := r.FindByCurrency(ctx, account.Currency)
		if err != nil {
			return err
		}
		if existing != nil {
			account.ID = existing.ID
		}
	}
	return r.db.WithContext(ctx).Save(account).Error
}

type DailyPnLRepository struct {
	db *gorm.DB
}

// NewDailyPnLRepository creates a new instance of DailyPnLRepository
func NewDailyPnLRepository(db *gorm.DB) *DailyPnLRepository {
	return &DailyPnLRepository{db: db}
}

// AddClosed folds one closed trade into its day's row
func (r *DailyPnLRepository) AddClosed(ctx context.Context, day string, pnl float64, winner bool) error {
	if day == "" {
		return errors.New("invalid day")
	}
	wins, losses := 0, 1
	if winner {
		wins, losses = 1, 0
	}
	row := models.DailyPnL{Date: day, Trades: 1, Wins: wins, Losses: losses, PnL: pnl}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"trades": gorm.Expr("daily_pnl.trades + ?", 1),
			"wins":   gorm.Expr("daily_pnl.wins + ?", wins),
			"losses": gorm.Expr("daily_pnl.losses + ?", losses),
			"pnl":    gorm.Expr("daily_pnl.pnl + ?", pnl),
		}),
	}).Create(&row).Error
}

// FindRecent retrieves the latest days, newest first
func (r *DailyPnLRepository) FindRecent(ctx context.Context, days int) ([]models.DailyPnL, error) {
	var rows []models.DailyPnL
	err := r.db.WithContext(ctx).Order("date DESC").Limit(days).Find(&rows).Error
	return rows, err
}

// FindByDate retrieves one day's row
func (r *DailyPnLRepository) FindByDate(ctx context.Context, day string) (*models.DailyPnL, error) {
	var row models.DailyPnL
	err := r.db.WithContext(ctx).Where("date = ?", day).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &row, err
}
