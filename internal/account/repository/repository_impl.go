package repository

import (
	"context"
	"errors"

	"github.com/boostlane/boostlane/internal/account/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type accountRepository struct{}

// Provide returns the gorm-backed account repository.
func Provide() domain.Repository {
	return &accountRepository{}
}

func (r *accountRepository) Insert(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Create(account).Error
}

func (r *accountRepository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).First(&account, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) AddCredits(ctx context.Context, db *gorm.DB, id snowflake.ID, credits, hits int64) error {
	res := db.WithContext(ctx).Model(&domain.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"credits":        gorm.Expr("credits + ?", credits),
			"available_hits": gorm.Expr("available_hits + ?", hits),
			"updated_at":     gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *accountRepository) DebitForUsage(ctx context.Context, db *gorm.DB, id snowflake.ID, credits, hits int64) (bool, error) {
	// The balance guard lives in the WHERE clause so concurrent debits
	// against the same account can never drive it negative.
	res := db.WithContext(ctx).Model(&domain.Account{}).
		Where("id = ? AND credits >= ?", id, credits).
		Updates(map[string]any{
			"credits":        gorm.Expr("credits - ?", credits),
			"available_hits": gorm.Expr("available_hits - ?", hits),
			"updated_at":     gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
