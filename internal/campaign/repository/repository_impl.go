package repository

import (
	"context"
	"errors"

	"github.com/boostlane/boostlane/internal/campaign/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type campaignRepository struct{}

// Provide returns the gorm-backed campaign repository.
func Provide() domain.Repository {
	return &campaignRepository{}
}

func (r *campaignRepository) Insert(ctx context.Context, db *gorm.DB, campaign *domain.Campaign) error {
	return db.WithContext(ctx).Create(campaign).Error
}

func (r *campaignRepository) Update(ctx context.Context, db *gorm.DB, campaign *domain.Campaign) error {
	// Save writes every column so cleared pointers (archived_at and the
	// like) are persisted as NULL rather than skipped.
	return db.WithContext(ctx).Save(campaign).Error
}

func (r *campaignRepository) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	res := db.WithContext(ctx).Delete(&domain.Campaign{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *campaignRepository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Campaign, error) {
	var campaign domain.Campaign
	err := db.WithContext(ctx).First(&campaign, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (r *campaignRepository) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Campaign, error) {
	query := db.WithContext(ctx).Model(&domain.Campaign{})
	if filter.AccountID != nil {
		query = query.Where("account_id = ?", *filter.AccountID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var campaigns []domain.Campaign
	if err := query.Order("created_at DESC").Find(&campaigns).Error; err != nil {
		return nil, err
	}
	return campaigns, nil
}
