package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, account *Account) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	// AddCredits grows both balances under the 1-hit-per-credit policy.
	AddCredits(ctx context.Context, db *gorm.DB, id snowflake.ID, credits, hits int64) error
	// DebitForUsage applies an all-or-nothing debit. It reports false when
	// the balance could not cover the amount; no partial debit is made.
	DebitForUsage(ctx context.Context, db *gorm.DB, id snowflake.ID, credits, hits int64) (bool, error)
}
