// Package domain contains persistence models for advertiser accounts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Account holds the two correlated balances debited by reconciliation:
// a credit balance and a hit allowance.
type Account struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	Name          string       `gorm:"type:text;not null;uniqueIndex"`
	Credits       int64        `gorm:"not null;default:0"`
	AvailableHits int64        `gorm:"not null;default:0"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }
