// Package domain contains the campaign model and its lifecycle rules.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status is the campaign lifecycle state.
type Status string

const (
	StatusCreated  Status = "created"
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusArchived Status = "archived"
)

// PauseReason records who or what paused a campaign. An insolvent pause
// is cleared on resume only after the balance has been replenished.
type PauseReason string

const (
	PauseReasonNone          PauseReason = ""
	PauseReasonUserRequested PauseReason = "user_requested"
	PauseReasonInsolvent     PauseReason = "insolvent"
)

// Campaign is a paid traffic campaign tied to a vendor-side project.
// TotalHitsCounted is the billing watermark: the cumulative number of
// vendor hits already charged against the owning account.
type Campaign struct {
	ID                     snowflake.ID      `gorm:"primaryKey"`
	AccountID              snowflake.ID      `gorm:"not null;index"`
	Name                   string            `gorm:"type:text;not null"`
	VendorProjectID        *string           `gorm:"type:text"`
	Status                 Status            `gorm:"type:text;not null;default:created;index"`
	PauseReason            PauseReason       `gorm:"type:text;not null;default:''"`
	StatusBeforeArchive    Status            `gorm:"type:text;not null;default:''"`
	ArchivedAt             *time.Time
	DeleteEligible         bool              `gorm:"not null;default:false"`
	DeleteEligibleAt       *time.Time
	CreditDeductionEnabled bool              `gorm:"not null;default:true"`
	TotalHitsCounted       int64             `gorm:"not null;default:0"`
	TotalVisitsCounted     int64             `gorm:"not null;default:0"`
	LastStatsCheck         *time.Time
	Speed                  int               `gorm:"not null;default:100"`
	Metadata               datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt              time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt              time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Campaign) TableName() string { return "campaigns" }

// Billable reports whether reconciliation should charge this campaign.
func (c *Campaign) Billable() bool {
	return c.CreditDeductionEnabled && c.Status != StatusArchived
}
