package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CreateRequest struct {
	AccountID string         `json:"account_id"`
	Name      string         `json:"name"`
	TargetURL string         `json:"target_url"`
	Speed     int            `json:"speed"`
	Metadata  map[string]any `json:"metadata"`
}

type ListRequest struct {
	AccountID string `form:"account_id"`
	Status    string `form:"status"`
}

type Response struct {
	ID                     string      `json:"id"`
	AccountID              string      `json:"account_id"`
	Name                   string      `json:"name"`
	VendorProjectID        *string     `json:"vendor_project_id,omitempty"`
	Status                 Status      `json:"status"`
	PauseReason            PauseReason `json:"pause_reason,omitempty"`
	ArchivedAt             *time.Time  `json:"archived_at,omitempty"`
	DeleteEligible         bool        `json:"delete_eligible"`
	DeleteEligibleAt       *time.Time  `json:"delete_eligible_at,omitempty"`
	CreditDeductionEnabled bool        `json:"credit_deduction_enabled"`
	TotalHitsCounted       int64       `json:"total_hits_counted"`
	TotalVisitsCounted     int64       `json:"total_visits_counted"`
	LastStatsCheck         *time.Time  `json:"last_stats_check,omitempty"`
	Speed                  int         `json:"speed"`
	CreatedAt              time.Time   `json:"created_at"`
	UpdatedAt              time.Time   `json:"updated_at"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	GetByID(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)

	// Pause stops billing eligibility. Insolvent pauses are recorded so
	// resume can demand a positive balance first.
	Pause(ctx context.Context, id string, reason PauseReason) (*Response, error)
	Resume(ctx context.Context, id string) (*Response, error)
	// Archive soft-deletes; archiving an already delete-eligible campaign
	// purges it instead.
	Archive(ctx context.Context, id string) (*Response, error)
	Restore(ctx context.Context, id string) (*Response, error)
}

var (
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidAccount    = errors.New("invalid_account")
	ErrInvalidSpeed      = errors.New("invalid_speed")
	ErrNotFound          = errors.New("not_found")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrInsolventAccount  = errors.New("insolvent_account")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
