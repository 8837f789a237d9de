// Package domain defines the reconciliation engine surface: outcomes,
// summaries, and the errors callers branch on.
package domain

import (
	"context"
	"errors"
	"time"
)

// Outcome classifies a single reconciliation pass. Auto-pause and
// invalid vendor data are normal outcomes, not errors.
type Outcome string

const (
	// OutcomeSkipped: the campaign was not eligible (archived, deduction
	// disabled, or never provisioned on the vendor side).
	OutcomeSkipped Outcome = "skipped"
	// OutcomeBaseline: first pass; checkpoint set, nothing charged.
	OutcomeBaseline Outcome = "baseline"
	// OutcomeNoNewUsage: cumulative reading has not moved past the
	// checkpoint.
	OutcomeNoNewUsage Outcome = "no_new_usage"
	// OutcomeCharged: new units billed and checkpoint advanced.
	OutcomeCharged Outcome = "charged"
	// OutcomeAutoPaused: balance could not cover the owed amount; the
	// campaign was paused and nothing was debited.
	OutcomeAutoPaused Outcome = "auto_paused"
	// OutcomeDataInvalid: vendor answered with garbage; treated as zero
	// usage, watermark advanced so the campaign cannot get stuck.
	OutcomeDataInvalid Outcome = "vendor_data_invalid"
)

type ReconcileResult struct {
	CampaignID     string  `json:"campaign_id"`
	Outcome        Outcome `json:"outcome"`
	NewHits        int64   `json:"new_hits"`
	NewVisits      int64   `json:"new_visits"`
	CreditsCharged int64   `json:"credits_charged"`
}

type Summary struct {
	TotalCampaigns  int   `json:"total_campaigns"`
	Processed       int   `json:"processed"`
	Errors          int   `json:"errors"`
	AutoPaused      int   `json:"auto_paused"`
	CreditsDeducted int64 `json:"credits_deducted"`
	HitsBilled      int64 `json:"hits_billed"`
}

type SweepResult struct {
	MarkedEligible int `json:"marked_eligible"`
	Purged         int `json:"purged"`
}

type Service interface {
	// ReconcileOne runs one pass for a single campaign. Manual triggers
	// share this path, and its per-campaign lock, with the scheduler.
	ReconcileOne(ctx context.Context, campaignID string) (*ReconcileResult, error)
	ReconcileAll(ctx context.Context) (Summary, error)
	// SweepArchive marks archived campaigns past the retention window as
	// delete-eligible.
	SweepArchive(ctx context.Context, retention time.Duration) (SweepResult, error)
	// PurgeExpired hard-deletes campaigns whose delete eligibility has
	// itself outlived a second retention window.
	PurgeExpired(ctx context.Context, retention time.Duration) (SweepResult, error)
}

var (
	ErrInvalidID           = errors.New("invalid_id")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	// ErrPersistenceConflict means another writer moved the checkpoint
	// mid-pass. The pass aborts with no partial mutation and the next
	// sweep recomputes from the new checkpoint.
	ErrPersistenceConflict = errors.New("persistence_conflict")
)
