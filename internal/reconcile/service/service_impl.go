package service

import (
	"context"
	"errors"
	"time"

	accountdomain "github.com/boostlane/boostlane/internal/account/domain"
	campaigndomain "github.com/boostlane/boostlane/internal/campaign/domain"
	"github.com/boostlane/boostlane/internal/clock"
	"github.com/boostlane/boostlane/internal/config"
	"github.com/boostlane/boostlane/internal/observability/metrics"
	"github.com/boostlane/boostlane/internal/reconcile/domain"
	trafficdomain "github.com/boostlane/boostlane/internal/traffic/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config      config.Config
	DB          *gorm.DB
	Clock       clock.Clock
	AccountRepo accountdomain.Repository
	Vendor      trafficdomain.Vendor
}

type reconcileService struct {
	cfg         config.Config
	db          *gorm.DB
	clock       clock.Clock
	accountRepo accountdomain.Repository
	vendor      trafficdomain.Vendor
	locks       *keyedMutex
	log         *zap.Logger
}

// New constructs the reconciliation engine.
func New(p Params) domain.Service {
	return &reconcileService{
		cfg:         p.Config,
		db:          p.DB,
		clock:       p.Clock,
		accountRepo: p.AccountRepo,
		vendor:      p.Vendor,
		locks:       newKeyedMutex(),
		log:         zap.L().Named("reconcile"),
	}
}

func (s *reconcileService) ReconcileOne(ctx context.Context, campaignID string) (*domain.ReconcileResult, error) {
	id, err := campaigndomain.ParseID(campaignID)
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	var campaign campaigndomain.Campaign
	err = s.db.WithContext(ctx).First(&campaign, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, campaigndomain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return s.reconcile(ctx, &campaign)
}

// reconcile runs one pass for a loaded campaign. The caller holds the
// campaign lock.
func (s *reconcileService) reconcile(ctx context.Context, campaign *campaigndomain.Campaign) (*domain.ReconcileResult, error) {
	result := &domain.ReconcileResult{CampaignID: campaign.ID.String()}

	if campaign.VendorProjectID == nil || !campaign.Billable() {
		result.Outcome = domain.OutcomeSkipped
		return result, nil
	}

	now := s.clock.Now()
	prevHits := campaign.TotalHitsCounted
	prevVisits := campaign.TotalVisitsCounted

	// Always the full-history window: correctness relies on the vendor
	// counter being cumulative, not on the polling cadence.
	report, err := s.vendor.GetUsage(ctx, *campaign.VendorProjectID, campaign.CreatedAt, now)
	if errors.Is(err, trafficdomain.ErrUnavailable) {
		// Transport failure: nothing advances; the next pass retries
		// with the same window.
		metrics.Scheduler().IncVendorError("unavailable")
		return nil, err
	}
	if errors.Is(err, trafficdomain.ErrInvalidData) {
		metrics.Scheduler().IncVendorError("data_invalid")
		s.log.Warn("vendor returned invalid usage data",
			zap.String("campaign_id", result.CampaignID),
			zap.Error(err),
		)
		// Zero usage this pass. The watermark still advances so a
		// persistently broken project cannot wedge the sweep — except on
		// an un-baselined campaign, which must stay un-baselined so the
		// next good read adopts the cumulative count instead of billing
		// the full history.
		if campaign.LastStatsCheck != nil {
			if err := s.touchWatermark(ctx, campaign.ID, now); err != nil {
				return nil, err
			}
		}
		result.Outcome = domain.OutcomeDataInvalid
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	totalHits := report.TotalHits()
	totalVisits := report.TotalVisits()

	// Baseline pass: adopt the vendor's cumulative count without
	// charging, so pre-tracking traffic is never billed.
	if campaign.LastStatsCheck == nil {
		err := s.advanceCheckpoint(ctx, s.db, campaign.ID, prevHits, totalHits-prevHits, totalVisits-prevVisits, now)
		if err != nil {
			return nil, err
		}
		result.Outcome = domain.OutcomeBaseline
		s.log.Info("baseline established",
			zap.String("campaign_id", result.CampaignID),
			zap.Int64("total_hits", totalHits),
		)
		return result, nil
	}

	newHits := totalHits - prevHits
	if newHits < 0 {
		newHits = 0
	}
	newVisits := totalVisits - prevVisits
	if newVisits < 0 {
		newVisits = 0
	}

	if newHits == 0 {
		if err := s.touchWatermark(ctx, campaign.ID, now); err != nil {
			return nil, err
		}
		result.Outcome = domain.OutcomeNoNewUsage
		return result, nil
	}

	owed := newHits * s.cfg.Billing.CreditsPerHit
	// Debit and checkpoint advance commit together or not at all.
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.accountRepo.DebitForUsage(ctx, tx, campaign.AccountID, owed, newHits)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInsufficientBalance
		}
		return s.advanceCheckpoint(ctx, tx, campaign.ID, prevHits, newHits, newVisits, now)
	})

	if errors.Is(txErr, domain.ErrInsufficientBalance) {
		if err := s.autoPause(ctx, campaign); err != nil {
			return nil, err
		}
		metrics.Scheduler().IncAutoPaused()
		result.Outcome = domain.OutcomeAutoPaused
		result.NewHits = newHits
		s.log.Warn("insufficient balance, campaign auto-paused",
			zap.String("campaign_id", result.CampaignID),
			zap.String("account_id", campaign.AccountID.String()),
			zap.Int64("credits_owed", owed),
		)
		return result, nil
	}
	if txErr != nil {
		return nil, txErr
	}

	metrics.Scheduler().AddCreditsDeducted(owed)
	metrics.Scheduler().AddHitsBilled(newHits)
	result.Outcome = domain.OutcomeCharged
	result.NewHits = newHits
	result.NewVisits = newVisits
	result.CreditsCharged = owed
	s.log.Info("usage charged",
		zap.String("campaign_id", result.CampaignID),
		zap.Int64("new_hits", newHits),
		zap.Int64("credits_charged", owed),
	)
	return result, nil
}

// advanceCheckpoint moves the billing watermark. The WHERE clause pins
// the previous checkpoint so a concurrent writer surfaces as a conflict
// instead of a double charge.
func (s *reconcileService) advanceCheckpoint(ctx context.Context, db *gorm.DB, id snowflake.ID, prevHits, deltaHits, deltaVisits int64, now time.Time) error {
	res := db.WithContext(ctx).Model(&campaigndomain.Campaign{}).
		Where("id = ? AND total_hits_counted = ?", id, prevHits).
		Updates(map[string]any{
			"total_hits_counted":   gorm.Expr("total_hits_counted + ?", deltaHits),
			"total_visits_counted": gorm.Expr("total_visits_counted + ?", deltaVisits),
			"last_stats_check":     now,
			"updated_at":           now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrPersistenceConflict
	}
	return nil
}

func (s *reconcileService) touchWatermark(ctx context.Context, id snowflake.ID, now time.Time) error {
	return s.db.WithContext(ctx).Model(&campaigndomain.Campaign{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_stats_check": now,
			"updated_at":       now,
		}).Error
}

func (s *reconcileService) autoPause(ctx context.Context, campaign *campaigndomain.Campaign) error {
	err := s.db.WithContext(ctx).Model(&campaigndomain.Campaign{}).
		Where("id = ? AND status <> ?", campaign.ID, campaigndomain.StatusArchived).
		Updates(map[string]any{
			"status":                   campaigndomain.StatusPaused,
			"pause_reason":             campaigndomain.PauseReasonInsolvent,
			"credit_deduction_enabled": false,
			"updated_at":               s.clock.Now(),
		}).Error
	if err != nil {
		return err
	}

	// Local state is authoritative; stopping vendor throughput is
	// best-effort.
	if campaign.VendorProjectID != nil {
		if err := s.vendor.SetSpeed(ctx, *campaign.VendorProjectID, 0); err != nil {
			s.log.Warn("vendor speed sync failed after auto-pause",
				zap.String("campaign_id", campaign.ID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *reconcileService) ReconcileAll(ctx context.Context) (domain.Summary, error) {
	var summary domain.Summary

	batchSize := s.cfg.Scheduler.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	var campaigns []campaigndomain.Campaign
	err := s.db.WithContext(ctx).
		Where("status <> ? AND credit_deduction_enabled = ? AND vendor_project_id IS NOT NULL",
			campaigndomain.StatusArchived, true).
		Order("last_stats_check IS NOT NULL, last_stats_check ASC").
		Limit(batchSize).
		Find(&campaigns).Error
	if err != nil {
		return summary, err
	}
	summary.TotalCampaigns = len(campaigns)

	for i := range campaigns {
		campaign := &campaigns[i]
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		unlock := s.locks.Lock(campaign.ID)
		result, err := s.reconcile(ctx, campaign)
		unlock()

		if err != nil {
			// Per-campaign isolation: one broken campaign never aborts
			// the sweep.
			summary.Errors++
			s.log.Error("reconciliation failed",
				zap.String("campaign_id", campaign.ID.String()),
				zap.Error(err),
			)
			continue
		}

		summary.Processed++
		switch result.Outcome {
		case domain.OutcomeAutoPaused:
			summary.AutoPaused++
		case domain.OutcomeCharged:
			summary.CreditsDeducted += result.CreditsCharged
			summary.HitsBilled += result.NewHits
		}
	}
	return summary, nil
}

func (s *reconcileService) SweepArchive(ctx context.Context, retention time.Duration) (domain.SweepResult, error) {
	now := s.clock.Now()
	cutoff := now.Add(-retention)

	res := s.db.WithContext(ctx).Model(&campaigndomain.Campaign{}).
		Where("status = ? AND delete_eligible = ? AND archived_at IS NOT NULL AND archived_at <= ?",
			campaigndomain.StatusArchived, false, cutoff).
		Updates(map[string]any{
			"delete_eligible":    true,
			"delete_eligible_at": now,
			"updated_at":         now,
		})
	if res.Error != nil {
		return domain.SweepResult{}, res.Error
	}

	marked := int(res.RowsAffected)
	if marked > 0 {
		metrics.Scheduler().AddSweepEligible(int64(marked))
		s.log.Info("archive sweep marked campaigns delete-eligible", zap.Int("count", marked))
	}
	return domain.SweepResult{MarkedEligible: marked}, nil
}

func (s *reconcileService) PurgeExpired(ctx context.Context, retention time.Duration) (domain.SweepResult, error) {
	cutoff := s.clock.Now().Add(-retention)

	res := s.db.WithContext(ctx).
		Where("delete_eligible = ? AND delete_eligible_at IS NOT NULL AND delete_eligible_at <= ?", true, cutoff).
		Delete(&campaigndomain.Campaign{})
	if res.Error != nil {
		return domain.SweepResult{}, res.Error
	}

	purged := int(res.RowsAffected)
	if purged > 0 {
		metrics.Scheduler().AddSweepPurged(int64(purged))
		s.log.Info("purged expired campaigns", zap.Int("count", purged))
	}
	return domain.SweepResult{Purged: purged}, nil
}
