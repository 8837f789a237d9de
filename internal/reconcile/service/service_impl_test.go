package service

import (
	"context"
	"testing"
	"time"

	accountdomain "github.com/boostlane/boostlane/internal/account/domain"
	accountrepo "github.com/boostlane/boostlane/internal/account/repository"
	campaigndomain "github.com/boostlane/boostlane/internal/campaign/domain"
	"github.com/boostlane/boostlane/internal/clock"
	"github.com/boostlane/boostlane/internal/config"
	"github.com/boostlane/boostlane/internal/reconcile/domain"
	trafficdomain "github.com/boostlane/boostlane/internal/traffic/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeVendor serves a scripted cumulative reading per call.
type fakeVendor struct {
	readings []int64
	visits   []int64
	calls    int
	err      error

	speedCalls []int

	// onGetUsage runs before a successful reading is returned, so tests
	// can interleave writes between the campaign load and the charge.
	onGetUsage func()
}

func (v *fakeVendor) Provider() string { return "fake" }

func (v *fakeVendor) CreateProject(ctx context.Context, req trafficdomain.CreateProjectRequest) (string, error) {
	return "proj-1", nil
}

func (v *fakeVendor) GetUsage(ctx context.Context, projectID string, from, to time.Time) (trafficdomain.UsageReport, error) {
	if v.err != nil {
		return trafficdomain.UsageReport{}, v.err
	}
	if v.onGetUsage != nil {
		v.onGetUsage()
	}
	idx := v.calls
	if idx >= len(v.readings) {
		idx = len(v.readings) - 1
	}
	v.calls++
	report := trafficdomain.UsageReport{
		ProjectID: projectID,
		Buckets: []trafficdomain.UsageBucket{
			{Date: from, Hits: v.readings[idx]},
		},
	}
	if idx < len(v.visits) {
		report.Buckets[0].Visits = v.visits[idx]
	}
	return report, nil
}

func (v *fakeVendor) SetSpeed(ctx context.Context, projectID string, speed int) error {
	v.speedCalls = append(v.speedCalls, speed)
	return nil
}

type fixture struct {
	db       *gorm.DB
	clock    *clock.FakeClock
	node     *snowflake.Node
	vendor   *fakeVendor
	svc      domain.Service
	account  *accountdomain.Account
	campaign *campaigndomain.Campaign
}

func newFixture(t *testing.T, credits int64, vendor *fakeVendor) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&accountdomain.Account{}, &campaigndomain.Campaign{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	account := &accountdomain.Account{
		ID:            node.Generate(),
		Name:          "acme",
		Credits:       credits,
		AvailableHits: credits,
	}
	require.NoError(t, db.Create(account).Error)

	projectID := "proj-1"
	campaign := &campaigndomain.Campaign{
		ID:                     node.Generate(),
		AccountID:              account.ID,
		Name:                   "spring push",
		VendorProjectID:        &projectID,
		Status:                 campaigndomain.StatusActive,
		CreditDeductionEnabled: true,
		Speed:                  100,
		CreatedAt:              fake.Now().AddDate(0, 0, -30),
	}
	require.NoError(t, db.Create(campaign).Error)

	cfg := config.Config{}
	cfg.Billing.CreditsPerHit = 1
	cfg.Scheduler.BatchSize = 100

	svc := New(Params{
		Config:      cfg,
		DB:          db,
		Clock:       fake,
		AccountRepo: accountrepo.Provide(),
		Vendor:      vendor,
	})

	return &fixture{
		db:       db,
		clock:    fake,
		node:     node,
		vendor:   vendor,
		svc:      svc,
		account:  account,
		campaign: campaign,
	}
}

func (f *fixture) reloadAccount(t *testing.T) *accountdomain.Account {
	t.Helper()
	var account accountdomain.Account
	require.NoError(t, f.db.First(&account, "id = ?", f.account.ID).Error)
	return &account
}

func (f *fixture) reloadCampaign(t *testing.T) *campaigndomain.Campaign {
	t.Helper()
	var campaign campaigndomain.Campaign
	require.NoError(t, f.db.First(&campaign, "id = ?", f.campaign.ID).Error)
	return &campaign
}

func TestMonotonicChargingAcrossReadings(t *testing.T) {
	vendor := &fakeVendor{readings: []int64{0, 100, 250, 250, 400}}
	f := newFixture(t, 1000, vendor)
	ctx := context.Background()

	wantOutcomes := []domain.Outcome{
		domain.OutcomeBaseline,
		domain.OutcomeCharged,
		domain.OutcomeCharged,
		domain.OutcomeNoNewUsage,
		domain.OutcomeCharged,
	}
	wantCharges := []int64{0, 100, 150, 0, 150}

	for i := range vendor.readings {
		f.clock.Advance(time.Hour)
		result, err := f.svc.ReconcileOne(ctx, f.campaign.ID.String())
		require.NoError(t, err, "pass %d", i)
		assert.Equal(t, wantOutcomes[i], result.Outcome, "pass %d", i)
		assert.Equal(t, wantCharges[i], result.CreditsCharged, "pass %d", i)
	}

	account := f.reloadAccount(t)
	assert.Equal(t, int64(600), account.Credits)
	assert.Equal(t, int64(600), account.AvailableHits)

	campaign := f.reloadCampaign(t)
	assert.Equal(t, int64(400), campaign.TotalHitsCounted)
}

func TestBaselinePassNeverCharges(t *testing.T) {
	vendor := &fakeVendor{readings: []int64{5000}}
	f := newFixture(t, 100, vendor)

	result, err := f.svc.ReconcileOne(context.Background(), f.campaign.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeBaseline, result.Outcome)
	assert.Zero(t, result.CreditsCharged)

	account := f.reloadAccount(t)
	assert.Equal(t, int64(100), account.Credits)

	campaign := f.reloadCampaign(t)
	assert.Equal(t, int64(5000), campaign.TotalHitsCounted)
	assert.NotNil(t, campaign.LastStatsCheck)
}

func TestIdempotentRepoll(t *testing.T) {
	vendor := &fakeVendor{readings: []int64{0, 200, 200}}
	f := newFixture(t, 1000, vendor)
	ctx := context.Background()

	_, err := f.svc.ReconcileOne(ctx, f.campaign.ID.String())
	require.NoError(t, err)
	first, err := f.svc.ReconcileOne(ctx, f.campaign.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(200), first.CreditsCharged)

	second, err := f.svc.ReconcileOne(ctx, f.campaign.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoNewUsage, second.Outcome)
	assert.Zero(t, second.CreditsCharged)

	account := f.reloadAccount(t)
	assert.Equal(t, int64(800), account.Credits)
}

func TestInsolvencyAutoPause(t *testing.T) {
	vendor := &fakeVendor{readings: []int64{0, 15}}
	f := newFixture(t, 10, vendor)
	ctx := context.Background()

	_, err := f.svc.ReconcileOne(ctx, f.campaign.ID.String())
	require.NoError(t, err)

	result, err := f.svc.ReconcileOne(ctx, f.campaign.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAutoPaused, result.Outcome)
	assert.Zero(t, result.CreditsCharged)

	account := f.reloadAccount(t)
	assert.Equal(t, int64(10), account.Credits, "no partial debit")

	campaign := f.reloadCampaign(t)
	assert.Equal(t, campaigndomain.StatusPaused, campaign.Status)
	assert.Equal(t, campaigndomain.PauseReasonInsolvent, campaign.PauseReason)
	assert.False(t, campaign.CreditDeductionEnabled)
	assert.Equal(t, int64(0), campaign.TotalHitsCounted, "checkpoint untouched")
	assert.Equal(t, []int{0}, vendor.speedCalls)
}

func TestVendorOutageMutatesNothing(t *testing.T) {
	vendor := &fakeVendor{readings: []int64{0, 300}}
	f := newFixture(t, 1000, vendor)
	ctx := context.Background()

	_, err := f.svc.ReconcileOne(ctx, f.campaign.ID.String())
	require.NoError(t, err)
	before := f.reloadCampaign(t)

	vendor.err = trafficdomain.ErrUnavailable
	_, err = f.svc.ReconcileOne(ctx, f.campaign.ID.String())
	assert.ErrorIs(t, err, trafficdomain.ErrUnavailable)

	after := f.reloadCampaign(t)
	assert.Equal(t, before.TotalHitsCounted, after.TotalHitsCounted)
	account := f.reloadAccount(t)
	assert.Equal(t, int64(1000), account.Credits)

	// Next successful pass still computes the delta against the old
	// checkpoint.
	vendor.err = nil
	result, err := f.svc.ReconcileOne(ctx, f.campaign.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCharged, result.Outcome)
	assert.Equal(t, int64(300), result.CreditsCharged)
}

func TestVendorDataInvalidAdvancesWatermarkOnly(t *testing.T) {
	vendor := &fakeVendor{readings: []int64{0}}
	f := newFixture(t, 1000, vendor)
	ctx := context.Background()

	_, err := f.svc.ReconcileOne(ctx, f.campaign.ID.String())
	require.NoError(t, err)
	before := f.reloadCampaign(t)

	f.clock.Advance(time.Hour)
	vendor.err = trafficdomain.ErrInvalidData
	result, err := f.svc.ReconcileOne(ctx, f.campaign.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDataInvalid, result.Outcome)

	after := f.reloadCampaign(t)
	assert.Equal(t, before.TotalHitsCounted, after.TotalHitsCounted)
	require.NotNil(t, after.LastStatsCheck)
	assert.True(t, after.LastStatsCheck.After(*before.LastStatsCheck))
}

func TestDataInvalidFirstPassLeavesCampaignUnbaselined(t *testing.T) {
	vendor := &fakeVendor{readings: []int64{5000}, err: trafficdomain.ErrInvalidData}
	f := newFixture(t, 10000, vendor)
	ctx := context.Background()

	result, err := f.svc.ReconcileOne(ctx, f.campaign.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDataInvalid, result.Outcome)

	campaign := f.reloadCampaign(t)
	assert.Nil(t, campaign.LastStatsCheck, "watermark must not advance before baseline")

	// The first good read still baselines: pre-tracking hits are adopted,
	// never billed.
	vendor.err = nil
	f.clock.Advance(time.Hour)
	result, err = f.svc.ReconcileOne(ctx, f.campaign.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeBaseline, result.Outcome)
	assert.Zero(t, result.CreditsCharged)

	account := f.reloadAccount(t)
	assert.Equal(t, int64(10000), account.Credits)

	campaign = f.reloadCampaign(t)
	assert.Equal(t, int64(5000), campaign.TotalHitsCounted)
}

func TestConcurrentCheckpointMoveAbortsWithoutCharge(t *testing.T) {
	vendor := &fakeVendor{readings: []int64{0, 200}}
	f := newFixture(t, 1000, vendor)
	ctx := context.Background()

	_, err := f.svc.ReconcileOne(ctx, f.campaign.ID.String())
	require.NoError(t, err)

	// A concurrent writer moves the checkpoint after this pass loaded the
	// campaign but before it charges.
	vendor.onGetUsage = func() {
		require.NoError(t, f.db.Model(&campaigndomain.Campaign{}).
			Where("id = ?", f.campaign.ID).
			Update("total_hits_counted", 50).Error)
	}

	_, err = f.svc.ReconcileOne(ctx, f.campaign.ID.String())
	assert.ErrorIs(t, err, domain.ErrPersistenceConflict)

	account := f.reloadAccount(t)
	assert.Equal(t, int64(1000), account.Credits, "debit rolled back with the checkpoint")

	campaign := f.reloadCampaign(t)
	assert.Equal(t, int64(50), campaign.TotalHitsCounted, "concurrent write wins")
}

func TestSkippedWhenNotEligible(t *testing.T) {
	vendor := &fakeVendor{readings: []int64{100}}
	f := newFixture(t, 1000, vendor)
	ctx := context.Background()

	require.NoError(t, f.db.Model(f.campaign).Update("credit_deduction_enabled", false).Error)

	result, err := f.svc.ReconcileOne(ctx, f.campaign.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSkipped, result.Outcome)
	assert.Zero(t, vendor.calls)
}

func TestReconcileAllIsolatesFailures(t *testing.T) {
	vendor := &fakeVendor{readings: []int64{0}}
	f := newFixture(t, 1000, vendor)
	ctx := context.Background()

	// Second campaign whose vendor lookups will fail alongside a healthy
	// one.
	projectID := "proj-2"
	broken := &campaigndomain.Campaign{
		ID:                     f.node.Generate(),
		AccountID:              f.account.ID,
		Name:                   "broken",
		VendorProjectID:        &projectID,
		Status:                 campaigndomain.StatusActive,
		CreditDeductionEnabled: true,
		CreatedAt:              f.clock.Now().AddDate(0, 0, -10),
	}
	require.NoError(t, f.db.Create(broken).Error)

	summary, err := f.svc.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalCampaigns)
	assert.Equal(t, 2, summary.Processed)
	assert.Zero(t, summary.Errors)

	vendor.err = trafficdomain.ErrUnavailable
	summary, err = f.svc.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Errors)
	assert.Zero(t, summary.Processed)
}

func TestSweepArchiveRespectsRetention(t *testing.T) {
	vendor := &fakeVendor{readings: []int64{0}}
	f := newFixture(t, 1000, vendor)
	ctx := context.Background()
	now := f.clock.Now()

	oldArchive := now.AddDate(0, 0, -8)
	recentArchive := now.AddDate(0, 0, -3)

	old := &campaigndomain.Campaign{
		ID:         f.node.Generate(),
		AccountID:  f.account.ID,
		Name:       "old",
		Status:     campaigndomain.StatusArchived,
		ArchivedAt: &oldArchive,
	}
	recent := &campaigndomain.Campaign{
		ID:         f.node.Generate(),
		AccountID:  f.account.ID,
		Name:       "recent",
		Status:     campaigndomain.StatusArchived,
		ArchivedAt: &recentArchive,
	}
	require.NoError(t, f.db.Create(old).Error)
	require.NoError(t, f.db.Create(recent).Error)

	result, err := f.svc.SweepArchive(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, result.MarkedEligible)

	var reloaded campaigndomain.Campaign
	require.NoError(t, f.db.First(&reloaded, "id = ?", old.ID).Error)
	assert.True(t, reloaded.DeleteEligible)
	require.NotNil(t, reloaded.DeleteEligibleAt)

	var reloadedRecent campaigndomain.Campaign
	require.NoError(t, f.db.First(&reloadedRecent, "id = ?", recent.ID).Error)
	assert.False(t, reloadedRecent.DeleteEligible)
}

func TestPurgeExpiredRemovesRecords(t *testing.T) {
	vendor := &fakeVendor{readings: []int64{0}}
	f := newFixture(t, 1000, vendor)
	ctx := context.Background()
	now := f.clock.Now()

	archivedAt := now.AddDate(0, 0, -20)
	eligibleAt := now.AddDate(0, 0, -10)
	expired := &campaigndomain.Campaign{
		ID:               f.node.Generate(),
		AccountID:        f.account.ID,
		Name:             "expired",
		Status:           campaigndomain.StatusArchived,
		ArchivedAt:       &archivedAt,
		DeleteEligible:   true,
		DeleteEligibleAt: &eligibleAt,
	}
	require.NoError(t, f.db.Create(expired).Error)

	result, err := f.svc.PurgeExpired(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Purged)

	err = f.db.First(&campaigndomain.Campaign{}, "id = ?", expired.ID).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
