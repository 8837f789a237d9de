package service

import (
	"context"
	"strings"

	accountdomain "github.com/boostlane/boostlane/internal/account/domain"
	"github.com/boostlane/boostlane/internal/campaign/domain"
	"github.com/boostlane/boostlane/internal/clock"
	"github.com/boostlane/boostlane/internal/config"
	trafficdomain "github.com/boostlane/boostlane/internal/traffic/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultSpeed = 100

type Params struct {
	fx.In

	Config      config.Config
	DB          *gorm.DB
	Node        *snowflake.Node
	Clock       clock.Clock
	Repository  domain.Repository
	AccountRepo accountdomain.Repository
	Vendor      trafficdomain.Vendor
}

type campaignService struct {
	cfg         config.Config
	db          *gorm.DB
	node        *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	accountRepo accountdomain.Repository
	vendor      trafficdomain.Vendor
	log         *zap.Logger
}

// New constructs the campaign lifecycle service.
func New(p Params) domain.Service {
	return &campaignService{
		cfg:         p.Config,
		db:          p.DB,
		node:        p.Node,
		clock:       p.Clock,
		repo:        p.Repository,
		accountRepo: p.AccountRepo,
		vendor:      p.Vendor,
		log:         zap.L().Named("campaign"),
	}
}

// isTransitionAllowed encodes the lifecycle table. Archived records only
// leave through restore or the purge path in Archive.
func isTransitionAllowed(current, target domain.Status) bool {
	switch target {
	case domain.StatusPaused:
		return current == domain.StatusCreated || current == domain.StatusActive || current == domain.StatusPaused
	case domain.StatusActive:
		return current == domain.StatusCreated || current == domain.StatusPaused
	case domain.StatusArchived:
		return current != domain.StatusArchived
	default:
		return false
	}
}

func (s *campaignService) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.Speed < 0 {
		return nil, domain.ErrInvalidSpeed
	}
	speed := req.Speed
	if speed == 0 {
		speed = defaultSpeed
	}

	accountID, err := accountdomain.ParseID(req.AccountID)
	if err != nil {
		return nil, domain.ErrInvalidAccount
	}
	if _, err := s.accountRepo.FindByID(ctx, s.db, accountID); err != nil {
		return nil, domain.ErrInvalidAccount
	}

	campaign := &domain.Campaign{
		ID:                     s.node.Generate(),
		AccountID:              accountID,
		Name:                   name,
		Status:                 domain.StatusCreated,
		CreditDeductionEnabled: true,
		Speed:                  speed,
		Metadata:               datatypes.JSONMap(req.Metadata),
	}

	// Provisioning on the vendor side is best-effort: a campaign without
	// a project simply has nothing to reconcile yet.
	projectID, err := s.vendor.CreateProject(ctx, trafficdomain.CreateProjectRequest{
		Name:      name,
		TargetURL: req.TargetURL,
		Speed:     speed,
	})
	if err != nil {
		s.log.Warn("vendor project creation failed",
			zap.String("campaign_name", name),
			zap.Error(err),
		)
	} else {
		campaign.VendorProjectID = &projectID
	}

	if err := s.repo.Insert(ctx, s.db, campaign); err != nil {
		return nil, err
	}

	s.log.Info("campaign created",
		zap.String("campaign_id", campaign.ID.String()),
		zap.String("account_id", accountID.String()),
	)
	return toResponse(campaign), nil
}

func (s *campaignService) GetByID(ctx context.Context, id string) (*domain.Response, error) {
	campaign, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return toResponse(campaign), nil
}

func (s *campaignService) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	filter := domain.ListFilter{Status: domain.Status(req.Status)}
	if req.AccountID != "" {
		accountID, err := accountdomain.ParseID(req.AccountID)
		if err != nil {
			return nil, domain.ErrInvalidAccount
		}
		filter.AccountID = &accountID
	}

	campaigns, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	responses := make([]domain.Response, 0, len(campaigns))
	for i := range campaigns {
		responses = append(responses, *toResponse(&campaigns[i]))
	}
	return responses, nil
}

func (s *campaignService) Pause(ctx context.Context, id string, reason domain.PauseReason) (*domain.Response, error) {
	campaign, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isTransitionAllowed(campaign.Status, domain.StatusPaused) {
		return nil, domain.ErrInvalidTransition
	}
	if reason == domain.PauseReasonNone {
		reason = domain.PauseReasonUserRequested
	}

	campaign.Status = domain.StatusPaused
	if reason == domain.PauseReasonInsolvent {
		campaign.PauseReason = domain.PauseReasonInsolvent
		campaign.CreditDeductionEnabled = false
	} else if campaign.PauseReason != domain.PauseReasonInsolvent {
		// A user pause on top of an insolvency pause keeps the stronger
		// reason: deduction stays off until a resume after top-up.
		campaign.PauseReason = reason
	}
	if err := s.repo.Update(ctx, s.db, campaign); err != nil {
		return nil, err
	}

	s.syncSpeed(ctx, campaign, 0)
	s.log.Info("campaign paused",
		zap.String("campaign_id", campaign.ID.String()),
		zap.String("reason", string(campaign.PauseReason)),
	)
	return toResponse(campaign), nil
}

func (s *campaignService) Resume(ctx context.Context, id string) (*domain.Response, error) {
	campaign, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isTransitionAllowed(campaign.Status, domain.StatusActive) {
		return nil, domain.ErrInvalidTransition
	}

	account, err := s.accountRepo.FindByID(ctx, s.db, campaign.AccountID)
	if err != nil {
		return nil, err
	}
	if account.Credits <= 0 {
		return nil, domain.ErrInsolventAccount
	}

	campaign.Status = domain.StatusActive
	campaign.PauseReason = domain.PauseReasonNone
	campaign.CreditDeductionEnabled = true
	if err := s.repo.Update(ctx, s.db, campaign); err != nil {
		return nil, err
	}

	s.syncSpeed(ctx, campaign, campaign.Speed)
	s.log.Info("campaign resumed", zap.String("campaign_id", campaign.ID.String()))
	return toResponse(campaign), nil
}

func (s *campaignService) Archive(ctx context.Context, id string) (*domain.Response, error) {
	campaign, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if campaign.Status == domain.StatusArchived {
		if !campaign.DeleteEligible {
			// Repeated delete requests inside the grace window are
			// idempotent.
			return toResponse(campaign), nil
		}
		// Second delete after the sweep marked it eligible: purge.
		if err := s.repo.Delete(ctx, s.db, campaign.ID); err != nil {
			return nil, err
		}
		s.log.Info("campaign purged", zap.String("campaign_id", campaign.ID.String()))
		return toResponse(campaign), nil
	}

	now := s.clock.Now()
	campaign.StatusBeforeArchive = campaign.Status
	campaign.Status = domain.StatusArchived
	campaign.ArchivedAt = &now
	if err := s.repo.Update(ctx, s.db, campaign); err != nil {
		return nil, err
	}

	s.syncSpeed(ctx, campaign, 0)
	s.log.Info("campaign archived", zap.String("campaign_id", campaign.ID.String()))
	return toResponse(campaign), nil
}

func (s *campaignService) Restore(ctx context.Context, id string) (*domain.Response, error) {
	campaign, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign.Status != domain.StatusArchived {
		return nil, domain.ErrInvalidTransition
	}

	restored := campaign.StatusBeforeArchive
	if restored != domain.StatusActive && restored != domain.StatusPaused && restored != domain.StatusCreated {
		// Unknown prior state restores as paused so nothing starts
		// billing without an explicit resume.
		restored = domain.StatusPaused
	}

	campaign.Status = restored
	campaign.StatusBeforeArchive = ""
	campaign.ArchivedAt = nil
	campaign.DeleteEligible = false
	campaign.DeleteEligibleAt = nil
	if err := s.repo.Update(ctx, s.db, campaign); err != nil {
		return nil, err
	}

	if restored == domain.StatusActive {
		s.syncSpeed(ctx, campaign, campaign.Speed)
	}
	s.log.Info("campaign restored",
		zap.String("campaign_id", campaign.ID.String()),
		zap.String("status", string(restored)),
	)
	return toResponse(campaign), nil
}

func (s *campaignService) load(ctx context.Context, id string) (*domain.Campaign, error) {
	campaignID, err := domain.ParseID(id)
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	return s.repo.FindByID(ctx, s.db, campaignID)
}

// syncSpeed pushes the throughput change to the vendor. Local state is
// authoritative; a vendor failure here is logged and nothing more.
func (s *campaignService) syncSpeed(ctx context.Context, campaign *domain.Campaign, speed int) {
	if campaign.VendorProjectID == nil {
		return
	}
	if err := s.vendor.SetSpeed(ctx, *campaign.VendorProjectID, speed); err != nil {
		s.log.Warn("vendor speed sync failed",
			zap.String("campaign_id", campaign.ID.String()),
			zap.Int("speed", speed),
			zap.Error(err),
		)
	}
}

func toResponse(campaign *domain.Campaign) *domain.Response {
	return &domain.Response{
		ID:                     campaign.ID.String(),
		AccountID:              campaign.AccountID.String(),
		Name:                   campaign.Name,
		VendorProjectID:        campaign.VendorProjectID,
		Status:                 campaign.Status,
		PauseReason:            campaign.PauseReason,
		ArchivedAt:             campaign.ArchivedAt,
		DeleteEligible:         campaign.DeleteEligible,
		DeleteEligibleAt:       campaign.DeleteEligibleAt,
		CreditDeductionEnabled: campaign.CreditDeductionEnabled,
		TotalHitsCounted:       campaign.TotalHitsCounted,
		TotalVisitsCounted:     campaign.TotalVisitsCounted,
		LastStatsCheck:         campaign.LastStatsCheck,
		Speed:                  campaign.Speed,
		CreatedAt:              campaign.CreatedAt,
		UpdatedAt:              campaign.UpdatedAt,
	}
}
