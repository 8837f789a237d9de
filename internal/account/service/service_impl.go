package service

import (
	"context"
	"strings"

	"github.com/boostlane/boostlane/internal/account/domain"
	"github.com/boostlane/boostlane/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Node       *snowflake.Node
	Repository domain.Repository
}

type accountService struct {
	db   *gorm.DB
	node *snowflake.Node
	repo domain.Repository
	log  *zap.Logger
}

// New constructs the account service.
func New(p Params) domain.Service {
	return &accountService{
		db:   p.DB,
		node: p.Node,
		repo: p.Repository,
		log:  zap.L().Named("account"),
	}
}

func (s *accountService) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.Credits < 0 {
		return nil, domain.ErrInvalidCredits
	}

	account := &domain.Account{
		ID:            s.node.Generate(),
		Name:          name,
		Credits:       req.Credits,
		AvailableHits: req.Credits,
	}
	if err := s.repo.Insert(ctx, s.db, account); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrNameTaken
		}
		return nil, err
	}

	s.log.Info("account created",
		zap.String("account_id", account.ID.String()),
		zap.Int64("credits", account.Credits),
	)
	return toResponse(account), nil
}

func (s *accountService) GetByID(ctx context.Context, id string) (*domain.Response, error) {
	accountID, err := domain.ParseID(id)
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	account, err := s.repo.FindByID(ctx, s.db, accountID)
	if err != nil {
		return nil, err
	}
	return toResponse(account), nil
}

func (s *accountService) TopUp(ctx context.Context, req domain.TopUpRequest) (*domain.Response, error) {
	accountID, err := domain.ParseID(req.ID)
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	if req.Credits <= 0 {
		return nil, domain.ErrInvalidCredits
	}

	if err := s.repo.AddCredits(ctx, s.db, accountID, req.Credits, req.Credits); err != nil {
		return nil, err
	}

	account, err := s.repo.FindByID(ctx, s.db, accountID)
	if err != nil {
		return nil, err
	}

	s.log.Info("account topped up",
		zap.String("account_id", req.ID),
		zap.Int64("credits", req.Credits),
	)
	return toResponse(account), nil
}

func toResponse(account *domain.Account) *domain.Response {
	return &domain.Response{
		ID:            account.ID.String(),
		Name:          account.Name,
		Credits:       account.Credits,
		AvailableHits: account.AvailableHits,
		CreatedAt:     account.CreatedAt,
		UpdatedAt:     account.UpdatedAt,
	}
}
