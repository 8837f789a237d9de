package service

import (
	"context"
	"testing"

	"github.com/boostlane/boostlane/internal/account/domain"
	"github.com/boostlane/boostlane/internal/account/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Account{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(Params{DB: db, Node: node, Repository: repository.Provide()}), db
}

func TestCreateAndTopUp(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	account, err := svc.Create(ctx, domain.CreateRequest{Name: "acme", Credits: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(50), account.Credits)
	assert.Equal(t, int64(50), account.AvailableHits)

	topped, err := svc.TopUp(ctx, domain.TopUpRequest{ID: account.ID, Credits: 25})
	require.NoError(t, err)
	assert.Equal(t, int64(75), topped.Credits)
	assert.Equal(t, int64(75), topped.AvailableHits)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateRequest{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreateRequest{Name: "acme", Credits: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidCredits)
}

func TestCreateDuplicateName(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateRequest{Name: "acme", Credits: 10})
	require.NoError(t, err)

	_, err = svc.Create(ctx, domain.CreateRequest{Name: "acme", Credits: 10})
	assert.ErrorIs(t, err, domain.ErrNameTaken)
}

func TestTopUpValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.TopUp(ctx, domain.TopUpRequest{ID: "bogus", Credits: 10})
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	account, err := svc.Create(ctx, domain.CreateRequest{Name: "acme"})
	require.NoError(t, err)

	_, err = svc.TopUp(ctx, domain.TopUpRequest{ID: account.ID, Credits: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidCredits)
}

func TestGetByIDNotFound(t *testing.T) {
	svc, _ := newService(t)

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	_, err = svc.GetByID(context.Background(), node.Generate().String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDebitForUsageIsAllOrNothing(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	repo := repository.Provide()

	account, err := svc.Create(ctx, domain.CreateRequest{Name: "acme", Credits: 10})
	require.NoError(t, err)
	id, err := domain.ParseID(account.ID)
	require.NoError(t, err)

	ok, err := repo.DebitForUsage(ctx, db, id, 15, 15)
	require.NoError(t, err)
	assert.False(t, ok)

	reloaded, err := svc.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), reloaded.Credits, "no partial debit")

	ok, err = repo.DebitForUsage(ctx, db, id, 10, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	reloaded, err = svc.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Zero(t, reloaded.Credits)
	assert.Zero(t, reloaded.AvailableHits)
}
