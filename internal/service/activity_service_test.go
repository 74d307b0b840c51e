package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-coin-api/internal/chain"
	"github.com/noah-isme/campus-coin-api/internal/dto"
	"github.com/noah-isme/campus-coin-api/internal/models"
	"github.com/noah-isme/campus-coin-api/internal/repository"
)

func newActivityFixture(t *testing.T) (*gorm.DB, *chain.MemoryGateway, ActivityService) {
	t.Helper()
	db := setupSvcDB(t)
	gateway := chain.NewMemoryGateway("0xAuthority")
	svc := NewActivityService(
		repository.NewActivityRepository(db),
		gateway,
		validator.New(validator.WithRequiredStructEnabled()),
		zerolog.Nop(),
	)
	return db, gateway, svc
}

func validCreateRequest() dto.CreateActivityRequest {
	return dto.CreateActivityRequest{
		Name:            "Tree Planting",
		Description:     "Plant trees around campus",
		StartDate:       time.Now().Add(time.Hour),
		EndDate:         time.Now().Add(48 * time.Hour),
		RewardCoin:      5,
		MaxParticipants: 30,
	}
}

func TestCreateActivity(t *testing.T) {
	_, _, svc := newActivityFixture(t)

	activity, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	require.NotZero(t, activity.ID)
	require.True(t, activity.IsActive)
	require.Nil(t, activity.OnChainActivityID)
}

func TestCreateActivitySanitizesMarkup(t *testing.T) {
	_, _, svc := newActivityFixture(t)

	req := validCreateRequest()
	req.Name = "<script>alert(1)</script>Tree Planting"
	req.Description = "Plant <b>trees</b>"

	activity, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "Tree Planting", activity.Name)
	require.Equal(t, "Plant trees", activity.Description)
}

func TestCreateActivityRejectsInvertedWindow(t *testing.T) {
	_, _, svc := newActivityFixture(t)

	req := validCreateRequest()
	req.StartDate, req.EndDate = req.EndDate, req.StartDate

	_, err := svc.Create(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidActivityWindow)
}

func TestCreateActivityValidatesFields(t *testing.T) {
	_, _, svc := newActivityFixture(t)

	req := validCreateRequest()
	req.RewardCoin = 0

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	require.IsType(t, validator.ValidationErrors{}, err)
}

func TestCreateActivityRegistersOnChain(t *testing.T) {
	_, gateway, svc := newActivityFixture(t)
	ctx := context.Background()

	req := validCreateRequest()
	req.RegisterOnChain = true

	activity, err := svc.Create(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, activity.OnChainActivityID)

	onChain, err := gateway.Registry().GetActivity(*activity.OnChainActivityID)
	require.NoError(t, err)
	require.Equal(t, activity.Name, onChain.Name)
}

func TestUpdateActivity(t *testing.T) {
	_, _, svc := newActivityFixture(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	name := "Tree Planting Week"
	reward := 8
	updated, err := svc.Update(ctx, created.ID, dto.UpdateActivityRequest{Name: &name, RewardCoin: &reward})
	require.NoError(t, err)
	require.Equal(t, "Tree Planting Week", updated.Name)
	require.Equal(t, 8, updated.RewardCoin)
	require.Equal(t, created.Description, updated.Description)

	badEnd := created.StartDate.Add(-time.Hour)
	_, err = svc.Update(ctx, created.ID, dto.UpdateActivityRequest{EndDate: &badEnd})
	require.ErrorIs(t, err, ErrInvalidActivityWindow)

	_, err = svc.Update(ctx, 999, dto.UpdateActivityRequest{Name: &name})
	require.ErrorIs(t, err, ErrActivityNotFound)
}

func TestDeactivateHidesFromActiveList(t *testing.T) {
	_, _, svc := newActivityFixture(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, svc.Deactivate(ctx, created.ID))

	active, err = svc.ListActive(ctx)
	require.NoError(t, err)
	require.Empty(t, active)

	// The row survives for existing registrations.
	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	require.ErrorIs(t, svc.Deactivate(ctx, 999), ErrActivityNotFound)
}

func TestListOpenExcludesClosedWindows(t *testing.T) {
	db, _, svc := newActivityFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	closed := validCreateRequest()
	closed.StartDate = time.Now().Add(-48 * time.Hour)
	closed.EndDate = time.Now().Add(-24 * time.Hour)
	require.NoError(t, db.Create(&models.Activity{
		Name:            closed.Name,
		Description:     closed.Description,
		StartDate:       closed.StartDate,
		EndDate:         closed.EndDate,
		RewardCoin:      closed.RewardCoin,
		MaxParticipants: closed.MaxParticipants,
		IsActive:        true,
	}).Error)

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)

	open, err := svc.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
}

func TestAssignClasses(t *testing.T) {
	_, _, svc := newActivityFixture(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	updated, err := svc.AssignClasses(ctx, created.ID, "CNTT1,CNTT2")
	require.NoError(t, err)
	require.Equal(t, "CNTT1,CNTT2", updated.AllowedClasses)
	require.True(t, updated.ClassAllowed("CNTT2"))
	require.False(t, updated.ClassAllowed("CNTT3"))

	_, err = svc.AssignClasses(ctx, 999, "CNTT1")
	require.ErrorIs(t, err, ErrActivityNotFound)
}
