package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/foodloop/foodloop-api/internal/models"
	"github.com/foodloop/foodloop-api/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.FoodSurplus{},
		&models.Chat{},
		&models.Message{},
		&models.User{},
		&models.Notification{},
	))

	return db
}

func seedSurplus(t *testing.T, repo repository.SurplusRepository, status models.SurplusStatus) models.FoodSurplus {
	t.Helper()

	record := models.FoodSurplus{
		CanteenID:   "canteen-1",
		CanteenName: "Main Canteen",
		FoodName:    "Vegetable Biryani",
		Category:    "vegetarian",
		Quantity:    12,
		Unit:        "kg",
		ExpiryTime:  time.Now().Add(4 * time.Hour),
		Status:      status,
	}
	require.NoError(t, repo.Create(context.Background(), &record))
	return record
}

func TestClaimFirstWins(t *testing.T) {
	repo := repository.NewSurplusRepository(newTestDB(t))
	record := seedSurplus(t, repo, models.SurplusAvailable)
	now := time.Now()

	won, err := repo.Claim(context.Background(), record.ID, "ngo-1", "Helping Hands", now)
	require.NoError(t, err)
	require.True(t, won)

	// The same precondition no longer holds, so a second claimant loses.
	won, err = repo.Claim(context.Background(), record.ID, "ngo-2", "Food Bridge", now)
	require.NoError(t, err)
	require.False(t, won)

	stored, err := repo.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	require.Equal(t, models.SurplusClaimed, stored.Status)
	require.NotNil(t, stored.ClaimedBy)
	require.Equal(t, "ngo-1", *stored.ClaimedBy)
}

func TestClaimRejectsNonAvailable(t *testing.T) {
	repo := repository.NewSurplusRepository(newTestDB(t))
	record := seedSurplus(t, repo, models.SurplusCollected)

	won, err := repo.Claim(context.Background(), record.ID, "ngo-1", "Helping Hands", time.Now())
	require.NoError(t, err)
	require.False(t, won)
}

func TestAssignDriverFirstWinsAndCodeIsStable(t *testing.T) {
	repo := repository.NewSurplusRepository(newTestDB(t))
	record := seedSurplus(t, repo, models.SurplusAvailable)
	now := time.Now()

	won, err := repo.Claim(context.Background(), record.ID, "ngo-1", "Helping Hands", now)
	require.NoError(t, err)
	require.True(t, won)

	won, err = repo.AssignDriver(context.Background(), record.ID, "driver-1", "Asha", "4321", now)
	require.NoError(t, err)
	require.True(t, won)

	won, err = repo.AssignDriver(context.Background(), record.ID, "driver-2", "Ravi", "9999", now)
	require.NoError(t, err)
	require.False(t, won)

	stored, err := repo.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AssignedDriverID)
	require.Equal(t, "driver-1", *stored.AssignedDriverID)
	require.NotNil(t, stored.DeliveryCode)
	require.Equal(t, "4321", *stored.DeliveryCode)
}

func TestAssignDriverRequiresClaimedStatus(t *testing.T) {
	repo := repository.NewSurplusRepository(newTestDB(t))
	record := seedSurplus(t, repo, models.SurplusAvailable)

	won, err := repo.AssignDriver(context.Background(), record.ID, "driver-1", "Asha", "4321", time.Now())
	require.NoError(t, err)
	require.False(t, won)
}

func TestMarkDeliveredSetsStatusAndTimestampTogether(t *testing.T) {
	repo := repository.NewSurplusRepository(newTestDB(t))
	record := seedSurplus(t, repo, models.SurplusAvailable)
	now := time.Now()

	won, err := repo.Claim(context.Background(), record.ID, "ngo-1", "Helping Hands", now)
	require.NoError(t, err)
	require.True(t, won)

	require.NoError(t, repo.MarkPickupVerified(context.Background(), record.ID, now))
	require.NoError(t, repo.MarkDelivered(context.Background(), record.ID, now))

	stored, err := repo.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	require.Equal(t, models.SurplusCollected, stored.Status)
	require.NotNil(t, stored.DriverPickupVerifiedAt)
	require.NotNil(t, stored.NGODeliveryVerifiedAt)
	require.True(t, stored.Terminal())
}

func TestListByStatusFiltersSingleColumn(t *testing.T) {
	repo := repository.NewSurplusRepository(newTestDB(t))
	seedSurplus(t, repo, models.SurplusAvailable)
	seedSurplus(t, repo, models.SurplusAvailable)
	seedSurplus(t, repo, models.SurplusCollected)

	records, err := repo.ListByStatus(context.Background(), models.SurplusAvailable)
	require.NoError(t, err)
	require.Len(t, records, 2)
}
