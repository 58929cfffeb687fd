package service

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/foodloop/foodloop-api/internal/dto"
	"github.com/foodloop/foodloop-api/internal/models"
	"github.com/foodloop/foodloop-api/internal/repository"
)

func newDirectoryFixture(t *testing.T) (DirectoryService, *redis.Client) {
	t.Helper()

	db := newTestDB(t)
	users := []models.User{
		{ID: "canteen-1", Name: "Priya", Role: "canteen", CanteenName: "Main Canteen"},
		{ID: "ngo-1", Name: "Helping Hands", Role: "ngo", OrganizationName: "Helping Hands Trust"},
		{ID: "driver-1", Name: "Asha", Role: "driver"},
		{ID: "driver-2", Name: "Ravi", Role: "volunteer"},
	}
	for i := range users {
		require.NoError(t, db.Create(&users[i]).Error)
	}

	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewDirectoryService(repository.NewUserRepository(db), client, "foodloop", validate, zerolog.Nop())
	return svc, client
}

func TestContactsFoldsLegacyVolunteerTag(t *testing.T) {
	svc, _ := newDirectoryFixture(t)

	contacts, err := svc.Contacts(context.Background(), canteen)
	require.NoError(t, err)
	require.Len(t, contacts, 3)

	roles := make(map[string]string, len(contacts))
	for _, contact := range contacts {
		roles[contact.ID] = contact.Role
	}
	require.Equal(t, "ngo", roles["ngo-1"])
	require.Equal(t, "driver", roles["driver-1"])
	// Stored tag is "volunteer"; the badge is already folded.
	require.Equal(t, "driver", roles["driver-2"])
}

func TestContactsExcludeOwnRoleCategory(t *testing.T) {
	svc, _ := newDirectoryFixture(t)

	contacts, err := svc.Contacts(context.Background(), driver)
	require.NoError(t, err)
	for _, contact := range contacts {
		require.NotEqual(t, "driver", contact.Role)
	}
}

func TestNearbyReturnsContactsWithinRadius(t *testing.T) {
	svc, _ := newDirectoryFixture(t)

	near := dto.LocationUpdateRequest{Latitude: 12.9716, Longitude: 77.5946}
	far := dto.LocationUpdateRequest{Latitude: 28.7041, Longitude: 77.1025}

	require.NoError(t, svc.UpsertLocation(context.Background(),
		Caller{ID: "ngo-1", Role: models.RoleNGO}, near))
	require.NoError(t, svc.UpsertLocation(context.Background(),
		Caller{ID: "driver-1", Role: models.RoleDriver}, far))

	results, err := svc.Nearby(context.Background(), canteen, dto.NearbyQuery{
		Latitude:  12.9720,
		Longitude: 77.5950,
		RadiusKm:  5,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "ngo-1", results[0].ID)
	require.Less(t, results[0].DistanceKm, 5.0)
}

func TestNearbyRoleFilter(t *testing.T) {
	svc, _ := newDirectoryFixture(t)

	spot := dto.LocationUpdateRequest{Latitude: 12.9716, Longitude: 77.5946}
	require.NoError(t, svc.UpsertLocation(context.Background(),
		Caller{ID: "ngo-1", Role: models.RoleNGO}, spot))
	require.NoError(t, svc.UpsertLocation(context.Background(),
		Caller{ID: "driver-2", Role: models.RoleDriver}, spot))

	// Asking for "volunteer" must return driver-category accounts.
	results, err := svc.Nearby(context.Background(), canteen, dto.NearbyQuery{
		Latitude:  12.9716,
		Longitude: 77.5946,
		RadiusKm:  5,
		Role:      "volunteer",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "driver-2", results[0].ID)
}

func TestUpsertLocationWritesBothStores(t *testing.T) {
	svc, client := newDirectoryFixture(t)

	require.NoError(t, svc.UpsertLocation(context.Background(),
		Caller{ID: "driver-1", Role: models.RoleDriver},
		dto.LocationUpdateRequest{Latitude: 12.9716, Longitude: 77.5946}))

	positions, err := client.GeoPos(context.Background(), "foodloop:geo:users", "driver-1").Result()
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.NotNil(t, positions[0])
	require.InDelta(t, 12.9716, positions[0].Latitude, 0.01)
}
