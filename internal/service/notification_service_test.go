package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/foodloop/foodloop-api/internal/repository"
)

func newNotificationFixture(t *testing.T) NotificationService {
	t.Helper()
	repo := repository.NewNotificationRepository(newTestDB(t))
	return NewNotificationService(repo, nil, "foodloop", zerolog.Nop())
}

func TestNotifyPersistsAndListReturnsNewestFirst(t *testing.T) {
	svc := newNotificationFixture(t)

	svc.Notify(context.Background(), "canteen-1", "surplus_claimed", "Helping Hands claimed your surplus")
	svc.Notify(context.Background(), "canteen-1", "pickup_verified", "pickup confirmed")
	svc.Notify(context.Background(), "ngo-1", "driver_assigned", "Asha will deliver")

	notifications, err := svc.List(context.Background(), canteen, 10, 0)
	require.NoError(t, err)
	require.Len(t, notifications, 2)
	for _, notification := range notifications {
		require.Equal(t, "canteen-1", notification.UserID)
		require.False(t, notification.Read)
	}
}

func TestMarkReadIsScopedToOwner(t *testing.T) {
	svc := newNotificationFixture(t)

	svc.Notify(context.Background(), "canteen-1", "surplus_claimed", "claimed")

	notifications, err := svc.List(context.Background(), canteen, 10, 0)
	require.NoError(t, err)
	require.Len(t, notifications, 1)

	// Someone else's id cannot flip the flag.
	_, err = svc.MarkRead(context.Background(), ngo, notifications[0].ID)
	require.ErrorIs(t, err, ErrNotificationNotFound)

	updated, err := svc.MarkRead(context.Background(), canteen, notifications[0].ID)
	require.NoError(t, err)
	require.True(t, updated.Read)

	// Marking twice is harmless.
	again, err := svc.MarkRead(context.Background(), canteen, notifications[0].ID)
	require.NoError(t, err)
	require.True(t, again.Read)
}
