package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foodloop/foodloop-api/internal/models"
	"github.com/foodloop/foodloop-api/internal/repository"
)

func seedChat(t *testing.T, repo repository.ChatRepository, a, b string) models.Chat {
	t.Helper()

	first, second := models.OrderPair(a, b)
	chat := models.Chat{
		ParticipantA: first,
		ParticipantB: second,
		ParticipantTypes: map[string]interface{}{
			a: "ngo",
			b: "canteen",
		},
		ParticipantNames: map[string]interface{}{
			a: "Helping Hands",
			b: "Main Canteen",
		},
		LastMessageAt: time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), &chat))
	return chat
}

func TestGetByPairIgnoresArgumentOrder(t *testing.T) {
	repo := repository.NewChatRepository(newTestDB(t))
	chat := seedChat(t, repo, "ngo-1", "canteen-1")

	found, err := repo.GetByPair(context.Background(), "ngo-1", "canteen-1")
	require.NoError(t, err)
	require.Equal(t, chat.ID, found.ID)

	swapped, err := repo.GetByPair(context.Background(), "canteen-1", "ngo-1")
	require.NoError(t, err)
	require.Equal(t, chat.ID, swapped.ID)
}

func TestAppendMessageUpdatesPreview(t *testing.T) {
	repo := repository.NewChatRepository(newTestDB(t))
	chat := seedChat(t, repo, "ngo-1", "canteen-1")

	message := models.Message{
		ChatID:     chat.ID,
		SenderID:   "ngo-1",
		SenderType: "ngo",
		Text:       "We can pick up at 5pm",
		CreatedAt:  time.Now().Add(time.Minute),
	}
	require.NoError(t, repo.AppendMessage(context.Background(), &message))

	stored, err := repo.GetByID(context.Background(), chat.ID)
	require.NoError(t, err)
	require.Equal(t, "We can pick up at 5pm", stored.LastMessage)
	require.WithinDuration(t, message.CreatedAt, stored.LastMessageAt, time.Second)
}

func TestListMessagesReturnsChronologicalWindow(t *testing.T) {
	repo := repository.NewChatRepository(newTestDB(t))
	chat := seedChat(t, repo, "ngo-1", "canteen-1")

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		message := models.Message{
			ChatID:     chat.ID,
			SenderID:   "ngo-1",
			SenderType: "ngo",
			Text:       "msg",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.AppendMessage(context.Background(), &message))
	}

	messages, err := repo.ListMessages(context.Background(), chat.ID, time.Time{}, 3)
	require.NoError(t, err)
	require.Len(t, messages, 3)

	// Latest three, oldest first.
	for i := 1; i < len(messages); i++ {
		require.True(t, messages[i].CreatedAt.After(messages[i-1].CreatedAt))
	}
	require.WithinDuration(t, base.Add(4*time.Minute), messages[2].CreatedAt, time.Second)
}

func TestListByParticipantOrdersByActivity(t *testing.T) {
	repo := repository.NewChatRepository(newTestDB(t))
	older := seedChat(t, repo, "ngo-1", "canteen-1")
	newer := seedChat(t, repo, "ngo-1", "driver-1")

	require.NoError(t, repo.AppendMessage(context.Background(), &models.Message{
		ChatID:     newer.ID,
		SenderID:   "driver-1",
		SenderType: "driver",
		Text:       "On my way",
		CreatedAt:  time.Now().Add(time.Hour),
	}))

	chats, err := repo.ListByParticipant(context.Background(), "ngo-1")
	require.NoError(t, err)
	require.Len(t, chats, 2)
	require.Equal(t, newer.ID, chats[0].ID)
	require.Equal(t, older.ID, chats[1].ID)
}
