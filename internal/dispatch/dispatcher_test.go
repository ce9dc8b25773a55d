package dispatch

import (
	"sync"
	"testing"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textUpdate(id int, chatID int64) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		Message:  &tgbotapi.Message{Chat: tgbotapi.Chat{ID: chatID}, Text: "x"},
	}
}

func TestDispatchKeepsPerChatOrder(t *testing.T) {
	var mu sync.Mutex
	seen := map[int64][]int{}

	d := New(4, 16, func(u tgbotapi.Update) {
		mu.Lock()
		defer mu.Unlock()
		seen[u.Message.Chat.ID] = append(seen[u.Message.Chat.ID], u.UpdateID)
	})

	id := 0
	for i := 0; i < 50; i++ {
		for chat := int64(1); chat <= 5; chat++ {
			id++
			require.True(t, d.Dispatch(textUpdate(id, chat)))
		}
	}
	d.Stop()

	require.Len(t, seen, 5)
	for chat, ids := range seen {
		require.Len(t, ids, 50, "chat %d", chat)
		for i := 1; i < len(ids); i++ {
			assert.Less(t, ids[i-1], ids[i], "chat %d", chat)
		}
	}
}

func TestDispatchAfterStop(t *testing.T) {
	d := New(1, 1, func(tgbotapi.Update) {})
	d.Stop()
	d.Stop()
	assert.False(t, d.Dispatch(textUpdate(1, 1)))
}

func TestPanicDoesNotKillWorker(t *testing.T) {
	var handled int
	d := New(1, 4, func(u tgbotapi.Update) {
		if u.UpdateID == 1 {
			panic("boom")
		}
		handled++
	})
	d.Dispatch(textUpdate(1, 7))
	d.Dispatch(textUpdate(2, 7))
	d.Stop()
	assert.Equal(t, 1, handled)
}

func TestChatID(t *testing.T) {
	_, ok := ChatID(tgbotapi.Update{})
	assert.False(t, ok)

	id, ok := ChatID(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{From: &tgbotapi.User{ID: 42}}})
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	id, ok = ChatID(textUpdate(1, -100))
	assert.True(t, ok)
	assert.Equal(t, int64(-100), id)
}
