package tickets_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/M0nstr1k/ds/internal/memstore"
	"github.com/M0nstr1k/ds/internal/models"
	"github.com/M0nstr1k/ds/internal/session"
	"github.com/M0nstr1k/ds/internal/tickets"
)

const (
	user   = int64(500)
	adminA = int64(1)
	adminB = int64(2)
)

func newRelay() (*tickets.Relay, *session.SessionManager, *memstore.Store) {
	store := memstore.New()
	sm := session.NewSessionManager()
	return tickets.NewRelay(store, sm, []int64{adminA, adminB}), sm, store
}

func TestOpenLogsFirstMessage(t *testing.T) {
	relay, _, _ := newRelay()
	ctx := context.Background()

	ticket, err := relay.Open(ctx, user, "Не пришел заказ")
	require.NoError(t, err)
	assert.Equal(t, models.TicketOpen, ticket.Status)

	msgs, err := relay.Messages(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, user, msgs[0].SenderID)

	_, err = relay.Open(ctx, user, "   ")
	assert.ErrorIs(t, err, tickets.ErrEmptyText)
}

func TestSecondClaimWinsRelay(t *testing.T) {
	relay, _, _ := newRelay()
	ctx := context.Background()

	ticket, err := relay.Open(ctx, user, "help")
	require.NoError(t, err)
	_, _, err = relay.Claim(ctx, adminA, ticket.ID)
	require.NoError(t, err)
	_, _, err = relay.Claim(ctx, adminB, ticket.ID)
	require.NoError(t, err)

	d, err := relay.Forward(ctx, user, "привет")
	require.NoError(t, err)
	assert.Equal(t, adminB, d.PartnerID)
	assert.Equal(t, session.RoleUser, d.From)

	// Вытесненный админ больше не участвует в переписке.
	d, err = relay.Forward(ctx, adminA, "я тут")
	require.NoError(t, err)
	assert.Zero(t, d.PartnerID)

	d, err = relay.Forward(ctx, adminB, "слушаю")
	require.NoError(t, err)
	assert.Equal(t, user, d.PartnerID)

	msgs, err := relay.Messages(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 4)
}

func TestForwardOutsideChat(t *testing.T) {
	relay, _, _ := newRelay()
	_, err := relay.Forward(context.Background(), user, "text")
	assert.ErrorIs(t, err, tickets.ErrNotInChat)
}

func TestReopenRestoresPairing(t *testing.T) {
	relay, sm, _ := newRelay()
	ctx := context.Background()

	ticket, err := relay.Open(ctx, user, "help")
	require.NoError(t, err)

	_, partner, err := relay.Reopen(ctx, user, ticket.ID)
	require.NoError(t, err)
	assert.Zero(t, partner, "админ еще не подключался")
	d, err := relay.Forward(ctx, user, "жду")
	require.NoError(t, err)
	assert.Zero(t, d.PartnerID)

	_, _, err = relay.Claim(ctx, adminA, ticket.ID)
	require.NoError(t, err)
	sm.Leave(user)

	_, partner, err = relay.Reopen(ctx, user, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, adminA, partner)
	d, err = relay.Forward(ctx, user, "снова я")
	require.NoError(t, err)
	assert.Equal(t, adminA, d.PartnerID)

	_, _, err = relay.Reopen(ctx, user+1, ticket.ID)
	assert.ErrorIs(t, err, tickets.ErrNotFound)
}

func TestLeaveEndsBothSides(t *testing.T) {
	relay, sm, _ := newRelay()
	ctx := context.Background()

	ticket, err := relay.Open(ctx, user, "help")
	require.NoError(t, err)
	_, _, err = relay.Claim(ctx, adminA, ticket.ID)
	require.NoError(t, err)

	ticketID, partner, partnerLeft := relay.Leave(adminA)
	assert.Equal(t, ticket.ID, ticketID)
	assert.Equal(t, user, partner)
	assert.True(t, partnerLeft)
	assert.Nil(t, sm.Step(user))
	assert.Nil(t, sm.Step(adminA))

	got, err := relay.OpenTickets(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1, "выход из переписки не закрывает тикет")
}

func TestCloseEvictsAndGuardsRepeat(t *testing.T) {
	relay, sm, _ := newRelay()
	ctx := context.Background()

	ticket, err := relay.Open(ctx, user, "help")
	require.NoError(t, err)
	_, _, err = relay.Claim(ctx, adminA, ticket.ID)
	require.NoError(t, err)

	closed, evicted, err := relay.Close(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketClosed, closed.Status)
	assert.ElementsMatch(t, []int64{user, adminA}, evicted)
	assert.Nil(t, sm.Step(user))
	assert.Nil(t, sm.Step(adminA))

	_, _, err = relay.Close(ctx, ticket.ID)
	assert.ErrorIs(t, err, tickets.ErrClosed)
	_, _, err = relay.Claim(ctx, adminB, ticket.ID)
	assert.ErrorIs(t, err, tickets.ErrClosed)
	_, _, err = relay.Reopen(ctx, user, ticket.ID)
	assert.ErrorIs(t, err, tickets.ErrClosed)
	_, _, err = relay.Close(ctx, 999)
	assert.ErrorIs(t, err, tickets.ErrNotFound)
}

func TestForwardAfterCloseEvicts(t *testing.T) {
	relay, sm, store := newRelay()
	ctx := context.Background()

	ticket, err := relay.Open(ctx, user, "help")
	require.NoError(t, err)
	_, _, err = relay.Claim(ctx, adminA, ticket.ID)
	require.NoError(t, err)
	_, err = store.CloseTicket(ctx, ticket.ID)
	require.NoError(t, err)

	_, err = relay.Forward(ctx, user, "ау")
	assert.ErrorIs(t, err, tickets.ErrClosed)
	assert.Nil(t, sm.Step(user))
}

func TestReplyClosesTicket(t *testing.T) {
	relay, _, _ := newRelay()
	ctx := context.Background()

	ticket, err := relay.Open(ctx, user, "help")
	require.NoError(t, err)

	closed, _, err := relay.Reply(ctx, adminB, ticket.ID, "Решено")
	require.NoError(t, err)
	assert.Equal(t, models.TicketClosed, closed.Status)

	msgs, err := relay.Messages(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, adminB, msgs[1].SenderID)

	_, _, err = relay.Reply(ctx, adminB, ticket.ID, "еще")
	assert.ErrorIs(t, err, tickets.ErrClosed)
}

func TestUserTicketsNewestFirst(t *testing.T) {
	relay, _, _ := newRelay()
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		_, err := relay.Open(ctx, user, "msg")
		require.NoError(t, err)
	}
	list, err := relay.UserTickets(ctx, user, 5)
	require.NoError(t, err)
	require.Len(t, list, 5)
	assert.Equal(t, int64(7), list[0].ID)
}

func TestClaimWaitsForBusyUser(t *testing.T) {
	relay, sm, _ := newRelay()
	ctx := context.Background()

	ticket, err := relay.Open(ctx, user, "help")
	require.NoError(t, err)
	sm.Enter(user, session.AwaitProof{OrderID: 3})

	_, joined, err := relay.Claim(ctx, adminA, ticket.ID)
	require.NoError(t, err)
	assert.False(t, joined)
	assert.Equal(t, session.AwaitProof{OrderID: 3}, sm.Step(user))

	d, err := relay.Forward(ctx, adminA, "вы здесь?")
	require.NoError(t, err)
	assert.Zero(t, d.PartnerID, "занятый пользователь не получает сообщения")

	_, partner, err := relay.Reopen(ctx, user, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, adminA, partner)
	d, err = relay.Forward(ctx, user, "теперь здесь")
	require.NoError(t, err)
	assert.Equal(t, adminA, d.PartnerID)
}

func TestDisplacedAdminLeaveKeepsNewPair(t *testing.T) {
	relay, sm, _ := newRelay()
	ctx := context.Background()

	ticket, err := relay.Open(ctx, user, "help")
	require.NoError(t, err)
	_, _, err = relay.Claim(ctx, adminA, ticket.ID)
	require.NoError(t, err)
	_, _, err = relay.Claim(ctx, adminB, ticket.ID)
	require.NoError(t, err)

	_, partner, partnerLeft := relay.Leave(adminA)
	assert.Equal(t, user, partner)
	assert.False(t, partnerLeft)
	assert.Nil(t, sm.Step(adminA))

	d, err := relay.Forward(ctx, user, "ответьте")
	require.NoError(t, err)
	assert.Equal(t, adminB, d.PartnerID)
}
