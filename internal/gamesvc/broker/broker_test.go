package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/avvvet/blackjack-services/internal/comm"
	"github.com/avvvet/blackjack-services/internal/gamesvc/engine"
	"github.com/avvvet/blackjack-services/internal/gamesvc/service"
	"github.com/avvvet/blackjack-services/internal/gamesvc/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroker(deck engine.DeckSource) *Broker {
	s := store.NewMemoryStore()
	ledger := service.NewLedgerService(s, decimal.NewFromInt(1000))
	games := service.NewGameService(s, ledger, service.NewSessionService(time.Now), service.WithDecks(deck))
	return NewBroker(nil, games, ledger, "game.service")
}

func request(typ string, playerId int64, data string) *comm.WSMessage {
	m := &comm.WSMessage{Type: typ, SocketId: "sock-1", PlayerId: playerId, Name: "ann", RequestId: "r1"}
	if data != "" {
		m.Data = json.RawMessage(data)
	}
	return m
}

func ackOf(t *testing.T, out []*comm.WSMessage) comm.Ack {
	t.Helper()
	require.NotEmpty(t, out)
	var ack comm.Ack
	require.NoError(t, json.Unmarshal(out[0].Data, &ack))
	return ack
}

func types(out []*comm.WSMessage) []string {
	var ts []string
	for _, m := range out {
		ts = append(ts, m.Type)
	}
	return ts
}

func TestInitAndBalance(t *testing.T) {
	b := newTestBroker(engine.FixedDeck())
	ctx := context.Background()

	out := b.Handle(ctx, request(comm.TypeInit, 1, ""))
	require.Len(t, out, 1)
	assert.Equal(t, "init-ack", out[0].Type)
	assert.Equal(t, "sock-1", out[0].SocketId)
	assert.Equal(t, "r1", out[0].RequestId)
	ack := ackOf(t, out)
	assert.True(t, ack.Success)
	require.NotNil(t, ack.Player)
	assert.Equal(t, "1000.00", ack.Player.Balance)

	ack = ackOf(t, b.Handle(ctx, request(comm.TypeGetBalance, 1, "")))
	assert.True(t, ack.Success)
	assert.Equal(t, "1000.00", ack.Balance)
}

func TestUnauthenticatedRequestIsRejected(t *testing.T) {
	b := newTestBroker(engine.FixedDeck())

	ack := ackOf(t, b.Handle(context.Background(), request(comm.TypeJoin, 0, `{"tableId":1}`)))
	assert.False(t, ack.Success)
	assert.Equal(t, "unauthorized", ack.Kind)
	assert.False(t, ack.Retryable)
}

func TestTableFlow(t *testing.T) {
	b := newTestBroker(engine.FixedDeck(
		engine.Card{Rank: "10", Suit: "hearts"}, engine.Card{Rank: "9", Suit: "hearts"},
		engine.Card{Rank: "10", Suit: "clubs"}, engine.Card{Rank: "7", Suit: "clubs"},
	))
	ctx := context.Background()

	out := b.Handle(ctx, request(comm.TypeCreateTable, 1, `{"maxSeats":1,"minBet":"10"}`))
	ack := ackOf(t, out)
	require.True(t, ack.Success, ack.Error)
	tableId := ack.TableId
	assert.NotZero(t, tableId)
	assert.Equal(t, []string{"createTable-ack", "playerJoined", "update"}, types(out))
	assert.Equal(t, tableId, out[1].TableId)
	assert.Zero(t, out[1].PlayerId)

	// the room supplies the table when the payload has none
	bet := request(comm.TypePlaceBet, 1, `{"amount":100}`)
	bet.TableId = tableId
	out = b.Handle(ctx, bet)
	ack = ackOf(t, out)
	require.True(t, ack.Success, ack.Error)
	assert.NotEmpty(t, ack.BetId)
	assert.Equal(t, []string{"placeBet-ack", "betPlaced", "balanceUpdated", "update"}, types(out))
	assert.Equal(t, int64(1), out[2].PlayerId)

	stand := request(comm.TypeAction, 1, `{"action":"stand"}`)
	stand.TableId = tableId
	out = b.Handle(ctx, stand)
	ack = ackOf(t, out)
	require.True(t, ack.Success, ack.Error)
	assert.Contains(t, types(out), "betResolved")

	ack = ackOf(t, b.Handle(ctx, request(comm.TypeGetBalance, 1, "")))
	assert.Equal(t, "1100.00", ack.Balance)

	newRound := request(comm.TypeNewRound, 1, "")
	newRound.TableId = tableId
	ack = ackOf(t, b.Handle(ctx, newRound))
	require.True(t, ack.Success, ack.Error)
	assert.Equal(t, 2, ack.CurrentRound)
}

func TestRejectedRequestAcksWithError(t *testing.T) {
	b := newTestBroker(engine.FixedDeck())
	ctx := context.Background()

	out := b.Handle(ctx, request(comm.TypeJoin, 2, `{"tableId":77}`))
	require.Len(t, out, 1)
	ack := ackOf(t, out)
	assert.False(t, ack.Success)
	assert.Equal(t, "table 77 not found", ack.Error)
	assert.Equal(t, "not_found", ack.Kind)

	ack = ackOf(t, b.Handle(ctx, request(comm.TypeLeave, 2, "")))
	assert.Equal(t, "tableId is required", ack.Error)

	ack = ackOf(t, b.Handle(ctx, request(comm.TypeCreateTable, 2, `{"maxSeats":`)))
	assert.Equal(t, "validation", ack.Kind)

	ack = ackOf(t, b.Handle(ctx, request("shuffle", 2, "")))
	assert.Equal(t, "bad_request", ack.Kind)
}

func TestSweepSettlesIdleTable(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := store.NewMemoryStore()
	ledger := service.NewLedgerService(s, decimal.NewFromInt(1000))
	clock := func() time.Time { return now }
	games := service.NewGameService(s, ledger, service.NewSessionService(clock),
		service.WithClock(clock),
		service.WithTurnTimeout(30*time.Second),
		service.WithDecks(engine.FixedDeck(
			engine.Card{Rank: "10", Suit: "hearts"}, engine.Card{Rank: "9", Suit: "hearts"},
			engine.Card{Rank: "10", Suit: "clubs"}, engine.Card{Rank: "7", Suit: "clubs"},
		)))
	b := NewBroker(nil, games, ledger, "game.service")
	ctx := context.Background()

	ack := ackOf(t, b.Handle(ctx, request(comm.TypeCreateTable, 1, `{"maxSeats":1,"minBet":"10"}`)))
	require.True(t, ack.Success, ack.Error)
	bet := request(comm.TypePlaceBet, 1, `{"amount":100}`)
	bet.TableId = ack.TableId
	require.True(t, ackOf(t, b.Handle(ctx, bet)).Success)

	assert.Zero(t, b.Sweep(ctx))

	now = now.Add(31 * time.Second)
	assert.Equal(t, 1, b.Sweep(ctx))
	assert.Zero(t, b.Sweep(ctx))

	ack = ackOf(t, b.Handle(ctx, request(comm.TypeGetBalance, 1, "")))
	assert.Equal(t, "1100.00", ack.Balance)
}
