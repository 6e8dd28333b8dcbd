package service

import (
	"context"
	"time"

	"github.com/avvvet/blackjack-services/internal/gamesvc/engine"
	"github.com/avvvet/blackjack-services/internal/gamesvc/models"
	"github.com/shopspring/decimal"
)

type EventKind string

const (
	EventUpdate         EventKind = "update"
	EventPlayerJoined   EventKind = "playerJoined"
	EventPlayerLeft     EventKind = "playerLeft"
	EventBetPlaced      EventKind = "betPlaced"
	EventBetResolved    EventKind = "betResolved"
	EventBalanceUpdated EventKind = "balanceUpdated"
)

// Event is something observers of a table should hear about. Balance
// updates go only to PlayerID; everything else goes to the whole table.
type Event struct {
	Kind     EventKind
	TableID  int64
	PlayerID int64
	Payload  interface{}
}

func (e Event) Unicast() bool {
	return e.Kind == EventBalanceUpdated
}

type UpdatePayload struct {
	TableID      int64        `json:"tableId"`
	Status       string       `json:"status"`
	CurrentRound int          `json:"currentRound"`
	TurnDeadline *time.Time   `json:"turnDeadline,omitempty"`
	State        *engine.View `json:"state"`
}

type PlayerPayload struct {
	PlayerID    int64  `json:"playerId"`
	DisplayName string `json:"displayName"`
	Position    *int   `json:"position,omitempty"`
}

type BetPlacedPayload struct {
	PlayerID int64           `json:"playerId"`
	Amount   decimal.Decimal `json:"amount"`
	BetType  string          `json:"betType"`
	BetID    string          `json:"betId"`
}

type BetResolvedPayload struct {
	BetID    string         `json:"betId"`
	PlayerID int64          `json:"playerId"`
	Outcome  engine.Outcome `json:"outcome"`
}

type BalancePayload struct {
	NewBalance decimal.Decimal `json:"newBalance"`
}

// Result is what a mutating table operation hands back to the edge.
type Result struct {
	Table   *models.Table
	Seat    *models.Seat
	Bet     *models.Bet
	Outcome *engine.Result
	View    *engine.View
	Events  []Event
}

// TableSnapshot is a read-only look at a table.
type TableSnapshot struct {
	Table *models.Table  `json:"table"`
	Seats []*models.Seat `json:"seats"`
	State *engine.View   `json:"state"`
}

// RoundArchiver stores resolved rounds outside the transactional store.
type RoundArchiver interface {
	ArchiveRound(ctx context.Context, r models.RoundRecord) error
}

// Notifier receives operator alerts.
type Notifier interface {
	SendNotification(message string)
}
