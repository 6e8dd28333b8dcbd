package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoundRecord is the archived summary of one resolved round.
type RoundRecord struct {
	TableID     int64           `json:"tableId" bson:"table_id"`
	Round       int             `json:"round" bson:"round"`
	GameType    string          `json:"gameType" bson:"game_type"`
	DealerHand  []string        `json:"dealerHand" bson:"dealer_hand"`
	DealerValue int             `json:"dealerValue" bson:"dealer_value"`
	Seats       []RoundSeat     `json:"seats" bson:"seats"`
	Wagered     decimal.Decimal `json:"-" bson:"-"`
	Paid        decimal.Decimal `json:"-" bson:"-"`
	CompletedAt time.Time       `json:"completedAt" bson:"completed_at"`
}

type RoundSeat struct {
	PlayerID int64    `json:"playerId" bson:"player_id"`
	Position int      `json:"position" bson:"position"`
	Hand     []string `json:"hand" bson:"hand"`
	Value    int      `json:"value" bson:"value"`
	Status   string   `json:"status" bson:"status"`
	Bet      string   `json:"bet" bson:"bet"`
	BetID    string   `json:"betId" bson:"bet_id"`
}
