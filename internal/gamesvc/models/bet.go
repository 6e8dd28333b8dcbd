package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	BetMain  = "main"
	BetSide  = "side"
	BetSplit = "split"

	BetPending   = "pending"
	BetWon       = "won"
	BetLost      = "lost"
	BetPush      = "push"
	BetCancelled = "cancelled"
)

type Bet struct {
	ID         string          `json:"id"`
	PlayerID   int64           `json:"playerId"`
	TableID    int64           `json:"tableId"`
	Amount     decimal.Decimal `json:"amount"`
	Type       string          `json:"betType"`
	Status     string          `json:"status"`
	Payout     decimal.Decimal `json:"payout"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Round      int             `json:"round"`
	Data       json.RawMessage `json:"betData,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	ResolvedAt *time.Time      `json:"resolvedAt,omitempty"`
}
