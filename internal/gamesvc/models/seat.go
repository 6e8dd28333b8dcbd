package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SeatActive = "active"
	SeatLeft   = "left"
)

// Seat is a player's session at a table. Rows are kept after leaving.
type Seat struct {
	ID           int64           `json:"id"`
	TableID      int64           `json:"tableId"`
	PlayerID     int64           `json:"playerId"`
	PlayerName   string          `json:"playerName,omitempty"`
	Position     int             `json:"position"`
	Status       string          `json:"status"`
	HandsPlayed  int             `json:"handsPlayed"`
	TotalWagered decimal.Decimal `json:"totalWagered"`
	TotalWon     decimal.Decimal `json:"totalWon"`
	JoinedAt     time.Time       `json:"joinedAt"`
	LeftAt       *time.Time      `json:"leftAt,omitempty"`
}
