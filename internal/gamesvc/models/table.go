package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TableWaiting    = "waiting"
	TableInProgress = "in_progress"
	TableCompleted  = "completed"
)

type Table struct {
	ID           int64           `json:"id"`
	HostID       int64           `json:"hostId"`
	GameType     string          `json:"gameType"`
	Status       string          `json:"status"`
	MaxSeats     int             `json:"maxSeats"`
	MinBet       decimal.Decimal `json:"minBet"`
	CurrentRound int             `json:"currentRound"`
	State        []byte          `json:"-"` // engine RoundState, never sent as is
	Version      int64           `json:"-"`
	TurnDeadline *time.Time      `json:"turnDeadline,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// TableSummary is a lobby row.
type TableSummary struct {
	ID           int64           `json:"id"`
	HostID       int64           `json:"hostId"`
	HostName     string          `json:"hostName"`
	GameType     string          `json:"gameType"`
	Status       string          `json:"status"`
	MaxSeats     int             `json:"maxSeats"`
	MinBet       decimal.Decimal `json:"minBet"`
	CurrentRound int             `json:"currentRound"`
	PlayerCount  int             `json:"playerCount"`
	CreatedAt    time.Time       `json:"createdAt"`
}
