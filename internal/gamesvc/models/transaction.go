package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TxBet    = "bet"
	TxWin    = "win"
	TxRefund = "refund"
	TxGrant  = "grant"

	TxCompleted = "completed"
)

// Transaction is an append-only ledger row. Amount is signed.
type Transaction struct {
	ID            int64           `json:"id"`
	PlayerID      int64           `json:"playerId"`
	Amount        decimal.Decimal `json:"amount"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	TableID       *int64          `json:"tableId,omitempty"`
	BetID         *string         `json:"betId,omitempty"`
	BalanceBefore decimal.Decimal `json:"balanceBefore"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}
