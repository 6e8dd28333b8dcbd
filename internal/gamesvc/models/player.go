package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Player is an authenticated principal with a cached chip balance.
type Player struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
