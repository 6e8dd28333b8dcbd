// Package store persists players, tables, seats, bets and ledger rows. All
// access happens inside a unit of work opened with Store.InTx.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/avvvet/blackjack-services/internal/gamesvc/models"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	// ErrStale means the row changed since it was read.
	ErrStale = errors.New("stale update")
)

type Store interface {
	// InTx runs fn in one atomic unit. Nothing fn wrote is kept if it
	// returns an error.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

type Tx interface {
	GetPlayer(ctx context.Context, id int64) (*models.Player, error)
	LockPlayer(ctx context.Context, id int64) (*models.Player, error)
	InsertPlayer(ctx context.Context, p *models.Player) error
	UpdatePlayerBalance(ctx context.Context, id int64, balance decimal.Decimal) error

	InsertTransaction(ctx context.Context, t *models.Transaction) error
	ListTransactions(ctx context.Context, playerID int64, limit int) ([]*models.Transaction, error)

	InsertTable(ctx context.Context, t *models.Table) error
	GetTable(ctx context.Context, id int64) (*models.Table, error)
	LockTable(ctx context.Context, id int64) (*models.Table, error)
	// UpdateTable writes t if its Version is current and bumps the version.
	UpdateTable(ctx context.Context, t *models.Table) error
	ListOpenTables(ctx context.Context, limit int) ([]*models.TableSummary, error)
	// ClaimOverdueTable locks one in-progress table whose turn deadline is
	// before now, skipping tables locked elsewhere. It returns 0 when none.
	ClaimOverdueTable(ctx context.Context, now time.Time) (int64, error)

	GetSeat(ctx context.Context, tableID, playerID int64) (*models.Seat, error)
	ListActiveSeats(ctx context.Context, tableID int64) ([]*models.Seat, error)
	InsertSeat(ctx context.Context, s *models.Seat) error
	UpdateSeat(ctx context.Context, s *models.Seat) error

	InsertBet(ctx context.Context, b *models.Bet) error
	LockBet(ctx context.Context, id string) (*models.Bet, error)
	UpdateBet(ctx context.Context, b *models.Bet) error
	// ListPendingBets returns pending bets at a table, for one player when
	// playerID is not 0.
	ListPendingBets(ctx context.Context, tableID, playerID int64) ([]*models.Bet, error)
}
