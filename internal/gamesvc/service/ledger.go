package service

import (
	"context"
	"errors"

	"github.com/avvvet/blackjack-services/internal/apperr"
	"github.com/avvvet/blackjack-services/internal/gamesvc/models"
	"github.com/avvvet/blackjack-services/internal/gamesvc/store"
	"github.com/shopspring/decimal"
)

// LedgerService moves chips. Every change locks the player's row, updates
// the cached balance and appends a transaction with before and after values.
// The mutating methods run inside the caller's unit of work.
type LedgerService struct {
	store           store.Store
	startingBalance decimal.Decimal
}

func NewLedgerService(s store.Store, startingBalance decimal.Decimal) *LedgerService {
	return &LedgerService{store: s, startingBalance: startingBalance}
}

// EnsurePlayer returns the player, registering it with the starting grant
// the first time it is seen.
func (l *LedgerService) EnsurePlayer(ctx context.Context, id int64, name string) (*models.Player, bool, error) {
	var p *models.Player
	var created bool
	err := l.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		p, created, err = l.ensurePlayer(ctx, tx, id, name)
		return err
	})
	if err != nil {
		return nil, false, classify(err)
	}
	return p, created, nil
}

func (l *LedgerService) ensurePlayer(ctx context.Context, tx store.Tx, id int64, name string) (*models.Player, bool, error) {
	if id <= 0 {
		return nil, false, apperr.Validation("invalid player id")
	}
	p, err := tx.GetPlayer(ctx, id)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	p = &models.Player{ID: id, Name: name, Balance: decimal.Zero}
	if err := tx.InsertPlayer(ctx, p); err != nil {
		return nil, false, err
	}
	if l.startingBalance.IsPositive() {
		tr, err := l.Credit(ctx, tx, id, l.startingBalance, models.TxGrant, nil, nil, "starting balance")
		if err != nil {
			return nil, false, err
		}
		p.Balance = tr.BalanceAfter
	}
	return p, true, nil
}

// Debit takes a wager from the player's balance.
func (l *LedgerService) Debit(ctx context.Context, tx store.Tx, playerID int64, amount decimal.Decimal, tableID int64, betID string, description string) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation("amount must be positive")
	}
	p, err := l.lock(ctx, tx, playerID)
	if err != nil {
		return nil, err
	}
	if p.Balance.LessThan(amount) {
		return nil, apperr.BadRequest("insufficient balance")
	}
	return l.apply(ctx, tx, p, amount.Neg(), models.TxBet, &tableID, &betID, description)
}

// Credit adds a payout, refund or grant to the player's balance.
func (l *LedgerService) Credit(ctx context.Context, tx store.Tx, playerID int64, amount decimal.Decimal, txType string, tableID *int64, betID *string, description string) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation("amount must be positive")
	}
	p, err := l.lock(ctx, tx, playerID)
	if err != nil {
		return nil, err
	}
	return l.apply(ctx, tx, p, amount, txType, tableID, betID, description)
}

func (l *LedgerService) lock(ctx context.Context, tx store.Tx, playerID int64) (*models.Player, error) {
	p, err := tx.LockPlayer(ctx, playerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("player %d not found", playerID)
	}
	return p, err
}

func (l *LedgerService) apply(ctx context.Context, tx store.Tx, p *models.Player, amount decimal.Decimal, txType string, tableID *int64, betID *string, description string) (*models.Transaction, error) {
	after := p.Balance.Add(amount)
	if err := tx.UpdatePlayerBalance(ctx, p.ID, after); err != nil {
		return nil, err
	}
	tr := &models.Transaction{
		PlayerID:      p.ID,
		Amount:        amount,
		Type:          txType,
		Status:        models.TxCompleted,
		TableID:       tableID,
		BetID:         betID,
		BalanceBefore: p.Balance,
		BalanceAfter:  after,
		Description:   description,
	}
	if err := tx.InsertTransaction(ctx, tr); err != nil {
		return nil, err
	}
	p.Balance = after
	return tr, nil
}

func (l *LedgerService) Balance(ctx context.Context, playerID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := l.store.InTx(ctx, func(tx store.Tx) error {
		p, err := tx.GetPlayer(ctx, playerID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("player %d not found", playerID)
		}
		if err != nil {
			return err
		}
		balance = p.Balance
		return nil
	})
	return balance, classify(err)
}

func (l *LedgerService) History(ctx context.Context, playerID int64, limit int) ([]*models.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*models.Transaction
	err := l.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListTransactions(ctx, playerID, limit)
		return err
	})
	return out, classify(err)
}
