package store

import (
	"context"

	"github.com/avvvet/blackjack-services/internal/gamesvc/models"
	"github.com/shopspring/decimal"
)

const playerColumns = `id, name, balance, created_at, updated_at`

func (t *pgTx) GetPlayer(ctx context.Context, id int64) (*models.Player, error) {
	return t.scanPlayer(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id)
}

// LockPlayer takes the row lock that serializes balance changes for one player.
func (t *pgTx) LockPlayer(ctx context.Context, id int64) (*models.Player, error) {
	return t.scanPlayer(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgTx) scanPlayer(ctx context.Context, query string, id int64) (*models.Player, error) {
	p := &models.Player{}
	err := t.tx.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Balance,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err, "get player")
	}
	return p, nil
}

func (t *pgTx) InsertPlayer(ctx context.Context, p *models.Player) error {
	err := t.tx.QueryRow(ctx, `
        INSERT INTO players (id, name, balance)
        VALUES ($1, $2, $3)
        RETURNING created_at, updated_at
    `, p.ID, p.Name, p.Balance).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapErr(err, "insert player")
	}
	return nil
}

func (t *pgTx) UpdatePlayerBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx, `
        UPDATE players SET balance = $2, updated_at = now()
        WHERE id = $1
    `, id, balance)
	if err != nil {
		return mapErr(err, "update balance")
	}
	if tag.RowsAffected() == 0 {
		return mapErr(errNoRows, "update balance")
	}
	return nil
}
