package store

import (
	"context"

	"github.com/avvvet/blackjack-services/internal/gamesvc/models"
)

func (t *pgTx) InsertTransaction(ctx context.Context, tr *models.Transaction) error {
	err := t.tx.QueryRow(ctx, `
        INSERT INTO transactions (
            player_id, amount, type, status, table_id, bet_id,
            balance_before, balance_after, description
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id, created_at
    `,
		tr.PlayerID,
		tr.Amount,
		tr.Type,
		tr.Status,
		tr.TableID,
		tr.BetID,
		tr.BalanceBefore,
		tr.BalanceAfter,
		tr.Description,
	).Scan(&tr.ID, &tr.CreatedAt)
	if err != nil {
		return mapErr(err, "insert transaction")
	}
	return nil
}

func (t *pgTx) ListTransactions(ctx context.Context, playerID int64, limit int) ([]*models.Transaction, error) {
	rows, err := t.tx.Query(ctx, `
        SELECT id, player_id, amount, type, status, table_id, bet_id,
               balance_before, balance_after, description, created_at
        FROM transactions
        WHERE player_id = $1
        ORDER BY id DESC
        LIMIT $2
    `, playerID, limit)
	if err != nil {
		return nil, mapErr(err, "list transactions")
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		tr := &models.Transaction{}
		if err := rows.Scan(
			&tr.ID,
			&tr.PlayerID,
			&tr.Amount,
			&tr.Type,
			&tr.Status,
			&tr.TableID,
			&tr.BetID,
			&tr.BalanceBefore,
			&tr.BalanceAfter,
			&tr.Description,
			&tr.CreatedAt,
		); err != nil {
			return nil, mapErr(err, "scan transaction")
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "list transactions")
	}
	return out, nil
}
