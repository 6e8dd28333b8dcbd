package store

import (
	"context"

	"github.com/avvvet/blackjack-services/internal/gamesvc/models"
)

const betColumns = `id, player_id, table_id, amount, type, status, payout, multiplier,
    round, bet_data, created_at, resolved_at`

func scanBet(row interface{ Scan(...any) error }) (*models.Bet, error) {
	b := &models.Bet{}
	var data []byte
	err := row.Scan(
		&b.ID,
		&b.PlayerID,
		&b.TableID,
		&b.Amount,
		&b.Type,
		&b.Status,
		&b.Payout,
		&b.Multiplier,
		&b.Round,
		&data,
		&b.CreatedAt,
		&b.ResolvedAt,
	)
	b.Data = data
	return b, err
}

func (t *pgTx) InsertBet(ctx context.Context, b *models.Bet) error {
	var data []byte
	if len(b.Data) > 0 {
		data = []byte(b.Data)
	}
	err := t.tx.QueryRow(ctx, `
        INSERT INTO bets (id, player_id, table_id, amount, type, status, payout, multiplier, round, bet_data)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING created_at
    `,
		b.ID,
		b.PlayerID,
		b.TableID,
		b.Amount,
		b.Type,
		b.Status,
		b.Payout,
		b.Multiplier,
		b.Round,
		data,
	).Scan(&b.CreatedAt)
	if err != nil {
		return mapErr(err, "insert bet")
	}
	return nil
}

// LockBet holds the bet row so a resolution is applied at most once.
func (t *pgTx) LockBet(ctx context.Context, id string) (*models.Bet, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+betColumns+` FROM bets WHERE id = $1 FOR UPDATE`, id)
	b, err := scanBet(row)
	if err != nil {
		return nil, mapErr(err, "get bet")
	}
	return b, nil
}

func (t *pgTx) UpdateBet(ctx context.Context, b *models.Bet) error {
	tag, err := t.tx.Exec(ctx, `
        UPDATE bets
        SET amount = $2, status = $3, payout = $4, multiplier = $5, resolved_at = $6
        WHERE id = $1
    `, b.ID, b.Amount, b.Status, b.Payout, b.Multiplier, b.ResolvedAt)
	if err != nil {
		return mapErr(err, "update bet")
	}
	if tag.RowsAffected() == 0 {
		return mapErr(errNoRows, "update bet")
	}
	return nil
}

func (t *pgTx) ListPendingBets(ctx context.Context, tableID, playerID int64) ([]*models.Bet, error) {
	rows, err := t.tx.Query(ctx, `
        SELECT `+betColumns+`
        FROM bets
        WHERE table_id = $1
          AND status = 'pending'
          AND ($2::bigint = 0 OR player_id = $2::bigint)
        ORDER BY created_at
    `, tableID, playerID)
	if err != nil {
		return nil, mapErr(err, "list pending bets")
	}
	defer rows.Close()

	var out []*models.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, mapErr(err, "scan bet")
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "list pending bets")
	}
	return out, nil
}
