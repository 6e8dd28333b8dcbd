package store

import (
	"context"
	"time"

	"github.com/avvvet/blackjack-services/internal/gamesvc/models"
	"github.com/jackc/pgx/v5"
)

var errNoRows = pgx.ErrNoRows

const tableColumns = `id, host_id, game_type, status, max_seats, min_bet, current_round,
    state, version, turn_deadline, created_at, updated_at`

func (t *pgTx) InsertTable(ctx context.Context, tb *models.Table) error {
	err := t.tx.QueryRow(ctx, `
        INSERT INTO tables (host_id, game_type, status, max_seats, min_bet, current_round, state)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, version, created_at, updated_at
    `,
		tb.HostID,
		tb.GameType,
		tb.Status,
		tb.MaxSeats,
		tb.MinBet,
		tb.CurrentRound,
		tb.State,
	).Scan(&tb.ID, &tb.Version, &tb.CreatedAt, &tb.UpdatedAt)
	if err != nil {
		return mapErr(err, "insert table")
	}
	return nil
}

func (t *pgTx) GetTable(ctx context.Context, id int64) (*models.Table, error) {
	return t.scanTable(ctx, `SELECT `+tableColumns+` FROM tables WHERE id = $1`, id)
}

// LockTable serializes every read-modify-write of one table's round state.
func (t *pgTx) LockTable(ctx context.Context, id int64) (*models.Table, error) {
	return t.scanTable(ctx, `SELECT `+tableColumns+` FROM tables WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgTx) scanTable(ctx context.Context, query string, id int64) (*models.Table, error) {
	tb := &models.Table{}
	err := t.tx.QueryRow(ctx, query, id).Scan(
		&tb.ID,
		&tb.HostID,
		&tb.GameType,
		&tb.Status,
		&tb.MaxSeats,
		&tb.MinBet,
		&tb.CurrentRound,
		&tb.State,
		&tb.Version,
		&tb.TurnDeadline,
		&tb.CreatedAt,
		&tb.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err, "get table")
	}
	return tb, nil
}

func (t *pgTx) UpdateTable(ctx context.Context, tb *models.Table) error {
	err := t.tx.QueryRow(ctx, `
        UPDATE tables
        SET status = $2,
            current_round = $3,
            state = $4,
            turn_deadline = $5,
            version = version + 1,
            updated_at = now()
        WHERE id = $1 AND version = $6
        RETURNING version, updated_at
    `,
		tb.ID,
		tb.Status,
		tb.CurrentRound,
		tb.State,
		tb.TurnDeadline,
		tb.Version,
	).Scan(&tb.Version, &tb.UpdatedAt)
	if err == pgx.ErrNoRows {
		return ErrStale
	}
	if err != nil {
		return mapErr(err, "update table")
	}
	return nil
}

func (t *pgTx) ListOpenTables(ctx context.Context, limit int) ([]*models.TableSummary, error) {
	rows, err := t.tx.Query(ctx, `
        SELECT t.id, t.host_id, COALESCE(p.name, ''), t.game_type, t.status,
               t.max_seats, t.min_bet, t.current_round, t.created_at,
               (SELECT COUNT(*) FROM seats s WHERE s.table_id = t.id AND s.status = 'active')
        FROM tables t
        LEFT JOIN players p ON p.id = t.host_id
        WHERE t.status <> 'completed'
        ORDER BY t.created_at DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, mapErr(err, "list tables")
	}
	defer rows.Close()

	var out []*models.TableSummary
	for rows.Next() {
		ts := &models.TableSummary{}
		if err := rows.Scan(
			&ts.ID,
			&ts.HostID,
			&ts.HostName,
			&ts.GameType,
			&ts.Status,
			&ts.MaxSeats,
			&ts.MinBet,
			&ts.CurrentRound,
			&ts.CreatedAt,
			&ts.PlayerCount,
		); err != nil {
			return nil, mapErr(err, "scan table summary")
		}
		out = append(out, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "list tables")
	}
	return out, nil
}

func (t *pgTx) ClaimOverdueTable(ctx context.Context, now time.Time) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
        SELECT id
        FROM tables
        WHERE status = 'in_progress'
          AND turn_deadline IS NOT NULL
          AND turn_deadline < $1
        ORDER BY turn_deadline
        LIMIT 1
        FOR UPDATE SKIP LOCKED
    `, now).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, mapErr(err, "claim overdue table")
	}
	return id, nil
}
