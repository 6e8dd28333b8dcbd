package store

import (
	"context"

	"github.com/avvvet/blackjack-services/internal/gamesvc/models"
)

const seatColumns = `s.id, s.table_id, s.player_id, COALESCE(p.name, ''), s.position, s.status,
    s.hands_played, s.total_wagered, s.total_won, s.joined_at, s.left_at`

func scanSeat(row interface{ Scan(...any) error }) (*models.Seat, error) {
	s := &models.Seat{}
	err := row.Scan(
		&s.ID,
		&s.TableID,
		&s.PlayerID,
		&s.PlayerName,
		&s.Position,
		&s.Status,
		&s.HandsPlayed,
		&s.TotalWagered,
		&s.TotalWon,
		&s.JoinedAt,
		&s.LeftAt,
	)
	return s, err
}

func (t *pgTx) GetSeat(ctx context.Context, tableID, playerID int64) (*models.Seat, error) {
	row := t.tx.QueryRow(ctx, `
        SELECT `+seatColumns+`
        FROM seats s
        LEFT JOIN players p ON p.id = s.player_id
        WHERE s.table_id = $1 AND s.player_id = $2
    `, tableID, playerID)
	s, err := scanSeat(row)
	if err != nil {
		return nil, mapErr(err, "get seat")
	}
	return s, nil
}

func (t *pgTx) ListActiveSeats(ctx context.Context, tableID int64) ([]*models.Seat, error) {
	rows, err := t.tx.Query(ctx, `
        SELECT `+seatColumns+`
        FROM seats s
        LEFT JOIN players p ON p.id = s.player_id
        WHERE s.table_id = $1 AND s.status = 'active'
        ORDER BY s.position
    `, tableID)
	if err != nil {
		return nil, mapErr(err, "list seats")
	}
	defer rows.Close()

	var out []*models.Seat
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, mapErr(err, "scan seat")
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "list seats")
	}
	return out, nil
}

func (t *pgTx) InsertSeat(ctx context.Context, s *models.Seat) error {
	err := t.tx.QueryRow(ctx, `
        INSERT INTO seats (table_id, player_id, position, status, hands_played, total_wagered, total_won)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, joined_at
    `,
		s.TableID,
		s.PlayerID,
		s.Position,
		s.Status,
		s.HandsPlayed,
		s.TotalWagered,
		s.TotalWon,
	).Scan(&s.ID, &s.JoinedAt)
	if err != nil {
		return mapErr(err, "insert seat")
	}
	return nil
}

func (t *pgTx) UpdateSeat(ctx context.Context, s *models.Seat) error {
	tag, err := t.tx.Exec(ctx, `
        UPDATE seats
        SET position = $2,
            status = $3,
            hands_played = $4,
            total_wagered = $5,
            total_won = $6,
            joined_at = $7,
            left_at = $8
        WHERE id = $1
    `,
		s.ID,
		s.Position,
		s.Status,
		s.HandsPlayed,
		s.TotalWagered,
		s.TotalWon,
		s.JoinedAt,
		s.LeftAt,
	)
	if err != nil {
		return mapErr(err, "update seat")
	}
	if tag.RowsAffected() == 0 {
		return mapErr(errNoRows, "update seat")
	}
	return nil
}
