package service

import (
	"context"
	"errors"
	"time"

	"github.com/avvvet/blackjack-services/internal/apperr"
	"github.com/avvvet/blackjack-services/internal/gamesvc/models"
	"github.com/avvvet/blackjack-services/internal/gamesvc/store"
	"github.com/shopspring/decimal"
)

// SessionService assigns seats and keeps per-seat statistics.
type SessionService struct {
	clock func() time.Time
}

func NewSessionService(clock func() time.Time) *SessionService {
	if clock == nil {
		clock = time.Now
	}
	return &SessionService{clock: clock}
}

// Join seats the player at the lowest free position. An active seat is
// returned unchanged with created false.
func (s *SessionService) Join(ctx context.Context, tx store.Tx, table *models.Table, playerID int64) (*models.Seat, bool, error) {
	seat, err := tx.GetSeat(ctx, table.ID, playerID)
	switch {
	case err == nil && seat.Status == models.SeatActive:
		return seat, false, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, false, err
	}

	active, err := tx.ListActiveSeats(ctx, table.ID)
	if err != nil {
		return nil, false, err
	}
	if len(active) >= table.MaxSeats {
		return nil, false, apperr.Forbidden("table is full")
	}
	position := nextPosition(active)

	if seat != nil {
		seat.Status = models.SeatActive
		seat.Position = position
		seat.JoinedAt = s.clock()
		seat.LeftAt = nil
		if err := tx.UpdateSeat(ctx, seat); err != nil {
			return nil, false, err
		}
		return seat, true, nil
	}

	seat = &models.Seat{
		TableID:      table.ID,
		PlayerID:     playerID,
		Position:     position,
		Status:       models.SeatActive,
		TotalWagered: decimal.Zero,
		TotalWon:     decimal.Zero,
	}
	if err := tx.InsertSeat(ctx, seat); err != nil {
		return nil, false, err
	}
	return seat, true, nil
}

func nextPosition(active []*models.Seat) int {
	used := make(map[int]bool, len(active))
	for _, s := range active {
		used[s.Position] = true
	}
	p := 0
	for used[p] {
		p++
	}
	return p
}

// ActiveSeat returns the player's seat or Forbidden if they are not seated.
func (s *SessionService) ActiveSeat(ctx context.Context, tx store.Tx, tableID, playerID int64) (*models.Seat, error) {
	seat, err := tx.GetSeat(ctx, tableID, playerID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && seat.Status != models.SeatActive) {
		return nil, apperr.Forbidden("not seated at this table")
	}
	return seat, err
}

func (s *SessionService) ActiveSeats(ctx context.Context, tx store.Tx, tableID int64) ([]*models.Seat, error) {
	return tx.ListActiveSeats(ctx, tableID)
}

func (s *SessionService) Leave(ctx context.Context, tx store.Tx, seat *models.Seat) error {
	now := s.clock()
	seat.Status = models.SeatLeft
	seat.LeftAt = &now
	return tx.UpdateSeat(ctx, seat)
}

// RecordWager adds to the seat totals. newHand is false for a double down.
func (s *SessionService) RecordWager(ctx context.Context, tx store.Tx, seat *models.Seat, amount decimal.Decimal, newHand bool) error {
	if newHand {
		seat.HandsPlayed++
	}
	seat.TotalWagered = seat.TotalWagered.Add(amount)
	return tx.UpdateSeat(ctx, seat)
}

func (s *SessionService) RecordWin(ctx context.Context, tx store.Tx, tableID, playerID int64, payout decimal.Decimal) error {
	seat, err := tx.GetSeat(ctx, tableID, playerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	seat.TotalWon = seat.TotalWon.Add(payout)
	return tx.UpdateSeat(ctx, seat)
}
