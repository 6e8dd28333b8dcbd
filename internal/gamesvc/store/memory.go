package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/avvvet/blackjack-services/internal/gamesvc/models"
	"github.com/shopspring/decimal"
)

// MemoryStore keeps everything in process. Units of work run one at a time
// against a copy of the data that replaces the original only on success.
// It backs local runs with STORE_DRIVER=memory and the service tests.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
}

type seatKey struct {
	tableID  int64
	playerID int64
}

type memData struct {
	players      map[int64]models.Player
	tables       map[int64]models.Table
	seats        map[seatKey]models.Seat
	bets         map[string]models.Bet
	transactions []models.Transaction
	nextTableID  int64
	nextSeatID   int64
	nextTxID     int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memData{
		players: map[int64]models.Player{},
		tables:  map[int64]models.Table{},
		seats:   map[seatKey]models.Seat{},
		bets:    map[string]models.Bet{},
	}}
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	work := s.data.clone()
	if err := fn(&memTx{d: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (d *memData) clone() *memData {
	c := &memData{
		players:      make(map[int64]models.Player, len(d.players)),
		tables:       make(map[int64]models.Table, len(d.tables)),
		seats:        make(map[seatKey]models.Seat, len(d.seats)),
		bets:         make(map[string]models.Bet, len(d.bets)),
		transactions: append([]models.Transaction(nil), d.transactions...),
		nextTableID:  d.nextTableID,
		nextSeatID:   d.nextSeatID,
		nextTxID:     d.nextTxID,
	}
	for k, v := range d.players {
		c.players[k] = v
	}
	for k, v := range d.tables {
		c.tables[k] = v
	}
	for k, v := range d.seats {
		c.seats[k] = v
	}
	for k, v := range d.bets {
		c.bets[k] = v
	}
	return c
}

type memTx struct {
	d *memData
}

func (t *memTx) GetPlayer(ctx context.Context, id int64) (*models.Player, error) {
	p, ok := t.d.players[id]
	if !ok {
		return nil, fmt.Errorf("get player %d: %w", id, ErrNotFound)
	}
	return &p, nil
}

func (t *memTx) LockPlayer(ctx context.Context, id int64) (*models.Player, error) {
	return t.GetPlayer(ctx, id)
}

func (t *memTx) InsertPlayer(ctx context.Context, p *models.Player) error {
	if _, ok := t.d.players[p.ID]; ok {
		return fmt.Errorf("insert player %d: %w", p.ID, ErrDuplicate)
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	t.d.players[p.ID] = *p
	return nil
}

func (t *memTx) UpdatePlayerBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	p, ok := t.d.players[id]
	if !ok {
		return fmt.Errorf("update balance %d: %w", id, ErrNotFound)
	}
	p.Balance = balance
	p.UpdatedAt = time.Now()
	t.d.players[id] = p
	return nil
}

func (t *memTx) InsertTransaction(ctx context.Context, tr *models.Transaction) error {
	t.d.nextTxID++
	tr.ID = t.d.nextTxID
	tr.CreatedAt = time.Now()
	t.d.transactions = append(t.d.transactions, *tr)
	return nil
}

func (t *memTx) ListTransactions(ctx context.Context, playerID int64, limit int) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for i := len(t.d.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if tr := t.d.transactions[i]; tr.PlayerID == playerID {
			out = append(out, &tr)
		}
	}
	return out, nil
}

func (t *memTx) InsertTable(ctx context.Context, tb *models.Table) error {
	t.d.nextTableID++
	now := time.Now()
	tb.ID = t.d.nextTableID
	tb.Version = 1
	tb.CreatedAt, tb.UpdatedAt = now, now
	t.d.tables[tb.ID] = *tb
	return nil
}

func (t *memTx) GetTable(ctx context.Context, id int64) (*models.Table, error) {
	tb, ok := t.d.tables[id]
	if !ok {
		return nil, fmt.Errorf("get table %d: %w", id, ErrNotFound)
	}
	tb.State = append([]byte(nil), tb.State...)
	return &tb, nil
}

func (t *memTx) LockTable(ctx context.Context, id int64) (*models.Table, error) {
	return t.GetTable(ctx, id)
}

func (t *memTx) UpdateTable(ctx context.Context, tb *models.Table) error {
	cur, ok := t.d.tables[tb.ID]
	if !ok {
		return fmt.Errorf("update table %d: %w", tb.ID, ErrNotFound)
	}
	if cur.Version != tb.Version {
		return ErrStale
	}
	tb.Version++
	tb.UpdatedAt = time.Now()
	stored := *tb
	stored.State = append([]byte(nil), tb.State...)
	t.d.tables[tb.ID] = stored
	return nil
}

func (t *memTx) ListOpenTables(ctx context.Context, limit int) ([]*models.TableSummary, error) {
	var out []*models.TableSummary
	for _, tb := range t.d.tables {
		if tb.Status == models.TableCompleted {
			continue
		}
		count := 0
		for k, s := range t.d.seats {
			if k.tableID == tb.ID && s.Status == models.SeatActive {
				count++
			}
		}
		out = append(out, &models.TableSummary{
			ID:           tb.ID,
			HostID:       tb.HostID,
			HostName:     t.d.players[tb.HostID].Name,
			GameType:     tb.GameType,
			Status:       tb.Status,
			MaxSeats:     tb.MaxSeats,
			MinBet:       tb.MinBet,
			CurrentRound: tb.CurrentRound,
			PlayerCount:  count,
			CreatedAt:    tb.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *memTx) ClaimOverdueTable(ctx context.Context, now time.Time) (int64, error) {
	var id int64
	var earliest time.Time
	for _, tb := range t.d.tables {
		if tb.Status != models.TableInProgress || tb.TurnDeadline == nil || !tb.TurnDeadline.Before(now) {
			continue
		}
		if id == 0 || tb.TurnDeadline.Before(earliest) {
			id, earliest = tb.ID, *tb.TurnDeadline
		}
	}
	return id, nil
}

func (t *memTx) GetSeat(ctx context.Context, tableID, playerID int64) (*models.Seat, error) {
	s, ok := t.d.seats[seatKey{tableID, playerID}]
	if !ok {
		return nil, fmt.Errorf("get seat %d/%d: %w", tableID, playerID, ErrNotFound)
	}
	s.PlayerName = t.d.players[playerID].Name
	return &s, nil
}

func (t *memTx) ListActiveSeats(ctx context.Context, tableID int64) ([]*models.Seat, error) {
	var out []*models.Seat
	for k, s := range t.d.seats {
		if k.tableID == tableID && s.Status == models.SeatActive {
			s := s
			s.PlayerName = t.d.players[k.playerID].Name
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (t *memTx) InsertSeat(ctx context.Context, s *models.Seat) error {
	k := seatKey{s.TableID, s.PlayerID}
	if _, ok := t.d.seats[k]; ok {
		return fmt.Errorf("insert seat %d/%d: %w", s.TableID, s.PlayerID, ErrDuplicate)
	}
	t.d.nextSeatID++
	s.ID = t.d.nextSeatID
	s.JoinedAt = time.Now()
	t.d.seats[k] = *s
	return nil
}

func (t *memTx) UpdateSeat(ctx context.Context, s *models.Seat) error {
	k := seatKey{s.TableID, s.PlayerID}
	if _, ok := t.d.seats[k]; !ok {
		return fmt.Errorf("update seat %d/%d: %w", s.TableID, s.PlayerID, ErrNotFound)
	}
	t.d.seats[k] = *s
	return nil
}

func (t *memTx) InsertBet(ctx context.Context, b *models.Bet) error {
	if _, ok := t.d.bets[b.ID]; ok {
		return fmt.Errorf("insert bet %s: %w", b.ID, ErrDuplicate)
	}
	b.CreatedAt = time.Now()
	t.d.bets[b.ID] = *b
	return nil
}

func (t *memTx) LockBet(ctx context.Context, id string) (*models.Bet, error) {
	b, ok := t.d.bets[id]
	if !ok {
		return nil, fmt.Errorf("get bet %s: %w", id, ErrNotFound)
	}
	return &b, nil
}

func (t *memTx) UpdateBet(ctx context.Context, b *models.Bet) error {
	if _, ok := t.d.bets[b.ID]; !ok {
		return fmt.Errorf("update bet %s: %w", b.ID, ErrNotFound)
	}
	t.d.bets[b.ID] = *b
	return nil
}

func (t *memTx) ListPendingBets(ctx context.Context, tableID, playerID int64) ([]*models.Bet, error) {
	var out []*models.Bet
	for _, b := range t.d.bets {
		if b.TableID != tableID || b.Status != models.BetPending {
			continue
		}
		if playerID != 0 && b.PlayerID != playerID {
			continue
		}
		b := b
		out = append(out, &b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
