package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/avvvet/blackjack-services/internal/apperr"
	"github.com/avvvet/blackjack-services/internal/gamesvc/engine"
	"github.com/avvvet/blackjack-services/internal/gamesvc/models"
	"github.com/avvvet/blackjack-services/internal/gamesvc/store"
	"github.com/avvvet/blackjack-services/internal/monitor"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	MaxSeatsLimit = 7

	// money columns are NUMERIC(18,2)
	moneyPlaces = 2

	listTablesLimit = 100
	sweepBatch      = 50
	archiveTimeout  = 10 * time.Second
)

type CreateTableRequest struct {
	GameType string          `json:"gameType"`
	MaxSeats int             `json:"maxSeats"`
	MinBet   decimal.Decimal `json:"minBet"`
}

type BetRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	BetType string          `json:"betType"`
	BetData json.RawMessage `json:"betData,omitempty"`
}

// GameService runs table operations. Each call is one unit of work: the
// table row is locked, the round state is decoded, the engine decides, the
// ledger moves chips and everything is written back before commit.
type GameService struct {
	store    store.Store
	ledger   *LedgerService
	sessions *SessionService

	decks       engine.DeckSource
	clock       func() time.Time
	turnTimeout time.Duration

	metrics     *monitor.Metrics
	archiver    RoundArchiver
	notifier    Notifier
	payoutAlert decimal.Decimal
}

type Option func(*GameService)

func WithDecks(d engine.DeckSource) Option {
	return func(g *GameService) { g.decks = d }
}

func WithClock(clock func() time.Time) Option {
	return func(g *GameService) { g.clock = clock }
}

func WithTurnTimeout(d time.Duration) Option {
	return func(g *GameService) { g.turnTimeout = d }
}

func WithMetrics(m *monitor.Metrics) Option {
	return func(g *GameService) { g.metrics = m }
}

func WithArchiver(a RoundArchiver) Option {
	return func(g *GameService) { g.archiver = a }
}

// WithNotifier alerts n for every single payout of at least threshold.
func WithNotifier(n Notifier, threshold decimal.Decimal) Option {
	return func(g *GameService) {
		g.notifier = n
		g.payoutAlert = threshold
	}
}

func NewGameService(s store.Store, ledger *LedgerService, sessions *SessionService, opts ...Option) *GameService {
	g := &GameService{
		store:       s,
		ledger:      ledger,
		sessions:    sessions,
		clock:       time.Now,
		turnTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.decks == nil {
		g.decks = engine.ShuffledDecks(rand.New(rand.NewSource(time.Now().UnixNano())))
	}
	return g
}

// unit collects what one operation did so events and side effects can be
// emitted after commit.
type unit struct {
	ctx   context.Context
	tx    store.Tx
	table *models.Table
	state *engine.RoundState
	eng   engine.Engine

	seat    *models.Seat
	bet     *models.Bet
	outcome *engine.Result

	touch    bool
	events   []Event
	balances map[int64]decimal.Decimal
	settled  []*models.Bet
	wagered  decimal.Decimal
	record   *models.RoundRecord
	expired  bool
}

func (u *unit) emit(kind EventKind, payload interface{}) {
	u.events = append(u.events, Event{Kind: kind, TableID: u.table.ID, Payload: payload})
}

func (u *unit) balance(playerID int64, b decimal.Decimal) {
	if u.balances == nil {
		u.balances = map[int64]decimal.Decimal{}
	}
	u.balances[playerID] = b
}

func (g *GameService) run(ctx context.Context, op string, fn func(tx store.Tx) error) error {
	start := time.Now()
	err := classify(g.store.InTx(ctx, fn))

	kind := ""
	if err != nil {
		kind = string(apperr.KindOf(err))
		if apperr.Is(err, apperr.KindTransient) {
			log.WithFields(log.Fields{"op": op}).Errorf("table operation failed: %v", errors.Unwrap(err))
		}
	}
	g.metrics.Observe(op, start, kind)
	return err
}

// begin locks the table and decodes its round state.
func (g *GameService) begin(ctx context.Context, tx store.Tx, tableID int64) (*unit, error) {
	table, err := tx.LockTable(ctx, tableID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("table %d not found", tableID)
	}
	if err != nil {
		return nil, err
	}
	return g.unitFor(ctx, tx, table)
}

func (g *GameService) unitFor(ctx context.Context, tx store.Tx, table *models.Table) (*unit, error) {
	eng, err := engine.For(engine.GameType(table.GameType), g.decks)
	if err != nil {
		return nil, err
	}
	state, err := engine.DecodeState(table.State)
	if err != nil {
		return nil, err
	}
	return &unit{ctx: ctx, tx: tx, table: table, state: state, eng: eng}, nil
}

// save writes the round state back and refreshes the turn deadline. The
// deadline runs while seats act and while a placed bet waits on the rest of
// the table.
func (g *GameService) save(u *unit) error {
	waiting := u.state.RoundActive || u.state.AwaitingBets()
	switch {
	case !waiting || u.table.Status != models.TableInProgress:
		u.table.TurnDeadline = nil
	case u.touch || u.table.TurnDeadline == nil:
		deadline := g.clock().Add(g.turnTimeout)
		u.table.TurnDeadline = &deadline
	}

	raw, err := u.state.Encode()
	if err != nil {
		return err
	}
	u.table.State = raw
	return u.tx.UpdateTable(u.ctx, u.table)
}

// settle applies resolutions. A bet that is no longer pending is rejected,
// which aborts the whole unit. Players are credited in id order so units
// settling at different tables lock player rows in the same order.
func (g *GameService) settle(u *unit, resolutions []engine.Resolution) error {
	ordered := make([]engine.Resolution, len(resolutions))
	copy(ordered, resolutions)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].PlayerID < ordered[j].PlayerID })

	for _, r := range ordered {
		bet, err := u.tx.LockBet(u.ctx, r.BetID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("bet %s not found", r.BetID)
		}
		if err != nil {
			return err
		}
		if bet.Status != models.BetPending {
			return apperr.BadRequest("bet %s already resolved", r.BetID)
		}

		now := g.clock()
		bet.Status = betStatus(r.Outcome.Status)
		bet.Multiplier = r.Outcome.Multiplier
		bet.Payout = bet.Amount.Mul(r.Outcome.Multiplier).Round(moneyPlaces)
		bet.ResolvedAt = &now
		if err := u.tx.UpdateBet(u.ctx, bet); err != nil {
			return err
		}

		if bet.Payout.IsPositive() {
			tableID, betID := u.table.ID, bet.ID
			tr, err := g.ledger.Credit(u.ctx, u.tx, bet.PlayerID, bet.Payout, models.TxWin, &tableID, &betID,
				fmt.Sprintf("%s on table %d round %d", bet.Status, u.table.ID, bet.Round))
			if err != nil {
				return err
			}
			u.balance(bet.PlayerID, tr.BalanceAfter)
			if err := g.sessions.RecordWin(u.ctx, u.tx, u.table.ID, bet.PlayerID, bet.Payout); err != nil {
				return err
			}
		}

		u.emit(EventBetResolved, BetResolvedPayload{
			BetID:    bet.ID,
			PlayerID: bet.PlayerID,
			Outcome:  engine.Outcome{Status: bet.Status, Payout: bet.Payout, Multiplier: bet.Multiplier},
		})
		u.settled = append(u.settled, bet)
	}
	return nil
}

// checkMoney rejects amounts finer than a cent, which storage would round.
func checkMoney(what string, d decimal.Decimal) error {
	if d.Exponent() < -moneyPlaces && !d.Equal(d.Truncate(moneyPlaces)) {
		return apperr.Validation("%s must have at most %d decimal places", what, moneyPlaces)
	}
	return nil
}

func betStatus(outcome string) string {
	switch outcome {
	case engine.OutcomeWon:
		return models.BetWon
	case engine.OutcomePush:
		return models.BetPush
	default:
		return models.BetLost
	}
}

// apply settles an engine result and remembers it for the caller.
func (g *GameService) apply(u *unit, out *engine.Result) error {
	if out == nil {
		return nil
	}
	if out.Dealt {
		u.touch = true
	}
	if err := g.settle(u, out.Resolutions); err != nil {
		return err
	}
	if out.RoundComplete {
		u.record = g.roundRecord(u)
	}
	u.outcome = out
	return nil
}

func (g *GameService) roundRecord(u *unit) *models.RoundRecord {
	rec := &models.RoundRecord{
		TableID:     u.table.ID,
		Round:       u.table.CurrentRound,
		GameType:    u.table.GameType,
		DealerValue: u.state.Dealer.Value,
		CompletedAt: g.clock(),
		Wagered:     decimal.Zero,
		Paid:        decimal.Zero,
	}
	for _, c := range u.state.Dealer.Hand {
		rec.DealerHand = append(rec.DealerHand, c.String())
	}
	for id, p := range u.state.Players {
		if !p.HasBet {
			continue
		}
		seat := models.RoundSeat{
			PlayerID: id,
			Position: p.Position,
			Value:    p.Value,
			Status:   string(p.Status),
			Bet:      p.Bet.String(),
			BetID:    p.BetID,
		}
		for _, c := range p.Hand {
			seat.Hand = append(seat.Hand, c.String())
		}
		rec.Seats = append(rec.Seats, seat)
		rec.Wagered = rec.Wagered.Add(p.Bet)
	}
	sort.Slice(rec.Seats, func(i, j int) bool { return rec.Seats[i].Position < rec.Seats[j].Position })
	return rec
}

// result builds the caller's view: events, then balance updates, then the
// masked state broadcast.
func (g *GameService) result(u *unit) *Result {
	view := u.eng.PlayerView(u.state, 0)

	ids := make([]int64, 0, len(u.balances))
	for id := range u.balances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		u.events = append(u.events, Event{
			Kind:     EventBalanceUpdated,
			TableID:  u.table.ID,
			PlayerID: id,
			Payload:  BalancePayload{NewBalance: u.balances[id]},
		})
	}

	u.emit(EventUpdate, UpdatePayload{
		TableID:      u.table.ID,
		Status:       u.table.Status,
		CurrentRound: u.table.CurrentRound,
		TurnDeadline: u.table.TurnDeadline,
		State:        view,
	})

	return &Result{
		Table:   u.table,
		Seat:    u.seat,
		Bet:     u.bet,
		Outcome: u.outcome,
		View:    view,
		Events:  u.events,
	}
}

// afterCommit runs side effects that must not happen for a rolled back unit.
func (g *GameService) afterCommit(u *unit) {
	if u == nil {
		return
	}
	if m := g.metrics; m != nil {
		if u.bet != nil {
			m.BetsPlaced.Inc()
		}
		if u.wagered.IsPositive() {
			m.ChipsWagered.Add(u.wagered.InexactFloat64())
		}
		for _, b := range u.settled {
			m.BetsResolved.WithLabelValues(b.Status).Inc()
			if b.Payout.IsPositive() {
				m.ChipsPaid.Add(b.Payout.InexactFloat64())
			}
		}
		if u.record != nil {
			m.RoundsPlayed.Inc()
		}
		if u.expired {
			m.TurnsExpired.Inc()
		}
	}

	if g.notifier != nil && g.payoutAlert.IsPositive() {
		for _, b := range u.settled {
			if b.Payout.GreaterThanOrEqual(g.payoutAlert) {
				g.notifier.SendNotification(fmt.Sprintf(
					"*LARGE PAYOUT*\n\nPlayer: %d\nTable: %d\nRound: %d\nBet: %s\nPayout: %s (%s)",
					b.PlayerID, b.TableID, b.Round, b.Amount.StringFixed(2), b.Payout.StringFixed(2), b.Status))
			}
		}
	}

	if g.archiver != nil && u.record != nil {
		rec := *u.record
		for _, b := range u.settled {
			rec.Paid = rec.Paid.Add(b.Payout)
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
			defer cancel()
			if err := g.archiver.ArchiveRound(ctx, rec); err != nil {
				log.WithFields(log.Fields{"table": rec.TableID, "round": rec.Round}).Errorf("archive round: %v", err)
			}
		}()
	}
}

func (g *GameService) CreateGame(ctx context.Context, hostID int64, hostName string, req CreateTableRequest) (*Result, error) {
	if req.GameType == "" {
		req.GameType = string(engine.Blackjack)
	}
	eng, err := engine.For(engine.GameType(req.GameType), g.decks)
	if err != nil {
		return nil, err
	}
	if req.MaxSeats < 1 || req.MaxSeats > MaxSeatsLimit {
		return nil, apperr.Validation("max seats must be between 1 and %d", MaxSeatsLimit)
	}
	if !req.MinBet.IsPositive() {
		return nil, apperr.Validation("minimum bet must be positive")
	}
	if err := checkMoney("minimum bet", req.MinBet); err != nil {
		return nil, err
	}

	var u *unit
	err = g.run(ctx, "create_game", func(tx store.Tx) error {
		host, _, err := g.ledger.ensurePlayer(ctx, tx, hostID, hostName)
		if err != nil {
			return err
		}

		state := eng.InitialState()
		raw, err := state.Encode()
		if err != nil {
			return err
		}
		table := &models.Table{
			HostID:       hostID,
			GameType:     req.GameType,
			Status:       models.TableWaiting,
			MaxSeats:     req.MaxSeats,
			MinBet:       req.MinBet,
			CurrentRound: 1,
			State:        raw,
		}
		if err := tx.InsertTable(ctx, table); err != nil {
			return err
		}

		u = &unit{ctx: ctx, tx: tx, table: table, state: state, eng: eng}
		seat, _, err := g.sessions.Join(ctx, tx, table, hostID)
		if err != nil {
			return err
		}
		eng.OnPlayerJoined(state, hostID, seat.Position)
		u.seat = seat
		u.emit(EventPlayerJoined, PlayerPayload{PlayerID: hostID, DisplayName: host.Name, Position: &seat.Position})
		return g.save(u)
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"table": u.table.ID, "host": hostID}).Info("table created")
	return g.result(u), nil
}

// JoinGame seats the player. Joining a table you already sit at returns
// the existing seat and emits nothing.
func (g *GameService) JoinGame(ctx context.Context, tableID, playerID int64, name string) (*Result, error) {
	var u *unit
	var created bool
	err := g.run(ctx, "join_game", func(tx store.Tx) error {
		var err error
		if u, err = g.begin(ctx, tx, tableID); err != nil {
			return err
		}
		if u.table.Status == models.TableCompleted {
			return apperr.BadRequest("game has ended")
		}
		player, _, err := g.ledger.ensurePlayer(ctx, tx, playerID, name)
		if err != nil {
			return err
		}

		seat, isNew, err := g.sessions.Join(ctx, tx, u.table, playerID)
		if err != nil {
			return err
		}
		u.seat, created = seat, isNew
		if !created {
			return nil
		}

		u.eng.OnPlayerJoined(u.state, playerID, seat.Position)
		u.emit(EventPlayerJoined, PlayerPayload{PlayerID: playerID, DisplayName: player.Name, Position: &seat.Position})
		return g.save(u)
	})
	if err != nil {
		return nil, err
	}

	res := g.result(u)
	if !created {
		res.Events = nil
	}
	return res, nil
}

// LeaveGame frees the player's seat. Players with pending bets on a table in
// progress must finish the hand first.
func (g *GameService) LeaveGame(ctx context.Context, tableID, playerID int64) (*Result, error) {
	var u *unit
	err := g.run(ctx, "leave_game", func(tx store.Tx) error {
		var err error
		if u, err = g.begin(ctx, tx, tableID); err != nil {
			return err
		}
		seat, err := g.sessions.ActiveSeat(ctx, tx, tableID, playerID)
		if err != nil {
			return err
		}
		pending, err := tx.ListPendingBets(ctx, tableID, playerID)
		if err != nil {
			return err
		}
		if u.table.Status == models.TableInProgress && len(pending) > 0 {
			return apperr.Forbidden("cannot leave with pending bets")
		}

		if err := g.leaveSeat(u, seat); err != nil {
			return err
		}
		u.seat = seat

		if playerID == u.table.HostID && u.table.Status == models.TableWaiting {
			// the host abandoned a table that never started
			others, err := g.sessions.ActiveSeats(ctx, tx, tableID)
			if err != nil {
				return err
			}
			for _, s := range others {
				if err := g.leaveSeat(u, s); err != nil {
					return err
				}
			}
			u.table.Status = models.TableCompleted
			return g.save(u)
		}

		if u.table.Status != models.TableCompleted {
			if err := g.apply(u, u.eng.Advance(u.state)); err != nil {
				return err
			}
		}
		return g.save(u)
	})
	if err != nil {
		return nil, err
	}
	g.afterCommit(u)
	return g.result(u), nil
}

func (g *GameService) leaveSeat(u *unit, seat *models.Seat) error {
	if err := g.sessions.Leave(u.ctx, u.tx, seat); err != nil {
		return err
	}
	u.eng.OnPlayerLeft(u.state, seat.PlayerID)
	u.emit(EventPlayerLeft, PlayerPayload{PlayerID: seat.PlayerID, DisplayName: seat.PlayerName})
	return nil
}

func (g *GameService) PlaceBet(ctx context.Context, tableID, playerID int64, req BetRequest) (*Result, error) {
	if req.BetType == "" {
		req.BetType = models.BetMain
	}
	if !req.Amount.IsPositive() {
		return nil, apperr.Validation("bet amount must be positive")
	}
	if err := checkMoney("bet amount", req.Amount); err != nil {
		return nil, err
	}
	switch req.BetType {
	case models.BetMain:
	case models.BetSide, models.BetSplit:
		return nil, apperr.BadRequest("%s bets are not supported", req.BetType)
	default:
		return nil, apperr.Validation("unknown bet type %q", req.BetType)
	}

	var u *unit
	err := g.run(ctx, "place_bet", func(tx store.Tx) error {
		var err error
		if u, err = g.begin(ctx, tx, tableID); err != nil {
			return err
		}
		if u.table.Status == models.TableCompleted {
			return apperr.BadRequest("game has ended")
		}
		if req.Amount.LessThan(u.table.MinBet) {
			return apperr.BadRequest("bet below table minimum of %s", u.table.MinBet.StringFixed(2))
		}
		seat, err := g.sessions.ActiveSeat(ctx, tx, tableID, playerID)
		if err != nil {
			return err
		}

		data := engine.BetData{Amount: req.Amount, Type: req.BetType, Data: req.BetData}
		if err := u.eng.ValidateBet(u.state, playerID, data); err != nil {
			return err
		}

		bet := &models.Bet{
			ID:         uuid.NewString(),
			PlayerID:   playerID,
			TableID:    tableID,
			Amount:     req.Amount,
			Type:       req.BetType,
			Status:     models.BetPending,
			Payout:     decimal.Zero,
			Multiplier: decimal.Zero,
			Round:      u.table.CurrentRound,
			Data:       req.BetData,
		}
		if err := tx.InsertBet(ctx, bet); err != nil {
			return err
		}
		tr, err := g.ledger.Debit(ctx, tx, playerID, req.Amount, tableID, bet.ID,
			fmt.Sprintf("bet on table %d round %d", tableID, bet.Round))
		if err != nil {
			return err
		}
		u.balance(playerID, tr.BalanceAfter)
		if err := g.sessions.RecordWager(ctx, tx, seat, req.Amount, true); err != nil {
			return err
		}
		u.seat, u.bet, u.wagered = seat, bet, req.Amount

		if u.table.Status == models.TableWaiting {
			u.table.Status = models.TableInProgress
		}
		u.emit(EventBetPlaced, BetPlacedPayload{PlayerID: playerID, Amount: req.Amount, BetType: req.BetType, BetID: bet.ID})

		if err := g.apply(u, u.eng.OnBetPlaced(u.state, playerID, bet.ID, data)); err != nil {
			return err
		}
		return g.save(u)
	})
	if err != nil {
		return nil, err
	}
	g.afterCommit(u)
	return g.result(u), nil
}

func (g *GameService) PerformAction(ctx context.Context, tableID, playerID int64, action engine.Action) (*Result, error) {
	var u *unit
	err := g.run(ctx, "perform_action", func(tx store.Tx) error {
		var err error
		if u, err = g.begin(ctx, tx, tableID); err != nil {
			return err
		}
		if u.table.Status != models.TableInProgress {
			return apperr.BadRequest("game is not in progress")
		}
		seat, err := g.sessions.ActiveSeat(ctx, tx, tableID, playerID)
		if err != nil {
			return err
		}

		out, err := u.eng.ProcessAction(u.state, playerID, action)
		if err != nil {
			return err
		}
		u.seat = seat
		u.touch = true

		if out.ExtraWager.IsPositive() {
			if err := g.doubleDown(u, seat, out.ExtraWager); err != nil {
				return err
			}
		}
		if err := g.apply(u, out); err != nil {
			return err
		}
		return g.save(u)
	})
	if err != nil {
		return nil, err
	}
	g.afterCommit(u)
	return g.result(u), nil
}

func (g *GameService) doubleDown(u *unit, seat *models.Seat, extra decimal.Decimal) error {
	hand, ok := u.state.Players[seat.PlayerID]
	if !ok || hand.BetID == "" {
		return apperr.BadRequest("no bet to double")
	}
	bet, err := u.tx.LockBet(u.ctx, hand.BetID)
	if err != nil {
		return err
	}
	if bet.Status != models.BetPending {
		return apperr.BadRequest("bet %s already resolved", bet.ID)
	}
	bet.Amount = bet.Amount.Add(extra)
	if err := u.tx.UpdateBet(u.ctx, bet); err != nil {
		return err
	}

	tr, err := g.ledger.Debit(u.ctx, u.tx, seat.PlayerID, extra, u.table.ID, bet.ID,
		fmt.Sprintf("double down on table %d round %d", u.table.ID, bet.Round))
	if err != nil {
		return err
	}
	u.balance(seat.PlayerID, tr.BalanceAfter)
	u.wagered = u.wagered.Add(extra)
	return g.sessions.RecordWager(u.ctx, u.tx, seat, extra, false)
}

// StartNewRound clears the finished round and advances the round counter.
func (g *GameService) StartNewRound(ctx context.Context, tableID, playerID int64) (*Result, error) {
	var u *unit
	err := g.run(ctx, "new_round", func(tx store.Tx) error {
		var err error
		if u, err = g.begin(ctx, tx, tableID); err != nil {
			return err
		}
		if u.table.Status == models.TableCompleted {
			return apperr.BadRequest("game has ended")
		}
		if u.seat, err = g.sessions.ActiveSeat(ctx, tx, tableID, playerID); err != nil {
			return err
		}
		if u.state.RoundActive {
			return apperr.BadRequest("round still in progress")
		}
		pending, err := tx.ListPendingBets(ctx, tableID, 0)
		if err != nil {
			return err
		}
		if len(pending) > 0 {
			return apperr.BadRequest("bets are still pending")
		}

		u.eng.StartNewRound(u.state)
		u.table.CurrentRound++
		return g.save(u)
	})
	if err != nil {
		return nil, err
	}
	return g.result(u), nil
}

// EndGame closes the table. Pending bets are cancelled and refunded and
// every seat is released. Only the host may end a game.
func (g *GameService) EndGame(ctx context.Context, tableID, playerID int64) (*Result, error) {
	var u *unit
	err := g.run(ctx, "end_game", func(tx store.Tx) error {
		var err error
		if u, err = g.begin(ctx, tx, tableID); err != nil {
			return err
		}
		if u.table.HostID != playerID {
			return apperr.Forbidden("only the host can end the game")
		}
		if u.table.Status == models.TableCompleted {
			return apperr.BadRequest("game has already ended")
		}

		pending, err := tx.ListPendingBets(ctx, tableID, 0)
		if err != nil {
			return err
		}
		for _, p := range pending {
			if err := g.cancelBet(u, p.ID); err != nil {
				return err
			}
		}

		seats, err := g.sessions.ActiveSeats(ctx, tx, tableID)
		if err != nil {
			return err
		}
		for _, s := range seats {
			if err := g.leaveSeat(u, s); err != nil {
				return err
			}
		}

		u.eng.StartNewRound(u.state)
		u.table.Status = models.TableCompleted
		return g.save(u)
	})
	if err != nil {
		return nil, err
	}
	g.afterCommit(u)
	return g.result(u), nil
}

func (g *GameService) cancelBet(u *unit, betID string) error {
	bet, err := u.tx.LockBet(u.ctx, betID)
	if err != nil {
		return err
	}
	if bet.Status != models.BetPending {
		return apperr.BadRequest("bet %s already resolved", betID)
	}
	now := g.clock()
	bet.Status = models.BetCancelled
	bet.Payout = bet.Amount
	bet.Multiplier = decimal.NewFromInt(1)
	bet.ResolvedAt = &now
	if err := u.tx.UpdateBet(u.ctx, bet); err != nil {
		return err
	}

	tableID := u.table.ID
	tr, err := g.ledger.Credit(u.ctx, u.tx, bet.PlayerID, bet.Amount, models.TxRefund, &tableID, &betID,
		fmt.Sprintf("refund for cancelled bet on table %d", tableID))
	if err != nil {
		return err
	}
	u.balance(bet.PlayerID, tr.BalanceAfter)
	u.emit(EventBetResolved, BetResolvedPayload{
		BetID:    bet.ID,
		PlayerID: bet.PlayerID,
		Outcome:  engine.Outcome{Status: bet.Status, Payout: bet.Payout, Multiplier: bet.Multiplier},
	})
	return nil
}

// ExpireOverdueTurns ends the wait at tables whose turn deadline has passed,
// one table per unit of work. A table still taking bets deals the seats that
// have bet; a table in play auto-stands every seat still acting. Tables locked by another sweeper
// are skipped.
func (g *GameService) ExpireOverdueTurns(ctx context.Context) ([]*Result, error) {
	var results []*Result
	for i := 0; i < sweepBatch; i++ {
		var u *unit
		err := g.run(ctx, "expire_turns", func(tx store.Tx) error {
			id, err := tx.ClaimOverdueTable(ctx, g.clock())
			if err != nil || id == 0 {
				return err
			}
			if u, err = g.begin(ctx, tx, id); err != nil {
				return err
			}
			out := u.eng.ExpireTurn(u.state)
			u.expired = out.Dealt || out.RoundComplete
			if err := g.apply(u, out); err != nil {
				return err
			}
			return g.save(u)
		})
		if err != nil {
			return results, err
		}
		if u == nil {
			break
		}
		log.WithFields(log.Fields{"table": u.table.ID, "dealt": u.outcome.Dealt}).Info("turn deadline passed")
		g.afterCommit(u)
		results = append(results, g.result(u))
	}
	return results, nil
}

func (g *GameService) TableView(ctx context.Context, tableID int64) (*TableSnapshot, error) {
	var snap *TableSnapshot
	err := g.store.InTx(ctx, func(tx store.Tx) error {
		table, err := tx.GetTable(ctx, tableID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("table %d not found", tableID)
		}
		if err != nil {
			return err
		}
		u, err := g.unitFor(ctx, tx, table)
		if err != nil {
			return err
		}
		seats, err := g.sessions.ActiveSeats(ctx, tx, tableID)
		if err != nil {
			return err
		}
		snap = &TableSnapshot{Table: table, Seats: seats, State: u.eng.PlayerView(u.state, 0)}
		return nil
	})
	return snap, classify(err)
}

// ListTables returns tables that are not completed, newest first.
func (g *GameService) ListTables(ctx context.Context) ([]*models.TableSummary, error) {
	var out []*models.TableSummary
	err := g.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListOpenTables(ctx, listTablesLimit)
		return err
	})
	return out, classify(err)
}
