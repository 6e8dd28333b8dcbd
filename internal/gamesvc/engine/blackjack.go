package engine

import (
	"math/rand"
	"time"

	"github.com/avvvet/blackjack-services/internal/apperr"
	"github.com/shopspring/decimal"
)

const (
	ActionHit    = "hit"
	ActionStand  = "stand"
	ActionDouble = "double"
	ActionSplit  = "split"

	dealerStandsAt = 17
)

var (
	multiplierBlackjack = decimal.NewFromFloat(2.5)
	multiplierWin       = decimal.NewFromInt(2)
	multiplierPush      = decimal.NewFromInt(1)
)

type BlackjackEngine struct {
	decks DeckSource
}

// NewBlackjack builds the blackjack variant. A nil source shuffles with a
// time seeded generator.
func NewBlackjack(decks DeckSource) *BlackjackEngine {
	if decks == nil {
		decks = ShuffledDecks(rand.New(rand.NewSource(time.Now().UnixNano())))
	}
	return &BlackjackEngine{decks: decks}
}

func (b *BlackjackEngine) sealed() {}

func (b *BlackjackEngine) GameType() GameType {
	return Blackjack
}

func (b *BlackjackEngine) InitialState() *RoundState {
	return &RoundState{
		Dealer:  Dealer{Hand: []Card{}},
		Players: map[int64]*PlayerHand{},
	}
}

func (b *BlackjackEngine) OnPlayerJoined(s *RoundState, playerID int64, position int) {
	if _, ok := s.Players[playerID]; ok {
		return
	}
	s.Players[playerID] = &PlayerHand{
		Position: position,
		Hand:     []Card{},
		Bet:      decimal.Zero,
		Status:   SeatWaiting,
	}
}

func (b *BlackjackEngine) OnPlayerLeft(s *RoundState, playerID int64) {
	delete(s.Players, playerID)
}

func (b *BlackjackEngine) ValidateBet(s *RoundState, playerID int64, bet BetData) error {
	p, ok := s.Players[playerID]
	if !ok {
		return apperr.BadRequest("player is not seated at this table")
	}
	if !bet.Amount.IsPositive() {
		return apperr.BadRequest("bet amount must be positive")
	}
	if p.HasBet {
		return apperr.BadRequest("bet already placed this round")
	}
	if s.RoundActive {
		return apperr.BadRequest("round in progress, wait for the next round")
	}
	if len(s.Dealer.Hand) > 0 {
		return apperr.BadRequest("round finished, start a new round first")
	}
	return nil
}

func (b *BlackjackEngine) OnBetPlaced(s *RoundState, playerID int64, betID string, bet BetData) *Result {
	p := s.Players[playerID]
	p.Bet = bet.Amount
	p.BetID = betID
	p.HasBet = true
	return b.Advance(s)
}

// Advance deals once every seat has a bet and finishes the round once no
// seat is left playing.
func (b *BlackjackEngine) Advance(s *RoundState) *Result {
	res := &Result{}
	if !s.RoundActive {
		if len(s.Dealer.Hand) > 0 || !b.allBet(s) {
			return res
		}
		b.deal(s)
		res.Dealt = true
	}
	if !b.anyPlaying(s) {
		b.finish(s, res)
	}
	return res
}

func (b *BlackjackEngine) ProcessAction(s *RoundState, playerID int64, action Action) (*Result, error) {
	p, ok := s.Players[playerID]
	if !ok {
		return nil, apperr.BadRequest("player is not seated at this table")
	}
	if !s.RoundActive || p.Status != SeatPlaying {
		return nil, apperr.BadRequest("player cannot act now")
	}

	res := &Result{Action: action.Name}
	switch action.Name {
	case ActionHit:
		c := b.draw(s)
		res.Card = &c
		b.takeCard(p, c, playerID, res)
	case ActionStand:
		p.Status = SeatWaiting
	case ActionDouble:
		if len(p.Hand) != 2 {
			return nil, apperr.BadRequest("double is only allowed on the first two cards")
		}
		res.ExtraWager = p.Bet
		p.Bet = p.Bet.Add(p.Bet)
		c := b.draw(s)
		res.Card = &c
		b.takeCard(p, c, playerID, res)
		if p.Status == SeatPlaying {
			p.Status = SeatWaiting
		}
	case ActionSplit:
		if len(p.Hand) != 2 || p.Hand[0].Rank != p.Hand[1].Rank {
			return nil, apperr.BadRequest("split requires a pair")
		}
		return nil, apperr.BadRequest("split is not supported")
	default:
		return nil, apperr.BadRequest("unknown action %q", action.Name)
	}

	res.Value = p.Value
	res.Status = p.Status
	if !b.anyPlaying(s) {
		b.finish(s, res)
	}
	return res, nil
}

func (b *BlackjackEngine) takeCard(p *PlayerHand, c Card, playerID int64, res *Result) {
	p.Hand = append(p.Hand, c)
	p.Value = HandValue(p.Hand)
	if p.Value > 21 {
		p.Status = SeatBusted
		res.Resolutions = append(res.Resolutions, Resolution{
			BetID:    p.BetID,
			PlayerID: playerID,
			Outcome:  Outcome{Status: OutcomeLost, Payout: decimal.Zero, Multiplier: decimal.Zero},
		})
	}
}

// ExpireTurn ends an idle wait. While bets are open it deals the seats that
// have bet and leaves the others out of the round. During play it stands
// every seat still acting and finishes the round.
func (b *BlackjackEngine) ExpireTurn(s *RoundState) *Result {
	res := &Result{Action: ActionStand}
	if !s.RoundActive {
		if !s.AwaitingBets() {
			return res
		}
		b.deal(s)
		res.Dealt = true
		if !b.anyPlaying(s) {
			b.finish(s, res)
		}
		return res
	}
	for _, p := range s.Players {
		if p.Status == SeatPlaying {
			p.Status = SeatWaiting
		}
	}
	b.finish(s, res)
	return res
}

// DealerTurn draws until the dealer reaches 17, soft or hard.
func (b *BlackjackEngine) DealerTurn(s *RoundState) {
	for HandValue(s.Dealer.Hand) < dealerStandsAt {
		s.Dealer.Hand = append(s.Dealer.Hand, b.draw(s))
	}
	s.Dealer.Value = HandValue(s.Dealer.Hand)
	s.Dealer.IsStanding = true
}

// ResolveBets settles every seat that has not busted. Busted seats were
// settled when they busted.
func (b *BlackjackEngine) ResolveBets(s *RoundState) []Resolution {
	dealerValue := HandValue(s.Dealer.Hand)
	dealerNatural := isNatural(s.Dealer.Hand)

	var out []Resolution
	for _, id := range s.seatOrder() {
		p := s.Players[id]
		if !p.HasBet || p.BetID == "" || p.Status == SeatBusted || len(p.Hand) == 0 {
			continue
		}

		var status string
		var mult decimal.Decimal
		switch {
		case p.Status == SeatBlackjack && dealerNatural:
			status, mult = OutcomePush, multiplierPush
		case p.Status == SeatBlackjack:
			status, mult = OutcomeWon, multiplierBlackjack
		case dealerValue > 21, p.Value > dealerValue:
			status, mult = OutcomeWon, multiplierWin
		case p.Value == dealerValue:
			status, mult = OutcomePush, multiplierPush
		default:
			status, mult = OutcomeLost, decimal.Zero
		}

		out = append(out, Resolution{
			BetID:    p.BetID,
			PlayerID: id,
			Outcome:  Outcome{Status: status, Payout: p.Bet.Mul(mult), Multiplier: mult},
		})
	}
	return out
}

func (b *BlackjackEngine) StartNewRound(s *RoundState) {
	s.Deck = nil
	s.Dealer = Dealer{Hand: []Card{}}
	for _, p := range s.Players {
		p.Hand = []Card{}
		p.Value = 0
		p.Bet = decimal.Zero
		p.BetID = ""
		p.Status = SeatWaiting
		p.HasBet = false
	}
	s.RoundActive = false
}

// PlayerView masks the dealer's second card and value while the round is
// active. The mask is the same for every viewer.
func (b *BlackjackEngine) PlayerView(s *RoundState, viewerID int64) *View {
	v := &View{
		Players:       make(map[int64]*PlayerHand, len(s.Players)),
		RoundActive:   s.RoundActive,
		DeckRemaining: len(s.Deck),
	}
	for id, p := range s.Players {
		cp := *p
		cp.Hand = append([]Card{}, p.Hand...)
		v.Players[id] = &cp
	}

	v.Dealer.Hand = append([]Card{}, s.Dealer.Hand...)
	v.Dealer.IsStanding = s.Dealer.IsStanding
	if s.RoundActive {
		if len(v.Dealer.Hand) > 1 {
			v.Dealer.Hand[1] = Card{Hidden: true}
		}
	} else {
		value := s.Dealer.Value
		v.Dealer.Value = &value
	}
	return v
}

func (b *BlackjackEngine) deal(s *RoundState) {
	s.Deck = b.decks()
	s.Dealer = Dealer{Hand: []Card{}}

	var order []int64
	for _, id := range s.seatOrder() {
		if s.Players[id].HasBet {
			order = append(order, id)
		}
	}
	for _, id := range order {
		p := s.Players[id]
		p.Hand = []Card{b.draw(s), b.draw(s)}
	}
	s.Dealer.Hand = []Card{b.draw(s), b.draw(s)}

	for _, id := range order {
		p := s.Players[id]
		p.Value = HandValue(p.Hand)
		if p.Value == 21 {
			p.Status = SeatBlackjack
		} else {
			p.Status = SeatPlaying
		}
	}
	s.Dealer.Value = HandValue(s.Dealer.Hand)
	s.RoundActive = true
}

func (b *BlackjackEngine) finish(s *RoundState, res *Result) {
	b.DealerTurn(s)
	res.Resolutions = append(res.Resolutions, b.ResolveBets(s)...)
	s.RoundActive = false
	res.RoundComplete = true
}

func (b *BlackjackEngine) draw(s *RoundState) Card {
	if len(s.Deck) == 0 {
		s.Deck = b.decks()
	}
	c := s.Deck[0]
	s.Deck = s.Deck[1:]
	return c
}

func (b *BlackjackEngine) allBet(s *RoundState) bool {
	if len(s.Players) == 0 {
		return false
	}
	for _, p := range s.Players {
		if !p.HasBet {
			return false
		}
	}
	return true
}

func (b *BlackjackEngine) anyPlaying(s *RoundState) bool {
	for _, p := range s.Players {
		if p.Status == SeatPlaying {
			return true
		}
	}
	return false
}
