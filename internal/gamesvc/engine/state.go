package engine

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

type SeatStatus string

const (
	SeatWaiting   SeatStatus = "waiting"
	SeatPlaying   SeatStatus = "playing"
	SeatBusted    SeatStatus = "busted"
	SeatBlackjack SeatStatus = "blackjack"
)

type Dealer struct {
	Hand       []Card `json:"hand"`
	Value      int    `json:"value"`
	IsStanding bool   `json:"isStanding"`
}

type PlayerHand struct {
	Position int             `json:"position"`
	Hand     []Card          `json:"hand"`
	Value    int             `json:"value"`
	Bet      decimal.Decimal `json:"bet"`
	BetID    string          `json:"betId,omitempty"`
	Status   SeatStatus      `json:"status"`
	HasBet   bool            `json:"hasBet"`
}

// RoundState is the canonical per-table document. It holds the dealer's hole
// card and the remaining deck, so it must never be sent to a client as is.
type RoundState struct {
	Deck        []Card                `json:"deck"`
	Dealer      Dealer                `json:"dealer"`
	Players     map[int64]*PlayerHand `json:"players"`
	RoundActive bool                  `json:"roundActive"`
}

func DecodeState(raw []byte) (*RoundState, error) {
	s := &RoundState{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, s); err != nil {
			return nil, fmt.Errorf("decode round state: %w", err)
		}
	}
	if s.Players == nil {
		s.Players = map[int64]*PlayerHand{}
	}
	return s, nil
}

func (s *RoundState) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// AwaitingBets reports whether betting is open and at least one seat has
// already bet, so the rest of the table is holding up the deal.
func (s *RoundState) AwaitingBets() bool {
	if s.RoundActive || len(s.Dealer.Hand) > 0 {
		return false
	}
	for _, p := range s.Players {
		if p.HasBet {
			return true
		}
	}
	return false
}

// seatOrder lists player ids by seat position.
func (s *RoundState) seatOrder() []int64 {
	ids := make([]int64, 0, len(s.Players))
	for id := range s.Players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.Players[ids[i]].Position < s.Players[ids[j]].Position
	})
	return ids
}

// View is the projection of a RoundState that is safe to show players.
type View struct {
	Dealer        DealerView            `json:"dealer"`
	Players       map[int64]*PlayerHand `json:"players"`
	RoundActive   bool                  `json:"roundActive"`
	DeckRemaining int                   `json:"deckRemaining"`
}

type DealerView struct {
	Hand       []Card `json:"hand"`
	Value      *int   `json:"value,omitempty"`
	IsStanding bool   `json:"isStanding"`
}

type BetData struct {
	Amount decimal.Decimal `json:"amount"`
	Type   string          `json:"betType"`
	Data   json.RawMessage `json:"betData,omitempty"`
}

type Action struct {
	Name string          `json:"action"`
	Data json.RawMessage `json:"actionData,omitempty"`
}

const (
	OutcomeWon  = "won"
	OutcomeLost = "lost"
	OutcomePush = "push"
)

type Outcome struct {
	Status     string          `json:"status"`
	Payout     decimal.Decimal `json:"payout"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

type Resolution struct {
	BetID    string  `json:"betId"`
	PlayerID int64   `json:"playerId"`
	Outcome  Outcome `json:"outcome"`
}

// Result reports what a transition did beyond mutating the state.
type Result struct {
	Action        string          `json:"action,omitempty"`
	Card          *Card           `json:"card,omitempty"`
	Value         int             `json:"value,omitempty"`
	Status        SeatStatus      `json:"status,omitempty"`
	ExtraWager    decimal.Decimal `json:"-"`
	Dealt         bool            `json:"dealt,omitempty"`
	Resolutions   []Resolution    `json:"resolutions,omitempty"`
	RoundComplete bool            `json:"roundComplete,omitempty"`
}
