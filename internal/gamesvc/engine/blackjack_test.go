package engine

import (
	"math/rand"
	"testing"

	"github.com/avvvet/blackjack-services/internal/apperr"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func c(rank, suit string) Card {
	return Card{Rank: rank, Suit: suit}
}

func bet(amount int64) BetData {
	return BetData{Amount: decimal.NewFromInt(amount), Type: "main"}
}

// twoSeatTable seats players 1 and 2 and has both bet 10 against a deck
// that starts with top.
func twoSeatTable(t *testing.T, top ...Card) (*BlackjackEngine, *RoundState, *Result) {
	t.Helper()
	e := NewBlackjack(FixedDeck(top...))
	s := e.InitialState()
	e.OnPlayerJoined(s, 1, 0)
	e.OnPlayerJoined(s, 2, 1)

	require.NoError(t, e.ValidateBet(s, 1, bet(10)))
	res := e.OnBetPlaced(s, 1, "bet-1", bet(10))
	require.False(t, res.Dealt)

	require.NoError(t, e.ValidateBet(s, 2, bet(10)))
	res = e.OnBetPlaced(s, 2, "bet-2", bet(10))
	return e, s, res
}

func TestHandValue(t *testing.T) {
	cases := []struct {
		name string
		hand []Card
		want int
	}{
		{"ace king", []Card{c("A", "spades"), c("K", "hearts")}, 21},
		{"two aces and nine", []Card{c("A", "spades"), c("A", "hearts"), c("9", "clubs")}, 21},
		{"soft seventeen", []Card{c("A", "spades"), c("6", "hearts")}, 17},
		{"ace softened after hit", []Card{c("A", "spades"), c("6", "hearts"), c("K", "clubs")}, 17},
		{"four aces", []Card{c("A", "spades"), c("A", "hearts"), c("A", "clubs"), c("A", "diamonds")}, 14},
		{"hard bust", []Card{c("K", "spades"), c("Q", "hearts"), c("5", "clubs")}, 25},
		{"hidden card ignored", []Card{c("9", "spades"), {Hidden: true}}, 9},
		{"empty", nil, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HandValue(tc.hand))
		})
	}
}

func TestHandValueNeverSoftensBelowOne(t *testing.T) {
	deck := NewDeck()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		rng.Shuffle(len(deck), func(a, b int) { deck[a], deck[b] = deck[b], deck[a] })
		hand := deck[:2+rng.Intn(6)]

		hard := 0
		for _, card := range hand {
			hard += card.Value()
			if card.Rank == "A" {
				hard -= 10
			}
		}
		v := HandValue(hand)
		assert.GreaterOrEqual(t, v, hard)
		if v > 21 {
			assert.Equal(t, hard, v, "a softening option remained for %v", hand)
		}
	}
}

func TestShuffledDeckIsPermutation(t *testing.T) {
	decks := ShuffledDecks(rand.New(rand.NewSource(42)))
	for i := 0; i < 20; i++ {
		deck := decks()
		require.Len(t, deck, 52)
		seen := map[Card]bool{}
		for _, card := range deck {
			assert.False(t, seen[card], "duplicate %s", card)
			seen[card] = true
		}
	}
}

func TestNaturalDealtAsBlackjack(t *testing.T) {
	e := NewBlackjack(FixedDeck(
		c("A", "spades"), c("K", "hearts"),
		c("10", "clubs"), c("7", "clubs"),
	))
	s := e.InitialState()
	e.OnPlayerJoined(s, 1, 0)

	res := e.OnBetPlaced(s, 1, "bet-1", bet(10))

	require.True(t, res.Dealt)
	assert.Equal(t, SeatBlackjack, s.Players[1].Status)
	assert.Equal(t, 21, s.Players[1].Value)

	// nobody is left to act, so the round settles at once
	assert.True(t, res.RoundComplete)
	assert.False(t, s.RoundActive)
	require.Len(t, res.Resolutions, 1)
	assert.Equal(t, OutcomeWon, res.Resolutions[0].Outcome.Status)
	assert.True(t, decimal.NewFromInt(25).Equal(res.Resolutions[0].Outcome.Payout))
}

func TestDealTriggersWhenAllSeatsBet(t *testing.T) {
	_, s, res := twoSeatTable(t,
		c("10", "hearts"), c("6", "clubs"),
		c("9", "diamonds"), c("7", "spades"),
		c("10", "spades"), c("7", "hearts"),
	)

	require.True(t, res.Dealt)
	assert.True(t, s.RoundActive)
	assert.Len(t, s.Players[1].Hand, 2)
	assert.Len(t, s.Players[2].Hand, 2)
	assert.Len(t, s.Dealer.Hand, 2)
	assert.Equal(t, SeatPlaying, s.Players[1].Status)
	assert.Equal(t, 52-6, len(s.Deck))

	e := NewBlackjack(nil)
	for _, viewer := range []int64{1, 2} {
		v := e.PlayerView(s, viewer)
		require.Len(t, v.Dealer.Hand, 2)
		assert.Equal(t, c("10", "spades"), v.Dealer.Hand[0])
		assert.True(t, v.Dealer.Hand[1].Hidden)
		assert.Empty(t, v.Dealer.Hand[1].Rank)
		assert.Nil(t, v.Dealer.Value)
	}
	// the view is a copy
	assert.Equal(t, c("7", "hearts"), s.Dealer.Hand[1])
}

func TestNoDealUntilEverySeatBets(t *testing.T) {
	e := NewBlackjack(nil)
	s := e.InitialState()
	res := e.Advance(s)
	assert.False(t, res.Dealt)

	e.OnPlayerJoined(s, 1, 0)
	e.OnPlayerJoined(s, 2, 1)
	res = e.OnBetPlaced(s, 1, "bet-1", bet(10))
	assert.False(t, res.Dealt)
	assert.False(t, s.RoundActive)
	assert.Empty(t, s.Dealer.Hand)
}

func TestLeavingUnbetSeatDeals(t *testing.T) {
	e := NewBlackjack(nil)
	s := e.InitialState()
	e.OnPlayerJoined(s, 1, 0)
	e.OnPlayerJoined(s, 2, 1)
	e.OnBetPlaced(s, 1, "bet-1", bet(10))

	e.OnPlayerLeft(s, 2)
	res := e.Advance(s)

	assert.True(t, res.Dealt)
	assert.NotContains(t, s.Players, int64(2))
}

func TestJoinIsIdempotent(t *testing.T) {
	e := NewBlackjack(nil)
	s := e.InitialState()
	e.OnPlayerJoined(s, 1, 0)
	s.Players[1].HasBet = true
	e.OnPlayerJoined(s, 1, 3)

	assert.Equal(t, 0, s.Players[1].Position)
	assert.True(t, s.Players[1].HasBet)
}

func TestValidateBet(t *testing.T) {
	e := NewBlackjack(FixedDeck())
	s := e.InitialState()
	e.OnPlayerJoined(s, 1, 0)
	e.OnPlayerJoined(s, 2, 1)

	err := e.ValidateBet(s, 9, bet(10))
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	assert.True(t, apperr.Is(e.ValidateBet(s, 1, bet(0)), apperr.KindBadRequest))

	e.OnBetPlaced(s, 1, "bet-1", bet(10))
	err = e.ValidateBet(s, 1, bet(10))
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	e.OnBetPlaced(s, 2, "bet-2", bet(10))
	require.True(t, s.RoundActive)
	e.OnPlayerJoined(s, 3, 2)
	err = e.ValidateBet(s, 3, bet(10))
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
}

func TestHitIntoBustResolvesImmediately(t *testing.T) {
	e, s, _ := twoSeatTable(t,
		c("10", "hearts"), c("6", "clubs"),
		c("9", "diamonds"), c("7", "spades"),
		c("10", "spades"), c("7", "hearts"),
		c("8", "diamonds"),
	)

	res, err := e.ProcessAction(s, 1, Action{Name: ActionHit})
	require.NoError(t, err)

	assert.Equal(t, 24, s.Players[1].Value)
	assert.Equal(t, SeatBusted, s.Players[1].Status)
	require.Len(t, res.Resolutions, 1)
	assert.Equal(t, "bet-1", res.Resolutions[0].BetID)
	assert.Equal(t, OutcomeLost, res.Resolutions[0].Outcome.Status)
	assert.True(t, res.Resolutions[0].Outcome.Payout.IsZero())

	// player 2 still has to act
	assert.True(t, s.RoundActive)
	assert.False(t, res.RoundComplete)

	_, err = e.ProcessAction(s, 1, Action{Name: ActionHit})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	res, err = e.ProcessAction(s, 2, Action{Name: ActionStand})
	require.NoError(t, err)
	assert.True(t, res.RoundComplete)
	assert.False(t, s.RoundActive)
	assert.True(t, s.Dealer.IsStanding)
	assert.Equal(t, 17, s.Dealer.Value)

	// the busted seat is not settled twice
	require.Len(t, res.Resolutions, 1)
	assert.Equal(t, "bet-2", res.Resolutions[0].BetID)
	assert.Equal(t, OutcomeLost, res.Resolutions[0].Outcome.Status)

	v := e.PlayerView(s, 1)
	require.NotNil(t, v.Dealer.Value)
	assert.Equal(t, 17, *v.Dealer.Value)
	assert.False(t, v.Dealer.Hand[1].Hidden)
}

func TestStandMarksDoneActing(t *testing.T) {
	e, s, _ := twoSeatTable(t,
		c("10", "hearts"), c("6", "clubs"),
		c("9", "diamonds"), c("7", "spades"),
		c("10", "spades"), c("7", "hearts"),
	)

	res, err := e.ProcessAction(s, 1, Action{Name: ActionStand})
	require.NoError(t, err)
	assert.Equal(t, SeatWaiting, s.Players[1].Status)
	assert.Empty(t, res.Resolutions)
	assert.True(t, s.RoundActive)
}

func TestDouble(t *testing.T) {
	e := NewBlackjack(FixedDeck(
		c("5", "hearts"), c("6", "diamonds"),
		c("10", "spades"), c("8", "hearts"),
		c("10", "clubs"),
	))
	s := e.InitialState()
	e.OnPlayerJoined(s, 1, 0)
	e.OnBetPlaced(s, 1, "bet-1", bet(10))

	res, err := e.ProcessAction(s, 1, Action{Name: ActionDouble})
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(10).Equal(res.ExtraWager))
	assert.True(t, decimal.NewFromInt(20).Equal(s.Players[1].Bet))
	assert.Len(t, s.Players[1].Hand, 3)
	assert.Equal(t, 21, res.Value)
	assert.True(t, res.RoundComplete)
	require.Len(t, res.Resolutions, 1)
	assert.Equal(t, OutcomeWon, res.Resolutions[0].Outcome.Status)
	assert.True(t, decimal.NewFromInt(40).Equal(res.Resolutions[0].Outcome.Payout))
}

func TestDoubleNeedsTwoCards(t *testing.T) {
	e := NewBlackjack(FixedDeck(
		c("2", "hearts"), c("3", "diamonds"),
		c("10", "spades"), c("8", "hearts"),
		c("4", "clubs"),
	))
	s := e.InitialState()
	e.OnPlayerJoined(s, 1, 0)
	e.OnBetPlaced(s, 1, "bet-1", bet(10))

	_, err := e.ProcessAction(s, 1, Action{Name: ActionHit})
	require.NoError(t, err)

	_, err = e.ProcessAction(s, 1, Action{Name: ActionDouble})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
}

func TestSplitIsRejected(t *testing.T) {
	e := NewBlackjack(FixedDeck(
		c("8", "hearts"), c("8", "diamonds"),
		c("10", "spades"), c("8", "spades"),
	))
	s := e.InitialState()
	e.OnPlayerJoined(s, 1, 0)
	e.OnBetPlaced(s, 1, "bet-1", bet(10))

	_, err := e.ProcessAction(s, 1, Action{Name: ActionSplit})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")

	s.Players[1].Hand[1] = c("9", "diamonds")
	_, err = e.ProcessAction(s, 1, Action{Name: ActionSplit})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pair")

	_, err = e.ProcessAction(s, 1, Action{Name: "surrender"})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
	assert.Equal(t, SeatPlaying, s.Players[1].Status)
}

func TestDealerTurn(t *testing.T) {
	cases := []struct {
		name  string
		hand  []Card
		deck  []Card
		want  int
		cards int
	}{
		{"sixteen draws", []Card{c("7", "clubs"), c("9", "diamonds")}, []Card{c("3", "hearts"), c("K", "clubs")}, 19, 3},
		{"draws more than once", []Card{c("7", "clubs"), c("2", "diamonds")}, []Card{c("2", "hearts"), c("3", "clubs"), c("K", "hearts")}, 24, 5},
		{"soft seventeen stands", []Card{c("A", "clubs"), c("6", "diamonds")}, []Card{c("K", "clubs")}, 17, 2},
		{"hard seventeen stands", []Card{c("10", "clubs"), c("7", "diamonds")}, []Card{c("K", "clubs")}, 17, 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewBlackjack(nil)
			s := e.InitialState()
			s.Dealer.Hand = tc.hand
			s.Deck = tc.deck

			e.DealerTurn(s)

			assert.Equal(t, tc.want, s.Dealer.Value)
			assert.Len(t, s.Dealer.Hand, tc.cards)
			assert.True(t, s.Dealer.IsStanding)
			assert.GreaterOrEqual(t, s.Dealer.Value, 17)
		})
	}
}

func TestResolveBets(t *testing.T) {
	natural := []Card{c("A", "hearts"), c("K", "hearts")}
	cases := []struct {
		name   string
		player []Card
		status SeatStatus
		dealer []Card
		want   string
		mult   string
	}{
		{"blackjack pays two and a half", natural, SeatBlackjack, []Card{c("K", "spades"), c("Q", "spades")}, OutcomeWon, "2.5"},
		{"blackjack against dealer natural pushes", natural, SeatBlackjack, []Card{c("A", "spades"), c("Q", "spades")}, OutcomePush, "1"},
		{"dealer bust pays double", []Card{c("10", "clubs"), c("2", "clubs")}, SeatWaiting, []Card{c("K", "spades"), c("6", "spades"), c("9", "spades")}, OutcomeWon, "2"},
		{"higher value wins", []Card{c("10", "clubs"), c("9", "clubs")}, SeatWaiting, []Card{c("10", "spades"), c("8", "spades")}, OutcomeWon, "2"},
		{"equal value pushes", []Card{c("10", "clubs"), c("8", "clubs")}, SeatWaiting, []Card{c("10", "spades"), c("8", "spades")}, OutcomePush, "1"},
		{"lower value loses", []Card{c("10", "clubs"), c("7", "clubs")}, SeatWaiting, []Card{c("10", "spades"), c("9", "spades")}, OutcomeLost, "0"},
		{"three card 21 against dealer natural pushes", []Card{c("7", "clubs"), c("7", "diamonds"), c("7", "hearts")}, SeatWaiting, []Card{c("A", "spades"), c("Q", "spades")}, OutcomePush, "1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewBlackjack(nil)
			s := e.InitialState()
			s.Dealer.Hand = tc.dealer
			s.Players[1] = &PlayerHand{
				Hand:   tc.player,
				Value:  HandValue(tc.player),
				Bet:    decimal.NewFromInt(10),
				BetID:  "bet-1",
				Status: tc.status,
				HasBet: true,
			}

			out := e.ResolveBets(s)

			require.Len(t, out, 1)
			mult := decimal.RequireFromString(tc.mult)
			assert.Equal(t, tc.want, out[0].Outcome.Status)
			assert.True(t, mult.Equal(out[0].Outcome.Multiplier), out[0].Outcome.Multiplier.String())
			assert.True(t, decimal.NewFromInt(10).Mul(mult).Equal(out[0].Outcome.Payout))
		})
	}
}

func TestResolveSkipsBustedAndUnbetSeats(t *testing.T) {
	e := NewBlackjack(nil)
	s := e.InitialState()
	s.Dealer.Hand = []Card{c("10", "spades"), c("8", "spades")}
	s.Players[1] = &PlayerHand{Status: SeatBusted, HasBet: true, BetID: "bet-1", Hand: []Card{c("K", "clubs"), c("Q", "clubs"), c("2", "clubs")}}
	s.Players[2] = &PlayerHand{Status: SeatWaiting, Hand: []Card{}}

	assert.Empty(t, e.ResolveBets(s))
}

func TestStartNewRound(t *testing.T) {
	e, s, _ := twoSeatTable(t)
	require.True(t, s.RoundActive)

	e.StartNewRound(s)

	assert.False(t, s.RoundActive)
	assert.Empty(t, s.Dealer.Hand)
	assert.Nil(t, s.Deck)
	for _, p := range s.Players {
		assert.Equal(t, SeatWaiting, p.Status)
		assert.False(t, p.HasBet)
		assert.Empty(t, p.Hand)
		assert.Empty(t, p.BetID)
		assert.True(t, p.Bet.IsZero())
	}
	assert.NoError(t, e.ValidateBet(s, 1, bet(10)))
}

func TestBetRejectedAfterResolutionUntilNewRound(t *testing.T) {
	e := NewBlackjack(FixedDeck(
		c("A", "spades"), c("K", "hearts"),
		c("10", "clubs"), c("7", "clubs"),
	))
	s := e.InitialState()
	e.OnPlayerJoined(s, 1, 0)
	e.OnBetPlaced(s, 1, "bet-1", bet(10))
	require.False(t, s.RoundActive)

	e.OnPlayerJoined(s, 2, 1)
	err := e.ValidateBet(s, 2, bet(10))
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
	assert.False(t, e.Advance(s).Dealt)
}

func TestStateRoundTrip(t *testing.T) {
	_, s, _ := twoSeatTable(t)

	raw, err := s.Encode()
	require.NoError(t, err)
	back, err := DecodeState(raw)
	require.NoError(t, err)

	assert.Equal(t, s.Dealer, back.Dealer)
	assert.Equal(t, s.Deck, back.Deck)
	require.Contains(t, back.Players, int64(2))
	assert.True(t, s.Players[2].Bet.Equal(back.Players[2].Bet))

	empty, err := DecodeState(nil)
	require.NoError(t, err)
	assert.NotNil(t, empty.Players)
}

func TestForUnknownGameType(t *testing.T) {
	_, err := For("roulette", nil)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	e, err := For(Blackjack, nil)
	require.NoError(t, err)
	assert.Equal(t, Blackjack, e.GameType())
}

func TestExpireTurnFinishesRound(t *testing.T) {
	e, s, _ := twoSeatTable(t,
		c("10", "hearts"), c("9", "clubs"),
		c("9", "diamonds"), c("7", "spades"),
		c("10", "spades"), c("8", "hearts"),
	)

	res := e.ExpireTurn(s)

	assert.True(t, res.RoundComplete)
	assert.False(t, s.RoundActive)
	require.Len(t, res.Resolutions, 2)
	assert.Equal(t, OutcomeWon, res.Resolutions[0].Outcome.Status)
	assert.Equal(t, OutcomeLost, res.Resolutions[1].Outcome.Status)

	again := e.ExpireTurn(s)
	assert.False(t, again.RoundComplete)
	assert.Empty(t, again.Resolutions)
}

func TestExpireTurnDealsSeatsThatBet(t *testing.T) {
	e := NewBlackjack(FixedDeck(
		c("10", "hearts"), c("9", "clubs"),
		c("10", "spades"), c("7", "spades"),
	))
	s := e.InitialState()
	e.OnPlayerJoined(s, 1, 0)
	e.OnPlayerJoined(s, 2, 1)

	assert.False(t, s.AwaitingBets())
	assert.False(t, e.ExpireTurn(s).Dealt)

	res := e.OnBetPlaced(s, 2, "bet-2", bet(10))
	require.False(t, res.Dealt)
	assert.True(t, s.AwaitingBets())

	res = e.ExpireTurn(s)
	assert.True(t, res.Dealt)
	assert.False(t, res.RoundComplete)
	assert.True(t, s.RoundActive)
	assert.False(t, s.AwaitingBets())

	// the seat that never bet sits the round out
	assert.Empty(t, s.Players[1].Hand)
	assert.Equal(t, SeatWaiting, s.Players[1].Status)
	assert.Equal(t, []Card{c("10", "hearts"), c("9", "clubs")}, s.Players[2].Hand)
	assert.Equal(t, SeatPlaying, s.Players[2].Status)
	assert.Error(t, e.ValidateBet(s, 1, bet(10)))

	res = e.ExpireTurn(s)
	assert.True(t, res.RoundComplete)
	require.Len(t, res.Resolutions, 1)
	assert.Equal(t, "bet-2", res.Resolutions[0].BetID)
	assert.Equal(t, OutcomeWon, res.Resolutions[0].Outcome.Status)
}
