package engine

import (
	"math/rand"
	"sync"
)

var (
	Suits = []string{"hearts", "diamonds", "clubs", "spades"}
	Ranks = []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}
)

// Card is a playing card. A hidden card carries neither suit nor rank.
type Card struct {
	Suit   string `json:"suit,omitempty"`
	Rank   string `json:"rank,omitempty"`
	Hidden bool   `json:"hidden,omitempty"`
}

func (c Card) String() string {
	if c.Hidden {
		return "??"
	}
	return c.Rank + " of " + c.Suit
}

var rankValues = map[string]int{
	"2": 2, "3": 3, "4": 4, "5": 5, "6": 6, "7": 7, "8": 8, "9": 9,
	"10": 10, "J": 10, "Q": 10, "K": 10, "A": 11,
}

// Value is the card's count with an ace taken as 11.
func (c Card) Value() int {
	return rankValues[c.Rank]
}

// NewDeck returns the 52 cards in suit-major order.
func NewDeck() []Card {
	deck := make([]Card, 0, len(Suits)*len(Ranks))
	for _, s := range Suits {
		for _, r := range Ranks {
			deck = append(deck, Card{Suit: s, Rank: r})
		}
	}
	return deck
}

// DeckSource supplies a fresh deck for each deal.
type DeckSource func() []Card

// ShuffledDecks returns a DeckSource backed by rng. It is safe for concurrent use.
func ShuffledDecks(rng *rand.Rand) DeckSource {
	var mu sync.Mutex
	return func() []Card {
		deck := NewDeck()
		mu.Lock()
		rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
		mu.Unlock()
		return deck
	}
}

// FixedDeck deals the given cards first, then the rest of a standard deck in
// order. Cards already listed are not repeated.
func FixedDeck(top ...Card) DeckSource {
	return func() []Card {
		seen := make(map[Card]bool, len(top))
		deck := make([]Card, 0, 52)
		for _, c := range top {
			seen[c] = true
			deck = append(deck, c)
		}
		for _, c := range NewDeck() {
			if !seen[c] {
				deck = append(deck, c)
			}
		}
		return deck
	}
}
