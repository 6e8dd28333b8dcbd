// Package engine holds the game rules. Engines are pure: they only touch the
// RoundState passed to them and draw cards from their DeckSource.
package engine

import "github.com/avvvet/blackjack-services/internal/apperr"

type GameType string

const Blackjack GameType = "blackjack"

// Engine is implemented only inside this package. Adding a game means adding
// a variant here and a case to For.
type Engine interface {
	GameType() GameType
	InitialState() *RoundState
	OnPlayerJoined(s *RoundState, playerID int64, position int)
	OnPlayerLeft(s *RoundState, playerID int64)
	ValidateBet(s *RoundState, playerID int64, bet BetData) error
	OnBetPlaced(s *RoundState, playerID int64, betID string, bet BetData) *Result
	ProcessAction(s *RoundState, playerID int64, action Action) (*Result, error)
	Advance(s *RoundState) *Result
	ExpireTurn(s *RoundState) *Result
	DealerTurn(s *RoundState)
	ResolveBets(s *RoundState) []Resolution
	StartNewRound(s *RoundState)
	PlayerView(s *RoundState, viewerID int64) *View

	sealed()
}

// For returns the engine for gameType.
func For(gameType GameType, decks DeckSource) (Engine, error) {
	switch gameType {
	case Blackjack:
		return NewBlackjack(decks), nil
	default:
		return nil, apperr.Validation("unsupported game type %q", gameType)
	}
}
