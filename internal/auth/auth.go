// Package auth reads the player principal from a verified jwtauth token.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/avvvet/blackjack-services/internal/apperr"
	"github.com/go-chi/jwtauth"
)

type Player struct {
	ID   int64
	Name string
}

// New builds the HS256 verifier from JWT_SECRET_KEY.
func New() *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(os.Getenv("JWT_SECRET_KEY")), nil)
}

// FromContext returns the player named by the player_id and name claims.
func FromContext(ctx context.Context) (Player, error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return Player{}, apperr.Unauthorized("invalid token")
	}
	id, err := ClaimInt64(claims, "player_id")
	if err != nil || id <= 0 {
		return Player{}, apperr.Unauthorized("token has no player id")
	}
	name, _ := claims["name"].(string)
	return Player{ID: id, Name: name}, nil
}

// ClaimInt64 reads a numeric claim. JSON numbers decode as float64, and some
// issuers send ids as strings.
func ClaimInt64(claims map[string]interface{}, key string) (int64, error) {
	switch v := claims[key].(type) {
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("claim %s missing", key)
	}
}
