package auth

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/avvvet/blackjack-services/internal/apperr"
	"github.com/go-chi/jwtauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimInt64(t *testing.T) {
	claims := map[string]interface{}{
		"f": float64(42),
		"s": "43",
		"n": json.Number("44"),
		"x": true,
	}
	for key, want := range map[string]int64{"f": 42, "s": 43, "n": 44} {
		got, err := ClaimInt64(claims, key)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ClaimInt64(claims, "x")
	assert.Error(t, err)
	_, err = ClaimInt64(claims, "missing")
	assert.Error(t, err)
}

func TestFromContext(t *testing.T) {
	ja := jwtauth.New("HS256", []byte("secret"), nil)

	tok, _, err := ja.Encode(map[string]interface{}{"player_id": 9, "name": "ivy"})
	require.NoError(t, err)
	p, err := FromContext(jwtauth.NewContext(context.Background(), tok, nil))
	require.NoError(t, err)
	assert.Equal(t, Player{ID: 9, Name: "ivy"}, p)

	tok, _, err = ja.Encode(map[string]interface{}{"service_id": 1})
	require.NoError(t, err)
	_, err = FromContext(jwtauth.NewContext(context.Background(), tok, nil))
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = FromContext(context.Background())
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}
